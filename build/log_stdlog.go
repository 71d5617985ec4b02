//go:build stdlog
// +build stdlog

package build

import "os"

// LoggingType is a log type that only writes to stderr.
const LoggingType = LogTypeStdOut

// LogLevel is the level every subsystem logs at in this build.
const LogLevel = "debug"

// Write writes the provided byte slice to stderr.
func (w *LogWriter) Write(b []byte) (int, error) {
	os.Stderr.Write(b)
	return len(b), nil
}
