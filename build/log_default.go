//go:build !stdlog && !nolog
// +build !stdlog,!nolog

package build

import "os"

// LoggingType is a log type that writes to the configured handlers.
const LoggingType = LogTypeDefault

// LogLevel is the level used by loggers that are not driven by a config.
const LogLevel = "info"

// Write writes the provided byte slice to stderr and to the log rotator, if
// present.
func (w *LogWriter) Write(b []byte) (int, error) {
	os.Stderr.Write(b)
	if w.RotatorPipe != nil {
		w.RotatorPipe.Write(b)
	}

	return len(b), nil
}
