//go:build nolog
// +build nolog

package build

// LoggingType is a log type that discards all output.
const LoggingType = LogTypeNone

// LogLevel is unused in this build.
const LogLevel = "off"

// Write is a no-op.
func (w *LogWriter) Write(b []byte) (int, error) {
	return len(b), nil
}
