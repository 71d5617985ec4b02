package build

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/btcsuite/btclog/v2"
)

// LogType indicates the type of logging selected by the build tags.
type LogType byte

const (
	// LogTypeNone indicates no logging.
	LogTypeNone LogType = iota

	// LogTypeStdOut writes all logging directly to the standard error
	// stream. The name is kept for the stdlog build tag it belongs to.
	LogTypeStdOut

	// LogTypeDefault logs to the handlers configured at start-up.
	LogTypeDefault
)

// String returns a human readable identifier for the logging type.
func (t LogType) String() string {
	switch t {
	case LogTypeNone:
		return "none"
	case LogTypeStdOut:
		return "stdout"
	case LogTypeDefault:
		return "default"
	default:
		return "unknown"
	}
}

// LogWriter is a stub type whose behavior can be changed using the build
// tags "stdlog" and "nolog". The default behavior is to write to stderr and,
// if set, to the RotatorPipe.
type LogWriter struct {
	// RotatorPipe receives a copy of every log line when file logging is
	// enabled.
	RotatorPipe io.Writer
}

// NewSubLogger constructs a new subsystem log from the current LogWriter
// implementation. In the default build the logger is created by
// genSubLogger, and logging is disabled if no generator is given. Builds
// tagged stdlog always log at LogLevel, which is what unit tests use.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	switch LoggingType {
	case LogTypeDefault:
		if genSubLogger != nil {
			return genSubLogger(subsystem)
		}

	case LogTypeStdOut:
		handler := btclog.NewDefaultHandler(&LogWriter{})
		logger := btclog.NewSLogger(handler.SubSystem(subsystem))

		level, _ := btclog.LevelFromString(LogLevel)
		logger.SetLevel(level)

		return logger
	}

	return btclog.Disabled
}

// SubLoggers is a type that holds a map of subsystem loggers keyed by their
// subsystem name.
type SubLoggers map[string]btclog.Logger

// LeveledSubLogger provides the ability to retrieve the subsystem loggers of
// a logger and set their log levels individually or all at once.
type LeveledSubLogger interface {
	// SubLoggers returns the map of all registered subsystem loggers.
	SubLoggers() SubLoggers

	// SupportedSubsystems returns the sorted names of the registered
	// subsystems.
	SupportedSubsystems() []string

	// SetLogLevel assigns an individual subsystem logger a new log level.
	SetLogLevel(subsystemID string, logLevel string)

	// SetLogLevels assigns all subsystem loggers the same new log level.
	SetLogLevels(logLevel string)
}

// ParseAndSetDebugLevels parses a debug level string of the form
// "<level>" or "<level>,<subsystem>=<level>,..." and applies it to logger.
// A leading entry without "=" sets the level of every subsystem.
func ParseAndSetDebugLevels(level string, logger LeveledSubLogger) error {
	levels := strings.Split(level, ",")

	globalLevel := levels[0]
	if !strings.Contains(globalLevel, "=") {
		if !validLogLevel(globalLevel) {
			return fmt.Errorf("the specified debug level [%v] "+
				"is invalid", globalLevel)
		}

		logger.SetLogLevels(globalLevel)
		levels = levels[1:]
	}

	subLoggers := logger.SubLoggers()
	for _, pair := range levels {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("the specified debug level has an "+
				"invalid format [%v] -- use format "+
				"subsystem1=level1,subsystem2=level2", pair)
		}
		subsysID, logLevel := fields[0], fields[1]

		if _, ok := subLoggers[subsysID]; !ok {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid -- supported subsystems are %v",
				subsysID, logger.SupportedSubsystems())
		}

		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] "+
				"is invalid", logLevel)
		}

		logger.SetLogLevel(subsysID, logLevel)
	}

	return nil
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical", "off":
		return true
	}

	return false
}

// sortedSubsystems returns the keys of loggers in sorted order.
func sortedSubsystems(loggers SubLoggers) []string {
	subsystems := make([]string, 0, len(loggers))
	for subsystem := range loggers {
		subsystems = append(subsystems, subsystem)
	}
	sort.Strings(subsystems)

	return subsystems
}
