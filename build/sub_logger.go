package build

import (
	"sync"

	"github.com/btcsuite/btclog/v2"
)

// SubLoggerManager hands out subsystem loggers that all write through the
// same set of handlers, and keeps track of them so that their levels can be
// changed later on.
type SubLoggerManager struct {
	genLogger *handlerSet

	loggers SubLoggers
	mu      sync.Mutex
}

// A compile-time check to ensure that SubLoggerManager implements the
// LeveledSubLogger interface.
var _ LeveledSubLogger = (*SubLoggerManager)(nil)

// NewSubLoggerManager constructs a SubLoggerManager that writes to the given
// handlers at info level.
func NewSubLoggerManager(handlers ...btclog.Handler) *SubLoggerManager {
	return &SubLoggerManager{
		loggers:   make(SubLoggers),
		genLogger: newHandlerSet(btclog.LevelInfo, handlers...),
	}
}

// GenSubLogger creates a new logger for the given subsystem.
func (r *SubLoggerManager) GenSubLogger(subsystem string) btclog.Logger {
	return btclog.NewSLogger(r.genLogger.SubSystem(subsystem))
}

// RegisterSubLogger adds logger to the set managed by r under the given
// subsystem name.
func (r *SubLoggerManager) RegisterSubLogger(subsystem string,
	logger btclog.Logger) {

	r.mu.Lock()
	defer r.mu.Unlock()

	r.loggers[subsystem] = logger
}

// SubLoggers returns a copy of all registered subsystem loggers.
//
// NOTE: this is part of the LeveledSubLogger interface.
func (r *SubLoggerManager) SubLoggers() SubLoggers {
	r.mu.Lock()
	defer r.mu.Unlock()

	loggers := make(SubLoggers, len(r.loggers))
	for subsystem, logger := range r.loggers {
		loggers[subsystem] = logger
	}

	return loggers
}

// SupportedSubsystems returns the sorted names of the registered
// subsystems.
//
// NOTE: this is part of the LeveledSubLogger interface.
func (r *SubLoggerManager) SupportedSubsystems() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return sortedSubsystems(r.loggers)
}

// SetLogLevel sets the level of a single subsystem. Unknown subsystems and
// levels are ignored.
//
// NOTE: this is part of the LeveledSubLogger interface.
func (r *SubLoggerManager) SetLogLevel(subsystemID string, logLevel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.setLogLevelUnsafe(subsystemID, logLevel)
}

// setLogLevelUnsafe must be called with the mutex held.
func (r *SubLoggerManager) setLogLevelUnsafe(subsystemID string,
	logLevel string) {

	logger, ok := r.loggers[subsystemID]
	if !ok {
		return
	}

	level, ok := btclog.LevelFromString(logLevel)
	if !ok {
		return
	}

	logger.SetLevel(level)
}

// SetLogLevels sets every registered subsystem to the same level.
//
// NOTE: this is part of the LeveledSubLogger interface.
func (r *SubLoggerManager) SetLogLevels(logLevel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for subsystemID := range r.loggers {
		r.setLogLevelUnsafe(subsystemID, logLevel)
	}
}
