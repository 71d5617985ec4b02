package build

import "github.com/btcsuite/btclog/v2"

// NewDefaultLoggers returns the console handler, which writes to stderr so
// that command output on stdout stays machine readable, and, unless the file
// logger is disabled or no rotator is given, a handler writing to the
// rotating log file.
func NewDefaultLoggers(cfg *LogConfig,
	rotator *RotatingLogWriter) []btclog.Handler {

	var handlers []btclog.Handler
	if !cfg.Console.Disable {
		handlers = append(handlers, btclog.NewDefaultHandler(
			&LogWriter{}, cfg.Console.HandlerOptions()...,
		))
	}

	if !cfg.File.Disable && rotator != nil {
		handlers = append(handlers, btclog.NewDefaultHandler(
			rotator, cfg.File.HandlerOptions()...,
		))
	}

	return handlers
}
