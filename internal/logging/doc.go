// Package logging provides structured logging for greetcard.
//
// This package wraps Go's standard log/slog package so every component logs
// the same way.
//
// # Configuration
//
// Logging is configured via the logging section of the config file:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// stderr is the default so the terminal input source keeps stdout free.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("timeline built", "duration", tl.Duration())
//	logger.Warn("customization unavailable", "error", err)
package logging
