// Package logging provides structured logging for Gatehouse.
//
// It wraps log/slog with JSON or text output, level filtering and the
// default fields service and version on every entry.
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("device created", "id", dev.ID)
//	mqttLog := logger.Component("mqtt")
//
// Never log secrets, tokens or passwords.
package logging
