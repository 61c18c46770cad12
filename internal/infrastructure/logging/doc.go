// Package logging provides structured logging for devsel.
//
// It wraps log/slog with a JSON or text handler, level filtering and the
// default fields service and version on every entry.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// Command output goes to stdout, so the CLI logs to stderr by default.
//
// Usage:
//
//	logger := logging.NewWithWriter(cfg.Logging, version, os.Stderr)
//	mqttLog := logger.With("component", "mqtt")
//	mqttLog.Info("connected")
//
// *Logger satisfies the narrow Logger interfaces declared by the device,
// session, catalogfile, history, sweeper and mqtt packages.
package logging
