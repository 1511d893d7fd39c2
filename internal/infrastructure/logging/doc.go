// Package logging wraps log/slog with the service's defaults: JSON for
// production, text for local runs, and service/version fields stamped
// on every entry.
//
// Level, format and destination come from the logging section of
// config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Typical use:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("inbox scan complete", "files", 3)
//
// Never log credentials or broker passwords; truncate identifiers when
// a value is only needed for correlation.
package logging
