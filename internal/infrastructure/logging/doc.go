// Package logging provides structured logging for BioStream Core.
//
// It wraps log/slog so every component logs through the same handler
// with the same default fields (service, version). Domain packages
// declare their own small Logger interfaces; the promoted slog methods
// on Logger satisfy all of them, so one configured instance feeds the
// whole daemon via SetLogger calls, usually narrowed with With to tag
// the component.
//
// Configured from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// JSON output is the default and what log shippers expect; text is for
// watching a dev daemon by eye.
//
// Never log tokens or credentials. Truncate anything sensitive:
//
//	logger.Info("token issued", "token_prefix", tok[:8]+"...")
package logging
