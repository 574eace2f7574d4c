package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
)

// Logger is slog.Logger carrying the recorder's default fields
// (service name, version). The promoted Debug/Info/Warn/Error methods
// satisfy the per-package Logger interfaces across the codebase, so a
// *Logger plugs straight into SetLogger everywhere.
//
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from cfg. Format is json unless cfg asks for
// text; output goes to stdout unless cfg asks for stderr; unknown
// levels fall back to info.
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(cfg).WithAttrs([]slog.Attr{
		slog.String("service", "biostream"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

func newHandler(cfg config.LoggingConfig) slog.Handler {
	var output io.Writer = os.Stdout
	if strings.ToLower(cfg.Output) == "stderr" {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	if strings.ToLower(cfg.Format) == "text" {
		return slog.NewTextHandler(output, opts)
	}
	return slog.NewJSONHandler(output, opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying additional default attributes.
//
//	streamLog := log.With("component", "stream")
//	streamLog.Info("subscribed") // includes component=stream
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a stdout JSON logger at info level, for the window
// during startup before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
