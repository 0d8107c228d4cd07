package obs

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a structured logger wrapped in a PII Redactor. Format is
// "json" or "text"; level is one of debug, info, warn, error; redactMode is
// mask, hash, or remove.
func NewLogger(format, level, redactMode string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var base slog.Handler

	var w io.Writer = os.Stdout
	switch strings.ToLower(format) {
	case "text":
		base = slog.NewTextHandler(w, opts)
	default:
		base = slog.NewJSONHandler(w, opts)
	}

	return slog.New(NewRedactor(base, RedactMode(redactMode)))
}
