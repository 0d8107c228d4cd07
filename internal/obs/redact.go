package obs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"regexp"
)

// RedactMode selects how a matched value is rewritten.
type RedactMode string

const (
	RedactMask   RedactMode = "mask"
	RedactHash   RedactMode = "hash"
	RedactRemove RedactMode = "remove"
)

type pattern struct {
	name string
	re   *regexp.Regexp
}

// patterns are compiled once and applied in this order; text matched by an
// earlier pattern is rewritten first, so order decides which category label
// a span that several patterns would match ends up with.
var patterns = []pattern{
	{"email", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"card", regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)},
	{"phone", regexp.MustCompile(`\+?\d{1,3}[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
	{"ipv4", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{"bearer", regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]+`)},
	{"password_assignment", regexp.MustCompile(`(?i)(password|secret|api[_-]?key)\s*=\s*\S+`)},
}

// sensitiveFieldNames are always redacted regardless of content, matched
// case-insensitively against a structured log attribute's key.
var sensitiveFieldNames = map[string]struct{}{
	"password":      {},
	"secret":        {},
	"api_key":       {},
	"apikey":        {},
	"token":         {},
	"authorization": {},
}

func isSensitiveField(key string) bool {
	_, ok := sensitiveFieldNames[toLower(key)]
	return ok
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// redactString rewrites every PII-pattern match in s per mode.
func redactString(s string, mode RedactMode) string {
	for _, p := range patterns {
		s = p.re.ReplaceAllStringFunc(s, func(match string) string {
			return rewrite(match, p.name, mode)
		})
	}
	return s
}

func rewrite(match, category string, mode RedactMode) string {
	switch mode {
	case RedactHash:
		sum := sha256.Sum256([]byte(match))
		return "sha256:" + hex.EncodeToString(sum[:])[:16]
	case RedactRemove:
		return ""
	default:
		return "[REDACTED-" + category + "]"
	}
}

// Redactor is a slog.Handler decorator that rewrites PII patterns and
// sensitive-field values in every record before it reaches the base handler.
type Redactor struct {
	base slog.Handler
	mode RedactMode
}

// NewRedactor wraps base with PII redaction in the given mode.
func NewRedactor(base slog.Handler, mode RedactMode) *Redactor {
	if mode == "" {
		mode = RedactMask
	}
	return &Redactor{base: base, mode: mode}
}

func (h *Redactor) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *Redactor) Handle(ctx context.Context, r slog.Record) error {
	r.Message = redactString(r.Message, h.mode)

	redacted := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.base.Handle(ctx, redacted)
}

func (h *Redactor) redactAttr(a slog.Attr) slog.Attr {
	if isSensitiveField(a.Key) {
		return slog.String(a.Key, "[REDACTED]")
	}
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, redactString(a.Value.String(), h.mode))
	}
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			out[i] = h.redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

func (h *Redactor) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(a)
	}
	return &Redactor{base: h.base.WithAttrs(redacted), mode: h.mode}
}

func (h *Redactor) WithGroup(name string) slog.Handler {
	return &Redactor{base: h.base.WithGroup(name), mode: h.mode}
}
