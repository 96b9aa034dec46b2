package logger

import (
	"context"
	"log/slog"
	"regexp"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// A loose match for 13-19 digit card-like sequences, optionally grouped by spaces or dashes.
	cardPattern = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
)

const redactedValue = "[REDACTED]"

// RedactHandler scrubs attribute values that look like email addresses or
// card numbers before they reach the next handler in the chain. It exists
// because message attributes flowing through pkg/pubsub are caller-supplied
// and routinely end up in publish/dispatch log lines. Only top-level string
// attributes are checked; attributes nested inside a group pass through
// unchanged.
type RedactHandler struct {
	next slog.Handler
}

func NewRedactHandler(next slog.Handler) *RedactHandler {
	return &RedactHandler{next: next}
}

func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	nr := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, nr)
}

func redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	s := a.Value.String()
	if emailPattern.MatchString(s) || cardPattern.MatchString(s) {
		return slog.String(a.Key, redactedValue)
	}
	return a
}

func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactHandler{next: h.next.WithAttrs(redacted)}
}

func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{next: h.next.WithGroup(name)}
}
