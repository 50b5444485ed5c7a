// Package logging builds the process logger and carries the request id
// through contexts so every *Context log call is tagged with it.
package logging

import (
	"context"
	"io"
	"log/slog"
)

type requestIDContextKey struct{}

// WithRequestID returns a context carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// contextHandler adds request_id to records logged with a tagged context.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if id := RequestID(ctx); id != "" {
		rec.AddAttrs(slog.String("request_id", id))
	}
	return h.Handler.Handle(ctx, rec)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// New returns a JSON logger writing to w at level and installs it as the
// slog default.
func New(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(contextHandler{slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})})
	slog.SetDefault(logger)
	return logger
}
