// Package logging configures the daemon's structured logger.
//
// Everything logs through log/slog; this package builds the handler
// from configuration and, when the privacy policy anonymizes logs,
// wraps it so messages and string attributes pass through the
// sanitizer before they reach the sink.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Options configures the logger.
type Options struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string

	// Format selects the handler: json or text.
	Format string

	// Sanitize, when set, is applied to the message and every string
	// attribute of each record.
	Sanitize func(string) string

	// Writer is the output sink (default os.Stdout).
	Writer io.Writer
}

// New builds a logger from the options.
func New(opts Options) (*slog.Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	var handler slog.Handler
	switch opts.Format {
	case "", "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	if opts.Sanitize != nil {
		handler = &sanitizeHandler{inner: handler, fn: opts.Sanitize}
	}
	return slog.New(handler), nil
}

// Setup builds the logger and installs it as the process default.
func Setup(opts Options) (*slog.Logger, error) {
	logger, err := New(opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// sanitizeHandler rewrites records through the sanitizer before
// delegating. Only the message and string-valued attributes are
// rewritten; numeric and structured values pass through untouched.
type sanitizeHandler struct {
	inner slog.Handler
	fn    func(string) string
}

func (h *sanitizeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *sanitizeHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.fn(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *sanitizeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.sanitizeAttr(a)
	}
	return &sanitizeHandler{inner: h.inner.WithAttrs(clean), fn: h.fn}
}

func (h *sanitizeHandler) WithGroup(name string) slog.Handler {
	return &sanitizeHandler{inner: h.inner.WithGroup(name), fn: h.fn}
}

func (h *sanitizeHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.fn(a.Value.String()))
	case slog.KindGroup:
		members := a.Value.Group()
		clean := make([]any, 0, len(members))
		for _, m := range members {
			clean = append(clean, h.sanitizeAttr(m))
		}
		return slog.Group(a.Key, clean...)
	}
	return a
}
