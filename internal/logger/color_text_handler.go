package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
)

const colorReset = "\033[0m"

// ColorTextHandler wraps slog.TextHandler and prefixes each line with a
// (optionally colored) level tag. The tag is written outside the text
// record because TextHandler quotes control characters inside values.
type ColorTextHandler struct {
	*slog.TextHandler
	color bool

	mu  *sync.Mutex
	buf *bytes.Buffer
	w   io.Writer
}

// NewColorTextHandler creates a new ColorTextHandler. With color=false the
// level tag is written without escape codes.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, color bool) *ColorTextHandler {
	var o slog.HandlerOptions
	if opts != nil {
		o = *opts
	}
	user := o.ReplaceAttr
	o.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && a.Key == slog.LevelKey {
			return slog.Attr{}
		}
		if user != nil {
			return user(groups, a)
		}
		return a
	}
	buf := &bytes.Buffer{}
	return &ColorTextHandler{
		TextHandler: slog.NewTextHandler(buf, &o),
		color:       color,
		mu:          &sync.Mutex{},
		buf:         buf,
		w:           w,
	}
}

func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "\033[31m" // Red
	case l >= slog.LevelWarn:
		return "\033[33m" // Yellow
	case l >= slog.LevelInfo:
		return "\033[32m" // Green
	default:
		return "\033[36m" // Cyan
	}
}

// Handle implements slog.Handler
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	tag := r.Level.String()
	if h.color {
		tag = levelColor(r.Level) + tag + colorReset
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf.Reset()
	if err := h.TextHandler.Handle(ctx, r); err != nil {
		return err
	}
	_, err := io.WriteString(h.w, tag+"  "+h.buf.String())
	return err
}

// WithAttrs keeps the wrapper so derived loggers stay colored.
func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.TextHandler = h.TextHandler.WithAttrs(attrs).(*slog.TextHandler)
	return &c
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.TextHandler = h.TextHandler.WithGroup(name).(*slog.TextHandler)
	return &c
}
