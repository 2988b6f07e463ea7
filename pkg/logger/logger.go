package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/soundprediction/docgraph/pkg/config"
)

// Log formats accepted by New.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatColor = "color"
)

// highlightPrefixes mark messages that report a finished stage; they are
// printed green at info level.
var highlightPrefixes = []string{"Analyzed", "Built", "Exported", "Indexed", "Detected", "Found"}

// ColorHandler is a text handler that colours whole lines by level: errors
// red, warnings yellow and finished-stage info messages green.
type ColorHandler struct {
	inner slog.Handler
	buf   *bytes.Buffer
	mu    *sync.Mutex
	w     io.Writer
}

// NewColorHandler creates a ColorHandler writing to w.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	buf := &bytes.Buffer{}
	return &ColorHandler{
		inner: slog.NewTextHandler(buf, opts),
		buf:   buf,
		mu:    &sync.Mutex{},
		w:     w,
	}
}

// Enabled implements slog.Handler.
func (h *ColorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ColorHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf.Reset()
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	line := strings.TrimRight(h.buf.String(), "\n")

	switch {
	case r.Level >= slog.LevelError:
		line = color.RedString("%s", line)
	case r.Level >= slog.LevelWarn:
		line = color.YellowString("%s", line)
	case r.Level == slog.LevelInfo && highlighted(r.Message):
		line = color.GreenString("%s", line)
	}
	_, err := io.WriteString(h.w, line+"\n")
	return err
}

// WithAttrs implements slog.Handler.
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColorHandler{inner: h.inner.WithAttrs(attrs), buf: h.buf, mu: h.mu, w: h.w}
}

// WithGroup implements slog.Handler.
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	return &ColorHandler{inner: h.inner.WithGroup(name), buf: h.buf, mu: h.mu, w: h.w}
}

func highlighted(msg string) bool {
	for _, p := range highlightPrefixes {
		if strings.HasPrefix(msg, p) {
			return true
		}
	}
	return false
}

// NewDefaultLogger returns a colour logger on stderr at level.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// New builds a logger on stderr from cfg.
func New(cfg config.LogConfig) *slog.Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter builds a logger writing to w. Unknown levels fall back to
// info and unknown formats to colour text.
func NewWithWriter(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts))
	case FormatText:
		return slog.New(slog.NewTextHandler(w, opts))
	default:
		return slog.New(NewColorHandler(w, opts))
	}
}

// ParseLevel converts debug, info, warn or error into a slog.Level.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}
