package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ANSI color codes for terminal output.
const (
	colorReset         = "\033[0m"
	colorRed           = "\033[31m"
	colorYellow        = "\033[33m"
	colorGreen         = "\033[32m"
	colorCyan          = "\033[36m"
	colorMagenta       = "\033[35m"
	colorGray          = "\033[90m"
	colorLightBlue     = "\033[94m"
	colorBrightMagenta = "\033[95m"
)

// coloredAttrKeys highlights the values of domain attributes so channel,
// game and drop names stand out on a busy console.
var coloredAttrKeys = map[string]string{
	"channel":  colorMagenta,
	"game":     colorLightBlue,
	"campaign": colorCyan,
	"drop":     colorBrightMagenta,
}

// colorHandler renders records as single console lines with an optional
// account prefix and ANSI colors.
type colorHandler struct {
	mu          sync.Mutex
	writer      io.Writer
	level       slog.Level
	colored     bool
	accountName string
	attrs       []slog.Attr
}

func newColorHandler(w io.Writer, level slog.Level, colored bool, accountName string) *colorHandler {
	return &colorHandler{
		writer:      w,
		level:       level,
		colored:     colored,
		accountName: accountName,
	}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := record.Time.Format("02/01/06 15:04:05")
	levelStr := record.Level.String()

	prefix := ""
	if h.accountName != "" {
		prefix = fmt.Sprintf("[%s] ", h.accountName)
	}

	if h.colored {
		fmt.Fprintf(h.writer, "%s%s - %s%s%s - %s%s",
			colorGray, timeStr,
			h.levelColor(record.Level), levelStr, colorReset,
			prefix, record.Message,
		)
	} else {
		fmt.Fprintf(h.writer, "%s - %s - %s%s", timeStr, levelStr, prefix, record.Message)
	}

	for _, a := range h.attrs {
		h.writeAttr(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		h.writeAttr(a)
		return true
	})

	fmt.Fprintln(h.writer)
	return nil
}

func (h *colorHandler) writeAttr(a slog.Attr) {
	if h.colored {
		if color, ok := coloredAttrKeys[a.Key]; ok {
			fmt.Fprintf(h.writer, " %s=%s%v%s", a.Key, color, a.Value, colorReset)
			return
		}
	}
	fmt.Fprintf(h.writer, " %s=%v", a.Key, a.Value)
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorHandler{
		writer:      h.writer,
		level:       h.level,
		colored:     h.colored,
		accountName: h.accountName,
		attrs:       append(copyAttrs(h.attrs), attrs...),
	}
}

// WithGroup is accepted but groups are flattened; the console line format
// has no nesting.
func (h *colorHandler) WithGroup(string) slog.Handler {
	return &colorHandler{
		writer:      h.writer,
		level:       h.level,
		colored:     h.colored,
		accountName: h.accountName,
		attrs:       copyAttrs(h.attrs),
	}
}

func copyAttrs(attrs []slog.Attr) []slog.Attr {
	if len(attrs) == 0 {
		return nil
	}
	cp := make([]slog.Attr, len(attrs))
	copy(cp, attrs)
	return cp
}

func (h *colorHandler) levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorGreen
	default:
		return colorCyan
	}
}

// multiHandler fans a record out to every handler whose level admits it.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
