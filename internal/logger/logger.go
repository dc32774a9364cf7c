// Package logger provides structured logging on top of log/slog: colored
// console output, an optional per-account debug log file, and notification
// dispatch for marked events.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/wrosek/twitch-drops-go/internal/model"
)

var eventEmoji = map[string]string{
	"DROP_CLAIM":        "🎁",
	"DROP_STATUS":       "📦",
	"CAMPAIGN_COMPLETE": "🏆",
	"MINER_STARTED":     "⛏️",
	"MINER_STOPPED":     "💤",
	"STREAMER_ONLINE":   "🟢",
	"STREAMER_OFFLINE":  "⚫",
}

// NotifyFunc receives event-tagged log messages for notification delivery.
// Implementations should be non-blocking.
type NotifyFunc func(ctx context.Context, message string, event model.Event)

// Config holds logger configuration options. LogDir enables an additional
// file handler writing <AccountName>.log at FileLevel.
type Config struct {
	Level       slog.Level
	FileLevel   slog.Level
	Colored     bool
	LogDir      string
	AccountName string
	NotifyFn    NotifyFunc
}

// Logger wraps slog.Logger with account-scoped output and notification
// dispatch for Event calls.
type Logger struct {
	*slog.Logger
	cfg      Config
	notifyFn atomic.Value // stores NotifyFunc
}

// Setup builds a Logger with a console handler and, when LogDir is set,
// a file handler.
func Setup(cfg Config) (*Logger, error) {
	var handlers []slog.Handler

	handlers = append(handlers, newColorHandler(os.Stdout, cfg.Level, cfg.Colored, cfg.AccountName))

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory %s: %w", cfg.LogDir, err)
		}

		filename := "miner.log"
		if cfg.AccountName != "" {
			filename = cfg.AccountName + ".log"
		}

		logFile, err := os.OpenFile(
			filepath.Join(cfg.LogDir, filename),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND,
			0o644,
		)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}

		handlers = append(handlers, slog.NewTextHandler(logFile, &slog.HandlerOptions{
			Level: cfg.FileLevel,
		}))
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = &multiHandler{handlers: handlers}
	}

	logger := &Logger{
		Logger: slog.New(handler),
		cfg:    cfg,
	}

	if cfg.NotifyFn != nil {
		logger.notifyFn.Store(cfg.NotifyFn)
	}

	return logger, nil
}

// Event logs a message at INFO level tagged with the event, prepending the
// event's emoji when one is mapped, and dispatches a notification if a
// NotifyFunc is set.
func (l *Logger) Event(ctx context.Context, event model.Event, msg string, args ...any) {
	if emoji, ok := eventEmoji[string(event)]; ok {
		msg = emoji + " " + msg
	}
	l.Logger.Info(msg, append(args, "event", string(event))...)

	if fn, ok := l.notifyFn.Load().(NotifyFunc); ok && fn != nil {
		formattedMsg := msg
		if len(args) > 0 {
			formattedMsg = fmt.Sprintf("%s %v", msg, args)
		}
		fn(ctx, formattedMsg, event)
	}
}

// SetNotifyFunc sets the notification callback function. Thread-safe.
func (l *Logger) SetNotifyFunc(fn NotifyFunc) {
	l.notifyFn.Store(fn)
}

// ParseLevel converts a string log level to slog.Level. Unknown strings
// fall back to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
