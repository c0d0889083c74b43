// Package log owns the process-wide slog logger and the field conventions
// every gridlink component logs with: component, plugin and kind.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	setupOnce sync.Once
	root      atomic.Pointer[slog.Logger]
)

// SetupWith installs the process logger and makes it slog's default.
// format is "text" or "json" (anything else). Only the first call takes
// effect, so tests and subcommands can call it unconditionally.
func SetupWith(level, format string, w io.Writer) {
	setupOnce.Do(func() {
		l := New(level, format, w)
		root.Store(l)
		slog.SetDefault(l)
	})
}

// New builds a standalone logger without touching the process one.
func New(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel accepts debug, info, warn(ing) and error in any case. Anything
// else is info.
func ParseLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func current() *slog.Logger {
	if l := root.Load(); l != nil {
		return l
	}
	SetupWith("info", "json", os.Stdout)
	return root.Load()
}

// WithComponent scopes the process logger to a subsystem such as "api" or
// "segment".
func WithComponent(name string) *slog.Logger {
	return current().With(slog.String("component", name))
}

// WithPlugin scopes the process logger to one plugin.
func WithPlugin(name string) *slog.Logger {
	return current().With(slog.String("plugin", name))
}

// WithKind scopes the process logger to the bus of one command kind.
func WithKind(kind string) *slog.Logger {
	return current().With(slog.String("component", "bus"), slog.String("kind", kind))
}
