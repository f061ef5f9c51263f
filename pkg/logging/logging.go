// Package logging holds the structured logger shared by every amgen
// package. It is silent until SetLogger is called.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger installs l for all packages. Passing nil restores the silent
// default. Safe for concurrent use.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("logging: unknown level %q", s)
}

// NewText builds a text logger writing to w at the given level.
func NewText(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// BadgerAdapter forwards badger's printf-style logging to the shared
// logger. Badger chatters at Info about compactions, so Info goes to Debug.
type BadgerAdapter struct{}

func (BadgerAdapter) Errorf(format string, args ...interface{}) {
	Logger().Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (BadgerAdapter) Warningf(format string, args ...interface{}) {
	Logger().Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (BadgerAdapter) Infof(format string, args ...interface{}) {
	Logger().Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (BadgerAdapter) Debugf(format string, args ...interface{}) {
	Logger().Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}
