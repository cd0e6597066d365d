package rhi

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled reports false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the package-wide fallback logger.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the fallback logger used by every Context that was
// not given its own logger via WithLogger. By default rhi produces no output.
// Pass nil to restore the silent default.
//
// Log levels used by rhi:
//   - [slog.LevelDebug]: resource lifetime and command execution
//   - [slog.LevelInfo]: device creation and adapter selection
//   - [slog.LevelWarn]: ignored calls (unknown handles, unregistered maps)
//   - [slog.LevelError]: capacity errors and fatal driver failures
//
// Example:
//
//	rhi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current package-wide logger.
// Sub-packages call this (or Context.Logger) to share one configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// DeviceLogger returns the logger of the Context dev was created from, or
// Logger when dev does not expose one.
func DeviceLogger(dev any) *slog.Logger {
	if d, ok := dev.(interface{ Log() *slog.Logger }); ok {
		if l := d.Log(); l != nil {
			return l
		}
	}
	return Logger()
}
