package kernel

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled reports false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(NopLogger())
}

// SetLogger configures the logger shared by the kernel and its
// sub-packages. By default nothing is logged. Pass nil to restore the
// silent default. Safe for concurrent use.
//
// Levels:
//   - [slog.LevelDebug]: per-operation statistics (vertex merges, face
//     counts, pair tests, triangle counts)
//   - [slog.LevelWarn]: recoverable numeric trouble (ray-cast retries,
//     derived tolerance fallbacks)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = NopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current kernel logger. Sub-packages call this rather
// than holding their own global.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
