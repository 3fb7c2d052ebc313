package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// SwappableHandler wraps a slog.Handler that can be atomically replaced at runtime.
// Loggers created before Upgrade keep working after the swap.
type SwappableHandler struct {
	handler atomic.Pointer[slog.Handler]
	parent  *SwappableHandler
	derive  func(slog.Handler) slog.Handler
}

// NewSwappableHandler creates a handler with an initial handler.
func NewSwappableHandler(initial slog.Handler) *SwappableHandler {
	sh := &SwappableHandler{}
	sh.handler.Store(&initial)
	return sh
}

// Swap atomically replaces the underlying handler.
func (sh *SwappableHandler) Swap(newHandler slog.Handler) {
	sh.handler.Store(&newHandler)
}

// current resolves the handler to use for a record. Derived handlers
// re-apply their attrs/group to the root's current handler so that
// child loggers follow a later Swap.
func (sh *SwappableHandler) current() slog.Handler {
	if sh.parent != nil {
		return sh.derive(sh.parent.current())
	}
	return *sh.handler.Load()
}

// Enabled reports whether the handler handles records at the given level.
func (sh *SwappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return sh.current().Enabled(ctx, level)
}

// Handle handles the Record.
func (sh *SwappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return sh.current().Handle(ctx, r)
}

// WithAttrs returns a child handler carrying attrs.
func (sh *SwappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SwappableHandler{
		parent: sh,
		derive: func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) },
	}
}

// WithGroup returns a child handler scoped to the given group.
func (sh *SwappableHandler) WithGroup(name string) slog.Handler {
	return &SwappableHandler{
		parent: sh,
		derive: func(h slog.Handler) slog.Handler { return h.WithGroup(name) },
	}
}
