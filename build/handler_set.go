package build

import (
	"context"
	"log/slog"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"
)

// handlerSet fans each log record out to several handlers, typically the
// console and the rotating log file.
type handlerSet struct {
	level btclogv1.Level
	set   []btclog.Handler
}

// newHandlerSet constructs a handlerSet over the given handlers, all of
// which are moved to the given level.
func newHandlerSet(level btclogv1.Level,
	set ...btclog.Handler) *handlerSet {

	h := &handlerSet{
		set:   set,
		level: level,
	}
	h.SetLevel(level)

	return h
}

// Enabled reports whether any handler in the set handles records at the
// given level.
//
// NOTE: this is part of the slog.Handler interface.
func (h *handlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.set {
		if handler.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

// Handle passes the record to every handler in the set. The first error is
// returned.
//
// NOTE: this is part of the slog.Handler interface.
func (h *handlerSet) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.set {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}

		if err := handler.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs returns a new set whose handlers all carry attrs.
//
// NOTE: this is part of the slog.Handler interface.
func (h *handlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	newSet := &handlerSet{
		set:   make([]btclog.Handler, len(h.set)),
		level: h.level,
	}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithAttrs(attrs).(btclog.Handler)
	}

	return newSet
}

// WithGroup returns a new set whose handlers all open the named group.
//
// NOTE: this is part of the slog.Handler interface.
func (h *handlerSet) WithGroup(name string) slog.Handler {
	newSet := &handlerSet{
		set:   make([]btclog.Handler, len(h.set)),
		level: h.level,
	}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithGroup(name).(btclog.Handler)
	}

	return newSet
}

// SubSystem returns a copy of the set with every handler tagged with the
// given subsystem.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *handlerSet) SubSystem(tag string) btclog.Handler {
	newSet := &handlerSet{
		set:   make([]btclog.Handler, len(h.set)),
		level: h.level,
	}
	for i, handler := range h.set {
		newSet.set[i] = handler.SubSystem(tag)
	}

	return newSet
}

// WithPrefix returns a copy of the set with every handler prefixing its
// messages with prefix.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *handlerSet) WithPrefix(prefix string) btclog.Handler {
	newSet := &handlerSet{
		set:   make([]btclog.Handler, len(h.set)),
		level: h.level,
	}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithPrefix(prefix)
	}

	return newSet
}

// SetLevel changes the level of every handler in the set.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *handlerSet) SetLevel(level btclogv1.Level) {
	for _, handler := range h.set {
		handler.SetLevel(level)
	}
	h.level = level
}

// Level returns the level of the set.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *handlerSet) Level() btclogv1.Level {
	return h.level
}

// A compile-time check to ensure that handlerSet implements btclog.Handler.
var _ btclog.Handler = (*handlerSet)(nil)
