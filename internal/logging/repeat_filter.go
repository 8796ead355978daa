package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// RepeatFilter drops records at or above minLevel that are identical to one
// written less than window ago. Identity is the level, message and
// attributes; the time is ignored. The first record written after a
// suppressed run carries a "repeated" attribute with the number of records
// dropped.
type RepeatFilter struct {
	handler  slog.Handler
	minLevel slog.Level
	window   time.Duration
	// key covers the attributes added with WithAttrs and WithGroup
	key   uint64
	state *repeatState
}

type repeatState struct {
	mu   sync.Mutex
	seen map[uint64]*repeatEntry
	now  func() time.Time
}

type repeatEntry struct {
	last       time.Time
	suppressed int
}

// NewRepeatFilter wraps handler. A window of zero disables filtering.
func NewRepeatFilter(handler slog.Handler, minLevel slog.Level, window time.Duration) *RepeatFilter {
	return &RepeatFilter{
		handler:  handler,
		minLevel: minLevel,
		window:   window,
		state:    &repeatState{seen: make(map[uint64]*repeatEntry), now: time.Now},
	}
}

func (h *RepeatFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *RepeatFilter) Handle(ctx context.Context, r slog.Record) error {
	if h.window <= 0 || r.Level < h.minLevel {
		return h.handler.Handle(ctx, r)
	}

	key := h.recordKey(r)
	now := h.state.now()

	h.state.mu.Lock()
	entry, ok := h.state.seen[key]
	if ok && now.Sub(entry.last) < h.window {
		entry.suppressed++
		h.state.mu.Unlock()
		return nil
	}
	suppressed := 0
	if ok {
		suppressed = entry.suppressed
	}
	h.state.seen[key] = &repeatEntry{last: now}
	h.prune(now)
	h.state.mu.Unlock()

	if suppressed > 0 {
		r = r.Clone()
		r.AddAttrs(slog.Int("repeated", suppressed))
	}
	return h.handler.Handle(ctx, r)
}

// prune forgets entries that can no longer suppress anything. Must be
// called with the lock held.
func (h *RepeatFilter) prune(now time.Time) {
	if len(h.state.seen) < 256 {
		return
	}
	for k, e := range h.state.seen {
		if now.Sub(e.last) >= h.window && e.suppressed == 0 {
			delete(h.state.seen, k)
		}
	}
}

func (h *RepeatFilter) recordKey(r slog.Record) uint64 {
	d := xxhash.NewWithSeed(h.key)
	_, _ = d.WriteString(r.Level.String())
	_, _ = d.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		_, _ = d.WriteString(a.Key)
		_, _ = d.WriteString(a.Value.Resolve().String())
		return true
	})
	return d.Sum64()
}

func (h *RepeatFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	d := xxhash.New()
	for _, a := range attrs {
		_, _ = d.WriteString(a.Key)
		_, _ = d.WriteString(a.Value.Resolve().String())
	}
	return h.derive(h.handler.WithAttrs(attrs), d.Sum64())
}

func (h *RepeatFilter) WithGroup(name string) slog.Handler {
	return h.derive(h.handler.WithGroup(name), xxhash.Sum64String("group:"+name))
}

func (h *RepeatFilter) derive(handler slog.Handler, salt uint64) *RepeatFilter {
	return &RepeatFilter{
		handler:  handler,
		minLevel: h.minLevel,
		window:   h.window,
		key:      h.key*31 + salt,
		state:    h.state,
	}
}
