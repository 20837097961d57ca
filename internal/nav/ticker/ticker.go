// Package ticker is the shared display-tick scheduler. A host loop (the
// ebiten Update callback, or a fixed-step replay) calls Advance at its own
// cadence and every registered Tickable runs once, in registration order, on
// that same goroutine.
package ticker

import "time"

type Tickable interface {
	Tick(dt time.Duration)
}

// TickFunc adapts a plain function to Tickable.
type TickFunc func(dt time.Duration)

func (f TickFunc) Tick(dt time.Duration) { f(dt) }

type entry struct {
	id       int
	tickable Tickable
	released bool
}

// Loop is not safe for concurrent use; everything it drives is single threaded.
type Loop struct {
	entries []*entry
	nextID  int
	elapsed time.Duration
}

func NewLoop() *Loop {
	return &Loop{}
}

// Handle is the registration token. Releasing it is a mandatory teardown
// step: a leaked handle keeps calling into state its owner has discarded.
type Handle struct {
	loop  *Loop
	entry *entry
}

func (l *Loop) Register(t Tickable) *Handle {
	e := &entry{id: l.nextID, tickable: t}
	l.nextID++
	l.entries = append(l.entries, e)
	return &Handle{loop: l, entry: e}
}

// Release unregisters the tickable. Safe to call more than once, and safe to
// call from inside a Tick.
func (h *Handle) Release() {
	if h == nil || h.entry.released {
		return
	}
	h.entry.released = true
	h.loop.compact()
}

func (h *Handle) Active() bool {
	return h != nil && !h.entry.released
}

func (l *Loop) compact() {
	kept := l.entries[:0]
	for _, e := range l.entries {
		if !e.released {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(l.entries); i++ {
		l.entries[i] = nil
	}
	l.entries = kept
}

// Advance runs one tick. Tickables registered during the tick first run on
// the next one; tickables released during the tick are skipped.
func (l *Loop) Advance(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	l.elapsed += dt

	snapshot := make([]*entry, len(l.entries))
	copy(snapshot, l.entries)
	for _, e := range snapshot {
		if e.released {
			continue
		}
		e.tickable.Tick(dt)
	}
}

// Len reports how many tickables are registered.
func (l *Loop) Len() int {
	return len(l.entries)
}

func (l *Loop) Elapsed() time.Duration {
	return l.elapsed
}

// Interval converts a tick rate in Hz to a per-tick duration.
func Interval(rate float64) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / rate)
}
