// Package location delivers position fixes to the navigation session. A Source
// is always handed to its consumers explicitly; there is no process-wide
// location manager.
package location

import (
	"errors"

	"turn-by-turn/pkg/types"
)

var ErrNoLoop = errors.New("location: source needs a tick loop")

// Handler receives one fix. heading is nil when the source has no course
// information for the fix.
type Handler func(fix types.LocationFix, heading *float64)

type Source interface {
	Subscribe(h Handler) (unsubscribe func())
	Start() error
	Stop()
}

type subscription struct {
	handler Handler
	active  bool
}

// Broadcaster fans fixes out to subscribers in subscription order. Sources
// embed it; it is not safe for concurrent use.
type Broadcaster struct {
	subs []*subscription
}

func (b *Broadcaster) Subscribe(h Handler) func() {
	s := &subscription{handler: h, active: true}
	b.subs = append(b.subs, s)
	return func() {
		if !s.active {
			return
		}
		s.active = false
		kept := b.subs[:0]
		for _, other := range b.subs {
			if other.active {
				kept = append(kept, other)
			}
		}
		b.subs = kept
	}
}

func (b *Broadcaster) Emit(fix types.LocationFix, heading *float64) {
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	for _, s := range subs {
		if s.active {
			s.handler(fix, heading)
		}
	}
}

// Subscribers reports the number of active handlers.
func (b *Broadcaster) Subscribers() int {
	return len(b.subs)
}
