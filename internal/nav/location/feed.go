package location

import (
	"time"

	"turn-by-turn/internal/nav/ticker"
	"turn-by-turn/pkg/types"
)

const DEFAULT_FEED_BUFFER = 64

type pushed struct {
	fix     types.LocationFix
	heading *float64
}

// Feed is a push source for fixes produced elsewhere, such as a GPS reader
// goroutine or manual input. Send may be called from any goroutine; the fixes
// are handed to subscribers on the tick loop.
type Feed struct {
	Broadcaster

	loop    *ticker.Loop
	handle  *ticker.Handle
	pending chan pushed
}

func NewFeed(loop *ticker.Loop, buffer int) *Feed {
	if buffer <= 0 {
		buffer = DEFAULT_FEED_BUFFER
	}
	return &Feed{loop: loop, pending: make(chan pushed, buffer)}
}

// Send queues a fix. It never blocks: when the buffer is full the fix is
// dropped and false is returned.
func (f *Feed) Send(fix types.LocationFix, heading *float64) bool {
	if heading != nil {
		h := *heading
		heading = &h
	}
	select {
	case f.pending <- pushed{fix: fix, heading: heading}:
		return true
	default:
		return false
	}
}

func (f *Feed) Start() error {
	if f.loop == nil {
		return ErrNoLoop
	}
	if f.handle.Active() {
		return nil
	}
	f.handle = f.loop.Register(f)
	return nil
}

func (f *Feed) Stop() {
	f.handle.Release()
}

func (f *Feed) Running() bool {
	return f.handle.Active()
}

// Tick delivers every queued fix, oldest first.
func (f *Feed) Tick(dt time.Duration) {
	for {
		select {
		case p := <-f.pending:
			f.Emit(p.fix, p.heading)
		default:
			return
		}
	}
}
