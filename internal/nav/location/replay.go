package location

import (
	"fmt"
	"time"

	"turn-by-turn/internal/nav/geometry"
	"turn-by-turn/internal/nav/ticker"
	"turn-by-turn/pkg/types"

	"github.com/tkrajina/gpxgo/gpx"
)

const (
	DEFAULT_REPLAY_INTERVAL = time.Second // pacing for tracks without timestamps
	METERS_PER_HDOP         = 5.0
)

type replayPoint struct {
	fix     types.LocationFix
	offset  time.Duration
	heading *float64
}

// Replay plays a recorded GPX track back through the tick loop, paced by the
// track's own timestamps.
type Replay struct {
	Broadcaster

	loop    *ticker.Loop
	handle  *ticker.Handle
	points  []replayPoint
	next    int
	elapsed time.Duration
	speedup float64
}

func LoadReplay(loop *ticker.Loop, path string) (*Replay, error) {
	g, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX file: %w", err)
	}
	return NewReplay(loop, g)
}

// NewReplay flattens every track segment of g into one fix sequence.
func NewReplay(loop *ticker.Loop, g *gpx.GPX) (*Replay, error) {
	var raw []gpx.GPXPoint
	for _, track := range g.Tracks {
		for _, segment := range track.Segments {
			raw = append(raw, segment.Points...)
		}
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("gpx has no track points: %w", types.ErrEmptyRoute)
	}

	timed := !raw[0].Timestamp.IsZero()
	start := raw[0].Timestamp
	r := &Replay{loop: loop, speedup: 1}
	var prev *types.Coordinate
	for i, p := range raw {
		c := types.NewCoordinate(p.Latitude, p.Longitude)
		if !c.Valid() {
			return nil, fmt.Errorf("track point %d: %w: %s", i, types.ErrInvalidCoordinate, c)
		}

		offset := time.Duration(i) * DEFAULT_REPLAY_INTERVAL
		ts := start.Add(offset)
		if timed && !p.Timestamp.IsZero() {
			offset = p.Timestamp.Sub(start)
			ts = p.Timestamp
		}
		if n := len(r.points); n > 0 && offset < r.points[n-1].offset {
			offset = r.points[n-1].offset
		}

		accuracy := 0.0
		if p.HorizontalDilution.NotNull() {
			accuracy = p.HorizontalDilution.Value() * METERS_PER_HDOP
		}

		var heading *float64
		if prev != nil && *prev != c {
			h := geometry.Bearing(*prev, c)
			heading = &h
		}
		r.points = append(r.points, replayPoint{
			fix:     types.NewLocationFix(c, ts, accuracy),
			offset:  offset,
			heading: heading,
		})
		prev = &c
	}
	return r, nil
}

// SetSpeedup plays the track faster (>1) or slower (<1) than recorded.
func (r *Replay) SetSpeedup(f float64) {
	if f > 0 {
		r.speedup = f
	}
}

func (r *Replay) Start() error {
	if r.loop == nil {
		return ErrNoLoop
	}
	if r.handle.Active() || r.Done() {
		return nil
	}
	r.handle = r.loop.Register(r)
	return nil
}

func (r *Replay) Stop() {
	r.handle.Release()
}

func (r *Replay) Running() bool {
	return r.handle.Active()
}

func (r *Replay) Done() bool {
	return r.next >= len(r.points)
}

func (r *Replay) Len() int {
	return len(r.points)
}

// Duration is the recorded length of the track.
func (r *Replay) Duration() time.Duration {
	return r.points[len(r.points)-1].offset
}

// Progress reports the share of fixes already delivered.
func (r *Replay) Progress() float64 {
	return float64(r.next) / float64(len(r.points))
}

// Tick delivers every fix whose recorded offset has been reached and stops
// the replay after the last one.
func (r *Replay) Tick(dt time.Duration) {
	r.elapsed += time.Duration(float64(dt) * r.speedup)
	for r.next < len(r.points) && r.points[r.next].offset <= r.elapsed {
		p := r.points[r.next]
		r.next++
		r.Emit(p.fix, p.heading)
	}
	if r.Done() {
		r.Stop()
	}
}
