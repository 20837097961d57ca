// Package simulator plays a route back as a stream of synthetic fixes at a
// constant speed, standing in for a real location source.
package simulator

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"turn-by-turn/internal/nav/geometry"
	"turn-by-turn/internal/nav/location"
	"turn-by-turn/internal/nav/ticker"
	"turn-by-turn/pkg/types"
)

const (
	DEFAULT_SPEED         = 30.0 // m/s
	DEFAULT_POINT_SPACING = 5.0  // meters between generated points
	DEFAULT_LOOKAHEAD     = 5    // points ahead used for the heading
)

var ErrEmptyRoute = errors.New("simulator: route has no geometry")

// SimulationPoint is one precomputed sample along the route.
type SimulationPoint struct {
	Coordinate        types.Coordinate
	Heading           float64
	DistanceFromStart float64
	StepIndex         int
}

// Sample is the interpolated position at some distance along the route.
type Sample struct {
	Coordinate types.Coordinate
	Heading    float64
	Distance   float64
	StepIndex  int
}

type Option func(*Simulator)

func WithPointSpacing(meters float64) Option {
	return func(s *Simulator) {
		if meters > 0 {
			s.spacing = meters
		}
	}
}

func WithLookahead(points int) Option {
	return func(s *Simulator) {
		if points > 0 {
			s.lookahead = points
		}
	}
}

// WithStartTime sets the timestamp of the first emitted fix.
func WithStartTime(t time.Time) Option {
	return func(s *Simulator) {
		s.startedAt = t
	}
}

// Simulator is a location.Source driven by the tick loop. The point list is
// built once in New and never changes.
type Simulator struct {
	location.Broadcaster

	points    []SimulationPoint
	speed     float64
	spacing   float64
	lookahead int

	loop      *ticker.Loop
	handle    *ticker.Handle
	elapsed   time.Duration
	travelled float64
	startedAt time.Time
	done      bool
	onFinish  func()
}

// New precomputes the simulation points for route. A non-positive speed
// selects DEFAULT_SPEED.
func New(loop *ticker.Loop, route *types.Route, speed float64, opts ...Option) (*Simulator, error) {
	if err := route.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmptyRoute, err)
	}
	if speed <= 0 {
		speed = DEFAULT_SPEED
	}
	s := &Simulator{
		loop:      loop,
		speed:     speed,
		spacing:   DEFAULT_POINT_SPACING,
		lookahead: DEFAULT_LOOKAHEAD,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.points = buildPoints(route, s.spacing)
	return s, nil
}

// buildPoints walks every step polyline and inserts a point at least every
// spacing meters. Zero-length segments contribute nothing; the route's final
// vertex closes the list.
func buildPoints(route *types.Route, spacing float64) []SimulationPoint {
	var points []SimulationPoint
	total := 0.0
	heading := 0.0
	for si, step := range route.Steps {
		line := step.Polyline
		for i := 0; i < len(line)-1; i++ {
			a, b := line[i], line[i+1]
			length := geometry.Distance(a, b)
			if length == 0 {
				continue
			}
			heading = geometry.Bearing(a, b)
			n := int(math.Ceil(length / spacing))
			for k := 0; k < n; k++ {
				f := float64(k) / float64(n)
				points = append(points, SimulationPoint{
					Coordinate:        geometry.Interpolate(a, b, f),
					Heading:           heading,
					DistanceFromStart: total + f*length,
					StepIndex:         si,
				})
			}
			total += length
		}
	}
	if len(points) > 0 {
		heading = points[len(points)-1].Heading
	}
	points = append(points, SimulationPoint{
		Coordinate:        route.Destination(),
		Heading:           heading,
		DistanceFromStart: total,
		StepIndex:         len(route.Steps) - 1,
	})
	return points
}

func (s *Simulator) Points() []SimulationPoint {
	return s.points
}

// TotalDistance is the distance at which playback ends.
func (s *Simulator) TotalDistance() float64 {
	return s.points[len(s.points)-1].DistanceFromStart
}

func (s *Simulator) Speed() float64 {
	return s.speed
}

// SetSpeed changes the speed for the rest of the playback without jumping.
func (s *Simulator) SetSpeed(speed float64) {
	if speed > 0 {
		s.speed = speed
	}
}

// OnFinish registers a callback run once when playback reaches the end.
func (s *Simulator) OnFinish(fn func()) {
	s.onFinish = fn
}

// SampleAt returns the position at distance meters from the start. The
// heading points at the sample lookahead points beyond the bracketing pair;
// at the very end it falls back to the heading of the last segment.
func (s *Simulator) SampleAt(distance float64) Sample {
	last := len(s.points) - 1
	distance = math.Max(0, math.Min(distance, s.points[last].DistanceFromStart))

	hi := sort.Search(len(s.points), func(i int) bool {
		return s.points[i].DistanceFromStart > distance
	})
	if hi > last {
		p := s.points[last]
		return Sample{Coordinate: p.Coordinate, Heading: p.Heading, Distance: p.DistanceFromStart, StepIndex: p.StepIndex}
	}
	lo := hi - 1
	if lo < 0 {
		lo = 0
	}

	a, b := s.points[lo], s.points[hi]
	f := 0.0
	if span := b.DistanceFromStart - a.DistanceFromStart; span > 0 {
		f = (distance - a.DistanceFromStart) / span
	}
	pos := geometry.Interpolate(a.Coordinate, b.Coordinate, f)

	ahead := s.points[min(hi+s.lookahead, last)].Coordinate
	heading := a.Heading
	if ahead != pos {
		heading = geometry.Bearing(pos, ahead)
	}
	return Sample{Coordinate: pos, Heading: heading, Distance: distance, StepIndex: a.StepIndex}
}

// Start registers the simulator on the tick loop. Starting a running or
// finished simulator does nothing.
func (s *Simulator) Start() error {
	if s.loop == nil {
		return location.ErrNoLoop
	}
	if s.done || s.handle.Active() {
		return nil
	}
	s.handle = s.loop.Register(s)
	return nil
}

// Stop cancels future ticks. Safe to call at any time, any number of times.
func (s *Simulator) Stop() {
	s.handle.Release()
}

func (s *Simulator) Running() bool {
	return s.handle.Active()
}

func (s *Simulator) Done() bool {
	return s.done
}

// Travelled is the distance covered so far.
func (s *Simulator) Travelled() float64 {
	return s.travelled
}

// Tick advances playback by dt and emits one fix. Once the target distance
// reaches the end of the route the final point is emitted and the simulator
// stops itself.
func (s *Simulator) Tick(dt time.Duration) {
	if s.done {
		return
	}
	s.elapsed += dt
	s.travelled += s.speed * dt.Seconds()

	end := s.TotalDistance()
	sample := s.SampleAt(s.travelled)
	heading := sample.Heading
	s.Emit(types.NewLocationFix(sample.Coordinate, s.startedAt.Add(s.elapsed), 0), &heading)

	if s.travelled >= end {
		s.done = true
		s.Stop()
		if s.onFinish != nil {
			s.onFinish()
		}
	}
}
