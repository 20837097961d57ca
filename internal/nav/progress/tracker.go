// Package progress tracks where the traveler is on the active route: which
// step they are on, how far and how long remains, and whether they have left
// the route corridor and need a new route.
package progress

import (
	"errors"
	"math"
	"time"

	"turn-by-turn/internal/nav/directions"
	"turn-by-turn/internal/nav/geometry"
	"turn-by-turn/pkg/types"
)

const (
	DEFAULT_CORRIDOR_WIDTH    = 25.0 // meters
	DEFAULT_ARRIVAL_THRESHOLD = 20.0 // meters
)

var ErrNoRoute = errors.New("progress: no active route")

type TrackerState int

const (
	UNINITIALIZED TrackerState = iota
	TRACKING
	DEVIATED
	ARRIVED
)

var StateStringMap = map[TrackerState]string{
	UNINITIALIZED: "UNINITIALIZED",
	TRACKING:      "TRACKING",
	DEVIATED:      "DEVIATED",
	ARRIVED:       "ARRIVED",
}

func (s TrackerState) String() string {
	return StateStringMap[s]
}

// Progress is an immutable snapshot of the tracker after one fix.
type Progress struct {
	State              TrackerState
	StepIndex          int
	DistanceRemaining  float64
	TimeRemaining      time.Duration
	DistanceToManeuver float64
	Fix                types.LocationFix
}

// Result is what a single Update produced.
type Result struct {
	Progress Progress
	Events   []Event
}

type Option func(*Tracker)

func WithCorridorWidth(meters float64) Option {
	return func(t *Tracker) {
		if meters > 0 {
			t.corridorWidth = meters
		}
	}
}

func WithArrivalThreshold(meters float64) Option {
	return func(t *Tracker) {
		if meters > 0 {
			t.arrivalThreshold = meters
		}
	}
}

// WithClock replaces time.Now for ETA computation.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// Tracker owns the route progress of one navigation session. It holds a read
// reference to the route and is only ever called from the host loop.
type Tracker struct {
	route     *types.Route
	remaining []types.Coordinate // route polyline from the current step onward
	progress  Progress

	corridorWidth    float64
	arrivalThreshold float64
	awaitingRoute    bool

	now func() time.Time
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		corridorWidth:    DEFAULT_CORRIDOR_WIDTH,
		arrivalThreshold: DEFAULT_ARRIVAL_THRESHOLD,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetRoute replaces the active route. Progress starts over and is primed by
// the next fix.
func (t *Tracker) SetRoute(route *types.Route) ([]Event, error) {
	if err := route.Validate(); err != nil {
		return nil, err
	}
	t.route = route
	t.remaining = route.Polyline(0)
	t.progress = Progress{State: UNINITIALIZED}
	t.awaitingRoute = false
	return []Event{RouteUpdated{Route: route}}, nil
}

func (t *Tracker) Route() *types.Route {
	return t.route
}

func (t *Tracker) Progress() Progress {
	return t.progress
}

func (t *Tracker) CorridorWidth() float64 {
	return t.corridorWidth
}

// RerouteFailed re-arms deviation handling after the directions provider
// could not deliver a new route, so the next off-corridor fix asks again.
func (t *Tracker) RerouteFailed() {
	t.awaitingRoute = false
}

// Update consumes one location fix.
//
// The first fix after SetRoute only primes progress with the route totals.
// Later fixes are projected onto the remaining route; a fix outside the
// corridor ends processing with a RouteDeviated event. Otherwise the step may
// advance (at most one step per fix) and the remaining distance and time are
// recomputed from the fix position.
func (t *Tracker) Update(fix types.LocationFix) (Result, error) {
	if t.route == nil {
		return Result{}, ErrNoRoute
	}

	if t.progress.State == UNINITIALIZED {
		t.progress = Progress{
			State:              TRACKING,
			StepIndex:          0,
			DistanceRemaining:  t.route.Distance,
			TimeRemaining:      t.route.ExpectedTravelTime,
			DistanceToManeuver: t.route.Steps[0].Distance,
			Fix:                fix,
		}
		return Result{Progress: t.progress}, nil
	}

	if t.progress.State != ARRIVED {
		_, offBy := geometry.ClosestPointOnPolyline(fix.Coordinate, t.remaining)
		if offBy > t.corridorWidth {
			return t.deviate(fix, offBy), nil
		}
	}

	var events []Event
	state := t.progress.State
	if state == DEVIATED {
		state = TRACKING
	}

	idx := t.progress.StepIndex
	toEnd := geometry.Distance(fix.Coordinate, t.route.Steps[idx].End())
	advanced := false
	arrived := false
	if toEnd < t.arrivalThreshold {
		if idx+1 < len(t.route.Steps) {
			idx++
			advanced = true
			t.remaining = t.route.Polyline(idx)
			toEnd = geometry.Distance(fix.Coordinate, t.route.Steps[idx].End())
		} else if state != ARRIVED {
			state = ARRIVED
			arrived = true
		}
	}

	distance, remainingTime := t.remainingFrom(idx, toEnd)
	t.progress = Progress{
		State:              state,
		StepIndex:          idx,
		DistanceRemaining:  distance,
		TimeRemaining:      remainingTime,
		DistanceToManeuver: toEnd,
		Fix:                fix,
	}

	if advanced {
		events = append(events, StepChanged{Step: t.navigationStep()})
	}
	events = append(events, DistanceUpdated{Distance: toEnd})
	if arrived {
		events = append(events, Arrived{Fix: fix})
	}
	return Result{Progress: t.progress, Events: events}, nil
}

func (t *Tracker) deviate(fix types.LocationFix, offBy float64) Result {
	t.progress.State = DEVIATED
	if t.awaitingRoute {
		return Result{Progress: t.progress}
	}
	t.awaitingRoute = true

	e := RouteDeviated{
		Fix:   fix,
		OffBy: offBy,
		Request: directions.Request{
			Source:      fix.Coordinate,
			Destination: t.route.Destination(),
			Transport:   t.route.Transport,
		},
	}
	return Result{Progress: t.progress, Events: []Event{e}}
}

// remainingFrom sums the live distance to the end of step idx with the full
// length of every later step. Time is prorated per step by distance.
func (t *Tracker) remainingFrom(idx int, toEnd float64) (float64, time.Duration) {
	step := t.route.Steps[idx]

	fraction := 0.0
	if step.Distance > 0 {
		fraction = math.Max(0, math.Min(1, toEnd/step.Distance))
	}
	distance := toEnd
	remaining := time.Duration(float64(step.ExpectedTravelTime) * fraction)

	for _, s := range t.route.Steps[idx+1:] {
		distance += s.Distance
		remaining += s.ExpectedTravelTime
	}
	return distance, remaining
}

func (t *Tracker) navigationStep() NavigationStep {
	p := t.progress
	step := t.route.Steps[p.StepIndex]
	return NavigationStep{
		Index:             p.StepIndex,
		Instruction:       step.Instruction,
		Notice:            step.Notice,
		Distance:          p.DistanceToManeuver,
		Transport:         t.route.Transport,
		ETA:               t.now().Add(p.TimeRemaining),
		RemainingDistance: p.DistanceRemaining,
		RemainingTime:     p.TimeRemaining,
	}
}

// CurrentStep builds a banner step from the latest progress, with the ETA
// taken at call time.
func (t *Tracker) CurrentStep() (NavigationStep, bool) {
	if t.route == nil || t.progress.State == UNINITIALIZED {
		return NavigationStep{}, false
	}
	return t.navigationStep(), true
}

// NextStep returns the step after the current one, if any.
func (t *Tracker) NextStep() (types.Step, bool) {
	if t.route == nil {
		return types.Step{}, false
	}
	next := t.progress.StepIndex + 1
	if next >= len(t.route.Steps) {
		return types.Step{}, false
	}
	return t.route.Steps[next], true
}
