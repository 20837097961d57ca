package directions

import (
	"context"
	"fmt"
	"math"

	"turn-by-turn/internal/nav/geometry"
	"turn-by-turn/pkg/types"
)

const (
	DEFAULT_DESTINATION_TOLERANCE = 50.0 // meters
	JOIN_TOLERANCE                = 1.0  // meters; closer than this needs no connector step
)

// Library answers requests from a set of pre-planned routes. A request is
// served by any route that ends near the requested destination: the source is
// projected onto it and the traveler is led back to the route from there.
type Library struct {
	routes    []*types.Route
	tolerance float64
}

func NewLibrary(routes ...*types.Route) *Library {
	return &Library{routes: routes, tolerance: DEFAULT_DESTINATION_TOLERANCE}
}

// WithTolerance sets how far a route's end may be from the destination.
func (l *Library) WithTolerance(meters float64) *Library {
	if meters > 0 {
		l.tolerance = meters
	}
	return l
}

func (l *Library) Add(route *types.Route) {
	l.routes = append(l.routes, route)
}

func (l *Library) Len() int {
	return len(l.routes)
}

func (l *Library) Routes() []*types.Route {
	return l.routes
}

func (l *Library) Route(ctx context.Context, req Request) (*types.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var best *types.Route
	for _, r := range l.routes {
		if !transportMatches(r.Transport, req.Transport) {
			continue
		}
		if geometry.Distance(r.Destination(), req.Destination) > l.tolerance {
			continue
		}
		candidate, err := Rejoin(r, req.Source)
		if err != nil {
			continue
		}
		if best == nil || candidate.Distance < best.Distance {
			best = candidate
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s -> %s (%s)", ErrNoRoute, req.Source, req.Destination, req.Transport)
	}
	return best, nil
}

func transportMatches(have, want types.TransportType) bool {
	return have == want || have == types.ANY || want == types.ANY
}

// Rejoin returns the part of route that lies ahead of source, prefixed with a
// connector step when source is off the route. The step the source projects
// onto is cut at the projection and its distance and time are prorated.
func Rejoin(route *types.Route, source types.Coordinate) (*types.Route, error) {
	if err := route.Validate(); err != nil {
		return nil, err
	}

	bestStep := -1
	var best geometry.Projection
	best.Distance = math.Inf(1)
	for i, step := range route.Steps {
		proj, ok := geometry.Project(source, step.Polyline)
		if ok && proj.Distance < best.Distance {
			bestStep, best = i, proj
		}
	}
	if bestStep < 0 {
		return nil, ErrNoRoute
	}

	var steps []types.Step
	if best.Distance > JOIN_TOLERANCE {
		steps = append(steps, NewStep("Head to the route", "",
			[]types.Coordinate{source, best.Point}, route.Transport, best.Distance, 0))
	}

	step := route.Steps[bestStep]
	rest := geometry.Remainder(step.Polyline, best)
	full := geometry.Length(step.Polyline)
	portion := geometry.Length(rest)
	ratio := 1.0
	if full > 0 {
		ratio = portion / full
	}
	last := bestStep == len(route.Steps)-1
	if portion > 0 || last {
		cut := step
		cut.Polyline = rest
		cut.Distance = step.Distance * ratio
		cut.ExpectedTravelTime = scaleDuration(step.ExpectedTravelTime, ratio)
		steps = append(steps, cut)
	}
	steps = append(steps, route.Steps[bestStep+1:]...)

	return types.NewRoute(route.Name, route.Transport, steps)
}
