// Package directions is the boundary to route computation. The tracker only
// ever sees a Provider; the implementations here are offline: a library of
// pre-planned routes that can be rejoined from any point, and a beeline.
package directions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"turn-by-turn/internal/nav/geometry"
	"turn-by-turn/pkg/types"
)

var (
	ErrNoRoute           = errors.New("directions: no route found")
	ErrUnsupportedFormat = errors.New("directions: unsupported route file format")
)

// Request asks for a single best route. Waypoints are not supported.
type Request struct {
	Source      types.Coordinate
	Destination types.Coordinate
	Transport   types.TransportType
}

type Provider interface {
	Route(ctx context.Context, req Request) (*types.Route, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (*types.Route, error)

func (f ProviderFunc) Route(ctx context.Context, req Request) (*types.Route, error) {
	return f(ctx, req)
}

// Typical travel speeds in m/s, used when a route file carries no durations.
var TransportSpeed = map[types.TransportType]float64{
	types.AUTOMOBILE: 13.9,
	types.WALKING:    1.4,
	types.TRANSIT:    8.3,
	types.ANY:        13.9,
}

func travelTime(meters float64, transport types.TransportType) time.Duration {
	speed, ok := TransportSpeed[transport]
	if !ok || speed <= 0 {
		speed = TransportSpeed[types.AUTOMOBILE]
	}
	return time.Duration(meters / speed * float64(time.Second))
}

// NewStep builds a step from geometry. A non-positive distance or duration
// is derived from the polyline length and the transport speed.
func NewStep(instruction, notice string, polyline []types.Coordinate, transport types.TransportType, distance float64, duration time.Duration) types.Step {
	if distance <= 0 {
		distance = geometry.Length(polyline)
	}
	if duration <= 0 {
		duration = travelTime(distance, transport)
	}
	return types.Step{
		Instruction:        instruction,
		Notice:             notice,
		Polyline:           polyline,
		Distance:           distance,
		ExpectedTravelTime: duration,
		Transport:          transport,
	}
}

// Direct answers every request with a straight single-step route.
type Direct struct{}

func (Direct) Route(ctx context.Context, req Request) (*types.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !req.Source.Valid() || !req.Destination.Valid() {
		return nil, fmt.Errorf("%w: %s -> %s", types.ErrInvalidCoordinate, req.Source, req.Destination)
	}
	step := NewStep("Head to the destination", "", []types.Coordinate{req.Source, req.Destination}, req.Transport, 0, 0)
	return types.NewRoute("direct", req.Transport, []types.Step{step})
}

// Fallback tries each provider in order and returns the first route.
type Fallback []Provider

func (f Fallback) Route(ctx context.Context, req Request) (*types.Route, error) {
	var errs []error
	for _, p := range f {
		route, err := p.Route(ctx, req)
		if err == nil {
			return route, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrNoRoute
	}
	return nil, errors.Join(errs...)
}

func scaleDuration(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}
