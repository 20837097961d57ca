package progress

import (
	"turn-by-turn/internal/nav/directions"
	"turn-by-turn/pkg/types"
)

// Event is one of StepChanged, DistanceUpdated, RouteDeviated, RouteUpdated,
// Arrived or RerouteFailed.
type Event interface {
	event()
}

type StepChanged struct {
	Step NavigationStep
}

type DistanceUpdated struct {
	Distance float64 // meters to the next maneuver
}

// RouteDeviated carries the request the host must send to the directions
// provider: current position to the original destination, same transport.
type RouteDeviated struct {
	Fix     types.LocationFix
	OffBy   float64
	Request directions.Request
}

type RouteUpdated struct {
	Route *types.Route
}

type Arrived struct {
	Fix types.LocationFix
}

type RerouteFailed struct {
	Request directions.Request
	Err     error
}

func (StepChanged) event()     {}
func (DistanceUpdated) event() {}
func (RouteDeviated) event()   {}
func (RouteUpdated) event()    {}
func (Arrived) event()         {}
func (RerouteFailed) event()   {}

type Listener interface {
	StepChanged(step NavigationStep)
	DistanceUpdated(distance float64)
	RouteDeviated(e RouteDeviated)
	RouteUpdated(route *types.Route)
	Arrived(fix types.LocationFix)
	RerouteFailed(err error)
}

// ListenerFuncs is a Listener whose unset callbacks are no-ops.
type ListenerFuncs struct {
	OnStepChanged     func(NavigationStep)
	OnDistanceUpdated func(float64)
	OnRouteDeviated   func(RouteDeviated)
	OnRouteUpdated    func(*types.Route)
	OnArrived         func(types.LocationFix)
	OnRerouteFailed   func(error)
}

func (l ListenerFuncs) StepChanged(step NavigationStep) {
	if l.OnStepChanged != nil {
		l.OnStepChanged(step)
	}
}

func (l ListenerFuncs) DistanceUpdated(distance float64) {
	if l.OnDistanceUpdated != nil {
		l.OnDistanceUpdated(distance)
	}
}

func (l ListenerFuncs) RouteDeviated(e RouteDeviated) {
	if l.OnRouteDeviated != nil {
		l.OnRouteDeviated(e)
	}
}

func (l ListenerFuncs) RouteUpdated(route *types.Route) {
	if l.OnRouteUpdated != nil {
		l.OnRouteUpdated(route)
	}
}

func (l ListenerFuncs) Arrived(fix types.LocationFix) {
	if l.OnArrived != nil {
		l.OnArrived(fix)
	}
}

func (l ListenerFuncs) RerouteFailed(err error) {
	if l.OnRerouteFailed != nil {
		l.OnRerouteFailed(err)
	}
}

// Dispatch delivers events in order, synchronously, on the caller's goroutine.
func Dispatch(l Listener, events []Event) {
	if l == nil {
		return
	}
	for _, e := range events {
		switch e := e.(type) {
		case StepChanged:
			l.StepChanged(e.Step)
		case DistanceUpdated:
			l.DistanceUpdated(e.Distance)
		case RouteDeviated:
			l.RouteDeviated(e)
		case RouteUpdated:
			l.RouteUpdated(e.Route)
		case Arrived:
			l.Arrived(e.Fix)
		case RerouteFailed:
			l.RerouteFailed(e.Err)
		}
	}
}
