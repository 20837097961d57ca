package session

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"turn-by-turn/internal/nav/camera"
	"turn-by-turn/internal/nav/directions"
	"turn-by-turn/internal/nav/geometry"
	"turn-by-turn/internal/nav/location"
	"turn-by-turn/internal/nav/progress"
	"turn-by-turn/internal/nav/ticker"
	"turn-by-turn/pkg/types"

	"github.com/labstack/gommon/log"
)

const frame = time.Second / 60

var (
	origin = types.NewCoordinate(51.5007, -0.1246)
	epoch  = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
)

type recorder struct {
	progress.ListenerFuncs
	steps, deviations, updates, failures, arrivals int
}

func newRecorder() *recorder {
	r := &recorder{}
	r.ListenerFuncs = progress.ListenerFuncs{
		OnStepChanged:   func(progress.NavigationStep) { r.steps++ },
		OnRouteDeviated: func(progress.RouteDeviated) { r.deviations++ },
		OnRouteUpdated:  func(*types.Route) { r.updates++ },
		OnRerouteFailed: func(error) { r.failures++ },
		OnArrived:       func(types.LocationFix) { r.arrivals++ },
	}
	return r
}

type overlays struct {
	routeLine []types.Coordinate
	trail     []types.Coordinate
}

func (o *overlays) SetRouteLine(line []types.Coordinate) { o.routeLine = line }
func (o *overlays) SetTrail(trail []types.Coordinate)    { o.trail = trail }

func testRoute(t *testing.T) *types.Route {
	t.Helper()
	corner := geometry.Offset(origin, 200, 90)
	end := geometry.Offset(corner, 200, 0)
	route, err := types.NewRoute("test", types.AUTOMOBILE, []types.Step{
		directions.NewStep("Head east", "", []types.Coordinate{origin, corner}, types.AUTOMOBILE, 0, 0),
		directions.NewStep("Turn left onto Whitehall", "", []types.Coordinate{corner, end}, types.AUTOMOBILE, 0, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	return route
}

func quietLogger() *log.Logger {
	l := log.New("test")
	l.SetOutput(io.Discard)
	return l
}

type harness struct {
	loop     *ticker.Loop
	session  *Session
	feed     *location.Feed
	listener *recorder
	overlays *overlays
	route    *types.Route
}

func newHarness(t *testing.T, provider directions.Provider) *harness {
	t.Helper()
	h := &harness{
		loop:     ticker.NewLoop(),
		listener: newRecorder(),
		overlays: &overlays{},
		route:    testRoute(t),
	}
	if provider == nil {
		provider = directions.Fallback{directions.NewLibrary(h.route), directions.Direct{}}
	}
	h.session = New(h.loop, provider, camera.New(nil, camera.DefaultConfig()), Options{
		Listener: h.listener,
		Overlays: h.overlays,
		Logger:   quietLogger(),
		Now:      func() time.Time { return epoch },
	})
	t.Cleanup(h.session.Close)

	req := directions.Request{Source: origin, Destination: h.route.Destination(), Transport: types.AUTOMOBILE}
	if err := h.session.Start(context.Background(), req); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.feed = location.NewFeed(h.loop, 0)
	if err := h.session.Attach(h.feed); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return h
}

func (h *harness) send(c types.Coordinate) {
	h.feed.Send(types.NewLocationFix(c, epoch, 5), nil)
	h.loop.Advance(frame)
}

// settle ticks until the reroute answer has been applied.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.session.Pending() {
		if time.Now().After(deadline) {
			t.Fatal("reroute answer never arrived")
		}
		time.Sleep(time.Millisecond)
		h.loop.Advance(frame)
	}
}

func TestSessionFollowsRoute(t *testing.T) {
	h := newHarness(t, nil)

	if h.listener.updates != 1 {
		t.Errorf("expected the initial RouteUpdated, got %d", h.listener.updates)
	}
	if len(h.overlays.routeLine) != 3 {
		t.Errorf("expected the route line to be drawn, got %d points", len(h.overlays.routeLine))
	}

	for d := 0.0; d <= 200; d += 10 {
		h.send(geometry.Offset(origin, d, 90))
	}
	corner := h.route.Steps[0].End()
	for d := 10.0; d <= 200; d += 10 {
		h.send(geometry.Offset(corner, d, 0))
	}

	if h.listener.steps != 1 || h.listener.arrivals != 1 || h.listener.deviations != 0 {
		t.Errorf("unexpected events: %+v", h.listener)
	}
	if len(h.session.Trail()) != 41 || len(h.overlays.trail) != 41 {
		t.Errorf("expected every fix on the trail, got %d", len(h.session.Trail()))
	}
	if h.session.Progress().State != progress.ARRIVED {
		t.Errorf("expected ARRIVED, got %s", h.session.Progress().State)
	}
	step, ok := h.session.CurrentStep()
	if !ok || step.Index != 1 || !step.ETA.Equal(epoch) {
		t.Errorf("unexpected banner %+v", step)
	}
	for i := 0; i < 30; i++ {
		h.loop.Advance(frame)
	}
	if h.session.Camera().Pose().Center != geometry.Offset(corner, 200, 0) {
		t.Error("camera should follow the last fix")
	}
}

func TestSessionReroutes(t *testing.T) {
	h := newHarness(t, nil)
	h.send(origin)
	h.send(geometry.Offset(origin, 50, 90))

	off := geometry.Offset(geometry.Offset(origin, 60, 90), 80, 180)
	h.send(off)
	if h.listener.deviations != 1 {
		t.Fatalf("expected one deviation, got %d", h.listener.deviations)
	}
	if len(h.session.Trail()) != 0 {
		t.Errorf("deviation should clear the trail, got %d points", len(h.session.Trail()))
	}

	h.settle(t)
	if h.listener.updates != 2 {
		t.Fatalf("expected a replacement route, got %d updates", h.listener.updates)
	}
	route := h.session.Route()
	if route.Origin() != off || route.Steps[0].Instruction != "Head to the route" {
		t.Errorf("new route should start at the deviation point with a connector, got %+v", route.Steps[0])
	}
	if route.Destination() != h.route.Destination() {
		t.Errorf("destination must be kept, got %v", route.Destination())
	}
	if h.session.Progress().State != progress.UNINITIALIZED {
		t.Errorf("new route waits for its priming fix, got %s", h.session.Progress().State)
	}

	var urgent int
	for _, e := range h.session.EventLog {
		if e.IsUrgent {
			urgent++
		}
	}
	if urgent != 1 {
		t.Errorf("expected the deviation in the event log, got %+v", h.session.EventLog)
	}
}

func TestSessionRerouteFailure(t *testing.T) {
	var calls atomic.Int32
	route := testRoute(t)
	provider := directions.ProviderFunc(func(ctx context.Context, req directions.Request) (*types.Route, error) {
		if calls.Add(1) == 1 {
			return route, nil
		}
		return nil, directions.ErrNoRoute
	})
	h := newHarness(t, provider)
	h.send(origin)

	off := geometry.Offset(origin, 100, 180)
	h.send(off)
	h.settle(t)
	if h.listener.failures != 1 {
		t.Fatalf("expected RerouteFailed, got %d", h.listener.failures)
	}
	if h.session.Route() != route {
		t.Error("a failed reroute must keep the old route")
	}

	h.send(off)
	if h.listener.deviations != 2 {
		t.Errorf("a failed reroute should allow a new request, got %d deviations", h.listener.deviations)
	}
	h.settle(t)
	if calls.Load() != 3 {
		t.Errorf("expected 3 provider calls, got %d", calls.Load())
	}
}

func TestSessionStartFailure(t *testing.T) {
	loop := ticker.NewLoop()
	failing := directions.ProviderFunc(func(context.Context, directions.Request) (*types.Route, error) {
		return nil, directions.ErrNoRoute
	})
	s := New(loop, failing, nil, Options{Logger: quietLogger()})
	defer s.Close()

	err := s.Start(context.Background(), directions.Request{Source: origin, Destination: origin})
	if !errors.Is(err, directions.ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
	// fixes without a route are dropped, not fatal
	s.HandleFix(types.NewLocationFix(origin, epoch, 5), nil)
	if len(s.Trail()) != 0 {
		t.Error("fix without a route should not be recorded")
	}
}

func TestSessionClose(t *testing.T) {
	h := newHarness(t, nil)
	if h.loop.Len() != 3 {
		t.Fatalf("expected session, camera and feed on the loop, got %d", h.loop.Len())
	}
	h.session.Close()
	h.session.Close()
	if h.loop.Len() != 0 {
		t.Errorf("close must release every registration, %d left", h.loop.Len())
	}
	if h.feed.Running() {
		t.Error("close must stop the source")
	}
	if err := h.session.Attach(h.feed); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestEventLogIsBounded(t *testing.T) {
	s := New(nil, directions.Direct{}, nil, Options{Logger: quietLogger(), EventLogSize: 3, Now: func() time.Time { return epoch }})
	defer s.Close()
	for _, m := range []string{"a", "b", "c", "d", "e"} {
		s.addLogEntry("test", m, false)
	}
	if len(s.EventLog) != 3 || s.EventLog[0].Message != "c" || s.EventLog[2].Message != "e" {
		t.Errorf("unexpected log %+v", s.EventLog)
	}
}
