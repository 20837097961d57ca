// Package session wires one navigation run together: a location source feeds
// the progress tracker and the camera, deviations are turned into reroute
// requests, and the results are reported to a listener and the map overlays.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"turn-by-turn/internal/nav/camera"
	"turn-by-turn/internal/nav/directions"
	"turn-by-turn/internal/nav/location"
	"turn-by-turn/internal/nav/progress"
	"turn-by-turn/internal/nav/ticker"
	"turn-by-turn/pkg/types"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

const DEFAULT_EVENT_LOG_SIZE = 50

var ErrClosed = errors.New("session: closed")

// Overlays receives the polylines drawn on top of the map.
type Overlays interface {
	SetRouteLine(line []types.Coordinate)
	SetTrail(trail []types.Coordinate)
}

type Options struct {
	Tracker      []progress.Option
	Listener     progress.Listener
	Overlays     Overlays
	Logger       *log.Logger
	EventLogSize int
	Now          func() time.Time
}

type reroute struct {
	req   directions.Request
	route *types.Route
	err   error
}

type Session struct {
	ID uuid.UUID

	tracker  *progress.Tracker
	camera   *camera.Controller
	provider directions.Provider
	listener progress.Listener
	overlays Overlays
	logger   *log.Logger
	now      func() time.Time

	loop        *ticker.Loop
	handle      *ticker.Handle
	source      location.Source
	unsubscribe func()

	trail           []types.Coordinate
	EventLog        []LogEntry
	maxEventLogSize int

	ctx      context.Context
	cancel   context.CancelFunc
	replies  chan reroute
	inflight int
	closed   bool
}

// New creates a session and registers it on loop. cam may be nil for
// headless runs.
func New(loop *ticker.Loop, provider directions.Provider, cam *camera.Controller, opts Options) *Session {
	id := uuid.New()
	logger := opts.Logger
	if logger == nil {
		logger = log.New("nav")
	}
	logger.SetPrefix("nav " + id.String()[:8])
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	size := opts.EventLogSize
	if size <= 0 {
		size = DEFAULT_EVENT_LOG_SIZE
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:              id,
		tracker:         progress.NewTracker(append([]progress.Option{progress.WithClock(now)}, opts.Tracker...)...),
		camera:          cam,
		provider:        provider,
		listener:        opts.Listener,
		overlays:        opts.Overlays,
		logger:          logger,
		now:             now,
		loop:            loop,
		maxEventLogSize: size,
		ctx:             ctx,
		cancel:          cancel,
		replies:         make(chan reroute, 1),
	}
	if loop != nil {
		s.handle = loop.Register(s)
		if cam != nil {
			cam.Attach(loop)
		}
	}
	return s
}

// Start asks the provider for the first route and makes it active. It blocks
// until the provider answers.
func (s *Session) Start(ctx context.Context, req directions.Request) error {
	if s.closed {
		return ErrClosed
	}
	s.logger.Infof("requesting route %s -> %s (%s)", req.Source, req.Destination, req.Transport)
	route, err := s.provider.Route(ctx, req)
	if err != nil {
		s.addLogEntry("route", fmt.Sprintf("no route to %s", req.Destination), true)
		return fmt.Errorf("initial route: %w", err)
	}
	return s.SetRoute(route)
}

// SetRoute replaces the active route, clears the trail and redraws the
// route line.
func (s *Session) SetRoute(route *types.Route) error {
	events, err := s.tracker.SetRoute(route)
	if err != nil {
		return err
	}
	s.trail = nil
	if s.overlays != nil {
		s.overlays.SetRouteLine(route.Polyline(0))
		s.overlays.SetTrail(nil)
	}
	s.logger.Infof("route %q set: %d steps, %s, %s", route.Name, len(route.Steps),
		progress.FormatDistance(route.Distance), route.ExpectedTravelTime.Round(time.Second))
	s.addLogEntry("route", fmt.Sprintf("%s, %s", route.Name, progress.FormatDistance(route.Distance)), false)
	progress.Dispatch(s.listener, events)
	return nil
}

// Attach subscribes the session to source and starts it. A previously
// attached source is stopped first.
func (s *Session) Attach(source location.Source) error {
	if s.closed {
		return ErrClosed
	}
	s.detach()
	s.source = source
	s.unsubscribe = source.Subscribe(s.HandleFix)
	if err := source.Start(); err != nil {
		s.detach()
		return err
	}
	return nil
}

func (s *Session) detach() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.source != nil {
		s.source.Stop()
		s.source = nil
	}
}

// HandleFix runs one fix through the tracker and the camera. It is the
// location.Handler the session subscribes with.
func (s *Session) HandleFix(fix types.LocationFix, heading *float64) {
	if s.closed {
		return
	}
	res, err := s.tracker.Update(fix)
	if err != nil {
		s.logger.Debugf("fix %s dropped: %v", fix.Coordinate, err)
		return
	}

	if res.Progress.State != progress.DEVIATED {
		s.trail = append(s.trail, fix.Coordinate)
		if s.overlays != nil {
			s.overlays.SetTrail(s.trail)
		}
	}
	if s.camera != nil {
		s.camera.Update(fix, heading)
	}

	for _, e := range res.Events {
		switch e := e.(type) {
		case progress.StepChanged:
			s.logger.Infof("step %d: %s", e.Step.Index, e.Step.Instruction)
			s.addLogEntry("step", e.Step.Instruction, false)
		case progress.DistanceUpdated:
			s.logger.Debugf("%s to next maneuver", progress.FormatDistance(e.Distance))
		case progress.RouteDeviated:
			s.logger.Warnf("off route by %.0fm at %s, rerouting", e.OffBy, e.Fix.Coordinate)
			s.addLogEntry("deviation", fmt.Sprintf("off route by %.0fm", e.OffBy), true)
			s.trail = nil
			if s.overlays != nil {
				s.overlays.SetTrail(nil)
			}
			s.requestReroute(e.Request)
		case progress.Arrived:
			s.logger.Infof("arrived at %s", e.Fix.Coordinate)
			s.addLogEntry("arrival", "You have arrived", false)
		}
	}
	progress.Dispatch(s.listener, res.Events)
}

// requestReroute asks the provider off the tick goroutine. The answer is
// picked up by Tick.
func (s *Session) requestReroute(req directions.Request) {
	s.inflight++
	go func() {
		route, err := s.provider.Route(s.ctx, req)
		select {
		case s.replies <- reroute{req: req, route: route, err: err}:
		case <-s.ctx.Done():
		}
	}()
}

// Tick applies reroute answers that arrived since the last tick.
func (s *Session) Tick(dt time.Duration) {
	for {
		select {
		case r := <-s.replies:
			s.inflight--
			s.applyReroute(r)
		default:
			return
		}
	}
}

func (s *Session) applyReroute(r reroute) {
	if s.closed {
		return
	}
	if r.err == nil {
		r.err = s.SetRoute(r.route)
		if r.err == nil {
			return
		}
	}
	s.logger.Errorf("reroute to %s failed: %v", r.req.Destination, r.err)
	s.addLogEntry("reroute", "No route found", true)
	s.tracker.RerouteFailed()
	progress.Dispatch(s.listener, []progress.Event{progress.RerouteFailed{Request: r.req, Err: r.err}})
}

// Pending reports whether a reroute answer is still outstanding.
func (s *Session) Pending() bool {
	return s.inflight > 0
}

func (s *Session) Route() *types.Route {
	return s.tracker.Route()
}

func (s *Session) Progress() progress.Progress {
	return s.tracker.Progress()
}

// CurrentStep is the live banner: rebuilt from the latest progress each call.
func (s *Session) CurrentStep() (progress.NavigationStep, bool) {
	return s.tracker.CurrentStep()
}

func (s *Session) NextStep() (types.Step, bool) {
	return s.tracker.NextStep()
}

func (s *Session) Camera() *camera.Controller {
	return s.camera
}

// Trail is the path travelled since the route was last set.
func (s *Session) Trail() []types.Coordinate {
	return s.trail
}

// Close stops the source, cancels outstanding reroutes and releases every
// tick registration. Safe to call more than once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.detach()
	s.handle.Release()
	if s.camera != nil {
		s.camera.Close()
	}
	s.logger.Infof("session closed")
}
