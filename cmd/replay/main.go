package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"turn-by-turn/internal/config"
	"turn-by-turn/internal/export"
	"turn-by-turn/internal/nav/camera"
	"turn-by-turn/internal/nav/directions"
	"turn-by-turn/internal/nav/location"
	"turn-by-turn/internal/nav/progress"
	"turn-by-turn/internal/nav/session"
	"turn-by-turn/internal/nav/simulator"
	"turn-by-turn/internal/nav/ticker"
	"turn-by-turn/internal/render"
	"turn-by-turn/pkg/types"

	"github.com/labstack/gommon/log"
	"github.com/schollz/progressbar/v3"
)

const (
	SNAPSHOT_WIDTH  = 1024
	SNAPSHOT_HEIGHT = 768
	MAX_DRIVE_TIME  = 24 * time.Hour
	SETTLE_TIME     = 2 * time.Second
)

// drive is the source feeding the run and how far along it is.
type drive struct {
	source   location.Source
	progress func() float64
	done     func() bool
}

func main() {
	configPath := flag.String("config", "navigation.yaml", "configuration file")
	trackPath := flag.String("gpx", "", "replay a recorded GPX track instead of simulating the route")
	speedup := flag.Float64("speedup", 1, "replay speed factor for -gpx")
	outDir := flag.String("out", "out", "directory for trail.gpx, drive.geojson and the PNG snapshots")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(cfg.LogLevel())

	lib, err := directions.LoadLibrary(cfg.Routes.Files)
	if err != nil {
		log.Fatal(err)
	}
	req, ok, err := cfg.Trip()
	if err != nil {
		log.Fatal(err)
	}
	if !ok {
		routes := lib.Routes()
		if len(routes) == 0 {
			log.Fatal("no trip configured and no route files loaded")
		}
		req = directions.Request{Source: routes[0].Origin(), Destination: routes[0].Destination(), Transport: routes[0].Transport}
	}

	loop := ticker.NewLoop()
	view := render.NewMapState(SNAPSHOT_WIDTH, SNAPSHOT_HEIGHT)
	loop.Register(view)

	var reroutes, failures int
	sess := session.New(loop, directions.Fallback{lib, directions.Direct{}}, camera.New(view, cfg.CameraConfig()), session.Options{
		Tracker:  cfg.TrackerOptions(),
		Overlays: view,
		Logger:   log.New("replay"),
		Listener: progress.ListenerFuncs{
			OnRouteDeviated: func(progress.RouteDeviated) { reroutes++ },
			OnRerouteFailed: func(error) { failures++ },
		},
	})
	defer sess.Close()

	if err := sess.Start(context.Background(), req); err != nil {
		log.Fatal(err)
	}

	d, err := newDrive(loop, cfg, sess.Route(), *trackPath, *speedup)
	if err != nil {
		log.Fatal(err)
	}

	var recorded []types.LocationFix
	d.source.Subscribe(func(fix types.LocationFix, heading *float64) {
		recorded = append(recorded, fix)
		view.SetTraveler(fix.Coordinate, heading)
	})
	if err := sess.Attach(d.source); err != nil {
		log.Fatal(err)
	}

	dt := cfg.TickInterval()
	bar := progressbar.Default(100, "Driving")
	for !d.done() && loop.Elapsed() < MAX_DRIVE_TIME {
		loop.Advance(dt)
		bar.Set(int(d.progress() * 100))
	}
	bar.Finish()

	// let the camera and any reroute answer catch up
	for end := loop.Elapsed() + SETTLE_TIME; loop.Elapsed() < end; {
		loop.Advance(dt)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatal(err)
	}
	if err := writeOutputs(*outDir, sess, view, recorded); err != nil {
		log.Fatal(err)
	}

	state := sess.Progress()
	fmt.Printf("%s: %d fixes, state %s, %d deviations, %d failed reroutes, %s remaining\n",
		sess.Route().Name, len(recorded), state.State, reroutes, failures, progress.FormatDistance(state.DistanceRemaining))
}

func newDrive(loop *ticker.Loop, cfg *config.Config, route *types.Route, trackPath string, speedup float64) (drive, error) {
	if trackPath != "" {
		r, err := location.LoadReplay(loop, trackPath)
		if err != nil {
			return drive{}, err
		}
		r.SetSpeedup(speedup)
		log.Infof("replaying %d fixes over %v", r.Len(), r.Duration())
		return drive{source: r, progress: r.Progress, done: r.Done}, nil
	}

	sim, err := simulator.New(loop, route, cfg.Simulator.Speed, cfg.SimulatorOptions()...)
	if err != nil {
		return drive{}, err
	}
	log.Infof("simulating %.0fm at %.1f m/s", sim.TotalDistance(), sim.Speed())
	return drive{
		source:   sim,
		progress: func() float64 { return sim.Travelled() / sim.TotalDistance() },
		done:     sim.Done,
	}, nil
}

func writeOutputs(dir string, sess *session.Session, view *render.MapState, recorded []types.LocationFix) error {
	route := sess.Route()
	if err := export.WriteGPX(filepath.Join(dir, "trail.gpx"), route.Name, recorded); err != nil {
		return err
	}
	if err := export.WriteGeoJSON(filepath.Join(dir, "drive.geojson"), route, sess.Trail()); err != nil {
		return err
	}

	var banner []string
	if step, ok := sess.CurrentStep(); ok {
		var next *types.Step
		if s, ok := sess.NextStep(); ok {
			next = &s
		}
		banner = render.BannerLines(step, next)
	}
	if err := render.SavePNG(filepath.Join(dir, "follow.png"), view.Viewport(), view.Scene(banner...)); err != nil {
		return err
	}

	sess.Camera().ShowRouteOverview(route, false)
	return render.SavePNG(filepath.Join(dir, "overview.png"), view.Viewport(), view.Scene(route.Name))
}
