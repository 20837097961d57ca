package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"

	"turn-by-turn/internal/config"
	"turn-by-turn/internal/nav/camera"
	"turn-by-turn/internal/nav/directions"
	"turn-by-turn/internal/nav/location"
	"turn-by-turn/internal/nav/progress"
	"turn-by-turn/internal/nav/session"
	"turn-by-turn/internal/nav/simulator"
	"turn-by-turn/internal/nav/ticker"
	"turn-by-turn/internal/render"
	"turn-by-turn/internal/ui"
	"turn-by-turn/pkg/types"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/labstack/gommon/log"
)

const (
	SCREEN_WIDTH  = 1024
	SCREEN_HEIGHT = 768
	STATUS_TTL    = 4 * time.Second
)

type Game struct {
	width, height int

	loader   *config.Loader
	cfg      *config.Config
	reloaded chan *config.Config

	loop     *ticker.Loop
	mapView  *ui.MapView
	provider directions.Provider
	session  *session.Session
	feed     *location.Feed
	sim      *simulator.Simulator
	speed    float64

	commandInput *ui.CommandInput
	panStartX    int
	panStartY    int

	status      string
	statusUntil time.Duration
}

func NewGame(loader *config.Loader, provider directions.Provider, screenWidth, screenHeight int) *Game {
	cfg := loader.Current()
	game := &Game{
		width:    screenWidth,
		height:   screenHeight,
		loader:   loader,
		cfg:      cfg,
		reloaded: make(chan *config.Config, 1),
		loop:     ticker.NewLoop(),
		mapView:  ui.NewMapView(screenWidth, screenHeight),
		provider: provider,
		speed:    cfg.Simulator.Speed,
	}
	game.loop.Register(game.mapView)

	game.commandInput = ui.NewCommandInput(10, screenHeight-48, screenWidth/2, 30, func(cmd string) {
		game.parseAndExecuteCommand(cmd)
	})

	loader.Watch(func(cfg *config.Config, err error) {
		if err != nil {
			return
		}
		// hand over to the ebiten goroutine
		select {
		case game.reloaded <- cfg:
		default:
		}
	})

	return game
}

// StartTrip builds a fresh session for req and starts simulating it.
func (g *Game) StartTrip(req directions.Request) error {
	if g.session != nil {
		g.stopSimulation()
		g.session.Close()
	}

	cam := camera.New(g.mapView, g.cfg.CameraConfig())
	g.session = session.New(g.loop, g.provider, cam, session.Options{
		Tracker:  g.cfg.TrackerOptions(),
		Listener: g.listener(),
		Overlays: g.mapView,
		Logger:   log.New("nav"),
	})
	if err := g.session.Start(context.Background(), req); err != nil {
		return err
	}

	g.feed = location.NewFeed(g.loop, 0)
	g.feed.Subscribe(func(fix types.LocationFix, heading *float64) {
		g.mapView.SetTraveler(fix.Coordinate, heading)
	})
	if err := g.session.Attach(g.feed); err != nil {
		return err
	}
	g.mapView.ResetView()
	return g.startSimulation()
}

func (g *Game) listener() progress.Listener {
	return progress.ListenerFuncs{
		OnStepChanged: func(step progress.NavigationStep) {
			g.setStatus(fmt.Sprintf("In %s, %s", step.FormattedDistance(), step.Instruction))
		},
		OnRouteDeviated: func(progress.RouteDeviated) {
			g.setStatus("Off route, rerouting...")
		},
		OnRouteUpdated: func(route *types.Route) {
			if g.sim != nil {
				g.startSimulation()
			}
		},
		OnRerouteFailed: func(err error) {
			g.setStatus("Reroute failed: " + err.Error())
		},
		OnArrived: func(types.LocationFix) {
			g.setStatus("You have arrived")
		},
	}
}

// startSimulation drives the current route from its origin. The simulator
// feeds the session through the feed so a "goto" can take over at any time.
func (g *Game) startSimulation() error {
	g.stopSimulation()
	sim, err := simulator.New(g.loop, g.session.Route(), g.speed, g.cfg.SimulatorOptions()...)
	if err != nil {
		return err
	}
	sim.Subscribe(g.feed.Emit)
	sim.OnFinish(func() {
		log.Infof("simulation finished after %.0fm", sim.TotalDistance())
	})
	g.sim = sim
	return sim.Start()
}

func (g *Game) stopSimulation() {
	if g.sim != nil {
		g.sim.Stop()
		g.sim = nil
	}
}

func (g *Game) setStatus(msg string) {
	log.Info(msg)
	g.status = msg
	g.statusUntil = g.loop.Elapsed() + STATUS_TTL
}

func (g *Game) Update() error {
	select {
	case cfg := <-g.reloaded:
		g.applyConfig(cfg)
	default:
	}

	g.loop.Advance(g.cfg.TickInterval())

	g.handleInput()
	g.commandInput.Update()

	return nil
}

// applyConfig takes effect for animations and simulations started from now on.
func (g *Game) applyConfig(cfg *config.Config) {
	g.cfg = cfg
	log.SetLevel(cfg.LogLevel())
	if g.session != nil {
		g.session.Camera().SetConfig(cfg.CameraConfig())
	}
	log.Infof("config reloaded")
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.mapView.Draw(screen)
	g.drawUI(screen)
	ebitenutil.DebugPrint(screen, "FPS: "+strconv.FormatFloat(ebiten.ActualFPS(), 'f', 2, 64))
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (screenWidth, screenHeight int) {
	return g.width, g.height
}

func (g *Game) handleInput() {
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		g.commandInput.IsActive = g.commandInput.IsClicked(x, y)
	}
	if g.commandInput.IsActive || g.session == nil {
		return
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF) {
		following := g.session.Camera().ToggleFollowMode()
		if following {
			g.mapView.ResetView()
		}
		log.Printf("follow mode: %v", following)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyO) {
		g.session.Camera().ShowRouteOverview(g.session.Route(), true)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		if g.sim != nil && g.sim.Running() {
			g.stopSimulation()
			log.Printf("simulation stopped")
		} else if err := g.startSimulation(); err != nil {
			log.Errorf("simulation: %v", err)
		}
	}

	_, wy := ebiten.Wheel()
	if wy != 0 {
		cursorX, cursorY := ebiten.CursorPosition()
		g.mapView.Zoom(wy, types.NewVec2(float64(cursorX), float64(cursorY)))
	}

	// Right mouse button for pan
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight) {
		x, y := ebiten.CursorPosition()
		if !inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
			g.mapView.Pan(float64(x-g.panStartX), float64(y-g.panStartY))
		}
		g.panStartX, g.panStartY = x, y
	}
}

func (g *Game) drawUI(screen *ebiten.Image) {
	g.commandInput.Draw(screen)

	if g.session == nil {
		return
	}

	if step, ok := g.session.CurrentStep(); ok {
		var next *types.Step
		if s, ok := g.session.NextStep(); ok {
			next = &s
		}
		lines := render.BannerLines(step, next)
		vector.DrawFilledRect(screen, 0, 16, float32(g.width), float32(16*len(lines)+8), color.RGBA{0, 0, 0, 160}, false)
		ebitenutil.DebugPrintAt(screen, strings.Join(lines, "\n"), 10, 20)
	}

	if g.status != "" && g.loop.Elapsed() < g.statusUntil {
		ebitenutil.DebugPrintAt(screen, g.status, 10, g.height-70)
	}

	mode := "free"
	if g.session.Camera().Following() {
		mode = "follow"
	}
	info := fmt.Sprintf("%s | camera: %s | speed: %.0f m/s | zoom: %.2fx | [F]ollow [O]verview [S]imulate",
		g.session.Progress().State, mode, g.speed, g.mapView.ZoomLevel())
	ebitenutil.DebugPrintAt(screen, info, g.width/2+20, g.height-40)
}

func (g *Game) parseAndExecuteCommand(cmd string) {
	parts := strings.Fields(cmd) // Split by whitespace
	if len(parts) < 2 {
		log.Printf("Invalid command format: %s. Expected: <command> <value>", cmd)
		return
	}
	if g.session == nil {
		log.Printf("No trip in progress")
		return
	}

	commandType := strings.ToUpper(parts[0])
	valueStr := strings.Join(parts[1:], "")

	switch commandType {
	case "S", "SPD", "SPEED":
		speed, err := strconv.ParseFloat(valueStr, 64)
		if err != nil || speed <= 0 {
			log.Printf("Invalid speed value: %s. Must be positive.", valueStr)
			return
		}
		g.speed = speed
		if g.sim != nil {
			g.sim.SetSpeed(speed)
		}
		log.Printf("Speed set to %.1f m/s", speed)
	case "G", "GOTO":
		c, err := types.ParseCoordinate(valueStr)
		if err != nil {
			log.Printf("Invalid position: %s. Expected lat,lon.", valueStr)
			return
		}
		g.stopSimulation()
		g.feed.Send(types.NewLocationFix(c, time.Now(), 5), nil)
		log.Printf("Moved to %s", c)
	case "R", "ROUTE":
		dest, err := types.ParseCoordinate(valueStr)
		if err != nil {
			log.Printf("Invalid destination: %s. Expected lat,lon.", valueStr)
			return
		}
		req := directions.Request{Source: g.session.Route().Origin(), Destination: dest, Transport: g.session.Route().Transport}
		if err := g.StartTrip(req); err != nil {
			log.Printf("No route to %s: %v", dest, err)
		}
	default:
		log.Printf("Unknown command type: %s", commandType)
	}
}

// defaultTrip is the configured trip, or the first loaded route end to end.
func defaultTrip(cfg *config.Config, lib *directions.Library) (directions.Request, error) {
	req, ok, err := cfg.Trip()
	if err != nil || ok {
		return req, err
	}
	routes := lib.Routes()
	if len(routes) == 0 {
		return req, fmt.Errorf("no trip configured and no route files loaded")
	}
	return directions.Request{Source: routes[0].Origin(), Destination: routes[0].Destination(), Transport: routes[0].Transport}, nil
}

func main() {
	configPath := flag.String("config", "navigation.yaml", "configuration file")
	flag.Parse()

	loader := config.NewLoader()
	cfg, err := loader.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(cfg.LogLevel())

	lib, err := directions.LoadLibrary(cfg.Routes.Files)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("loaded %d routes", lib.Len())

	req, err := defaultTrip(cfg, lib)
	if err != nil {
		log.Fatal(err)
	}

	ebiten.SetWindowSize(SCREEN_WIDTH, SCREEN_HEIGHT)
	ebiten.SetWindowTitle("Turn-by-turn")
	ebiten.SetVsyncEnabled(true)

	game := NewGame(loader, directions.Fallback{lib, directions.Direct{}}, SCREEN_WIDTH, SCREEN_HEIGHT)
	if err := game.StartTrip(req); err != nil {
		log.Fatal(err)
	}

	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
