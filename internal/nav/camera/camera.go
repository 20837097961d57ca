// Package camera turns the fix stream into smooth map camera motion.
//
// Rotation and translation are animated separately: a heading change starts
// a fixed-length smoothstep rotation along the shortest arc, while center,
// pitch and distance follow their own eased animation that never touches the
// heading. Both advance only through Tick.
package camera

import (
	"time"

	"turn-by-turn/internal/nav/geometry"
	"turn-by-turn/internal/nav/ticker"
	"turn-by-turn/pkg/types"

	"github.com/paulmach/orb"
)

const (
	DEFAULT_DISTANCE          = 300.0 // meters above ground
	DEFAULT_PITCH             = 65.0  // degrees
	DEFAULT_ROTATION_DURATION = 500 * time.Millisecond
	DEFAULT_POSITION_DURATION = 300 * time.Millisecond
	DEFAULT_OVERVIEW_PADDING  = 100.0 // screen points on every edge
)

type Pose struct {
	Center   types.Coordinate
	Distance float64
	Pitch    float64
	Heading  float64 // degrees clockwise from north, [0,360)
}

type Insets struct {
	Top, Left, Bottom, Right float64
}

// Surface is the map view the controller drives.
type Surface interface {
	SetCamera(pose Pose)
	FitRegion(region orb.Bound, padding Insets, animated bool)
}

type Config struct {
	Distance         float64
	Pitch            float64
	RotationDuration time.Duration
	PositionDuration time.Duration
	Easing           Easing
	OverviewPadding  float64
}

func DefaultConfig() Config {
	return Config{
		Distance:         DEFAULT_DISTANCE,
		Pitch:            DEFAULT_PITCH,
		RotationDuration: DEFAULT_ROTATION_DURATION,
		PositionDuration: DEFAULT_POSITION_DURATION,
		Easing:           EASE_OUT,
		OverviewPadding:  DEFAULT_OVERVIEW_PADDING,
	}
}

type Controller struct {
	surface Surface
	cfg     Config

	pose        Pose
	initialized bool
	following   bool
	now         time.Duration

	lastHeading     float64
	targetHeading   float64
	rotating        bool
	rotationStartAt time.Duration
	rotationStart   float64

	moving      bool
	moveStartAt time.Duration
	moveFrom    Pose
	moveTo      Pose

	handle *ticker.Handle
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.Distance <= 0 {
		cfg.Distance = def.Distance
	}
	if cfg.RotationDuration <= 0 {
		cfg.RotationDuration = def.RotationDuration
	}
	if cfg.PositionDuration < 0 {
		cfg.PositionDuration = def.PositionDuration
	}
	if cfg.OverviewPadding < 0 {
		cfg.OverviewPadding = def.OverviewPadding
	}
	return cfg
}

// New returns a controller in follow mode. surface may be nil. A zero
// PositionDuration moves the camera without animation.
func New(surface Surface, cfg Config) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		surface:   surface,
		cfg:       cfg,
		following: true,
		pose:      Pose{Distance: cfg.Distance, Pitch: cfg.Pitch},
	}
}

// Attach registers the controller on loop. Close undoes it.
func (c *Controller) Attach(loop *ticker.Loop) {
	if c.handle.Active() {
		return
	}
	c.handle = loop.Register(c)
}

// Close releases the tick registration. Safe to call more than once.
func (c *Controller) Close() {
	c.handle.Release()
}

func (c *Controller) Pose() Pose {
	return c.pose
}

func (c *Controller) Following() bool {
	return c.following
}

func (c *Controller) Rotating() bool {
	return c.rotating
}

func (c *Controller) Moving() bool {
	return c.moving
}

// LastHeading is the heading of the last completed rotation.
func (c *Controller) LastHeading() float64 {
	return c.lastHeading
}

// SetConfig applies new settings to animations started from now on.
func (c *Controller) SetConfig(cfg Config) {
	c.cfg = cfg.withDefaults()
}

// Update feeds one fix and an optional heading. It is ignored entirely while
// follow mode is off.
func (c *Controller) Update(fix types.LocationFix, heading *float64) {
	if !c.following {
		return
	}

	if heading != nil {
		h := geometry.NormalizeHeading(*heading)
		if h != c.targetHeading || !c.initialized {
			c.targetHeading = h
			if !c.rotating {
				c.rotating = true
				c.rotationStartAt = c.now
				c.rotationStart = c.pose.Heading
			}
		}
	}

	target := Pose{Center: fix.Coordinate, Distance: c.cfg.Distance, Pitch: c.cfg.Pitch}
	if !c.initialized || c.cfg.PositionDuration == 0 {
		c.initialized = true
		c.pose.Center, c.pose.Distance, c.pose.Pitch = target.Center, target.Distance, target.Pitch
		c.moving = false
		c.push()
		return
	}
	c.moveFrom = c.pose
	c.moveTo = target
	c.moveStartAt = c.now
	c.moving = true
}

// Tick advances the rotation and the position animation by dt.
func (c *Controller) Tick(dt time.Duration) {
	c.now += dt
	changed := false

	if c.rotating {
		ratio := clamp01(float64(c.now-c.rotationStartAt) / float64(c.cfg.RotationDuration))
		delta := geometry.ShortestAngularDelta(c.rotationStart, c.targetHeading)
		c.pose.Heading = geometry.NormalizeHeading(c.rotationStart + delta*smoothstep(ratio))
		if ratio >= 1 {
			c.rotating = false
			c.lastHeading = c.targetHeading
			c.pose.Heading = c.targetHeading
		}
		changed = true
	}

	if c.moving {
		ratio := clamp01(float64(c.now-c.moveStartAt) / float64(c.cfg.PositionDuration))
		e := c.cfg.Easing.Apply(ratio)
		c.pose.Center = geometry.Interpolate(c.moveFrom.Center, c.moveTo.Center, e)
		c.pose.Pitch = lerp(c.moveFrom.Pitch, c.moveTo.Pitch, e)
		c.pose.Distance = lerp(c.moveFrom.Distance, c.moveTo.Distance, e)
		if ratio >= 1 {
			c.moving = false
			c.pose.Center = c.moveTo.Center
			c.pose.Pitch = c.moveTo.Pitch
			c.pose.Distance = c.moveTo.Distance
		}
		changed = true
	}

	if changed {
		c.push()
	}
}

// ToggleFollowMode flips follow mode and returns the new state. Leaving
// follow mode freezes the camera where it is.
func (c *Controller) ToggleFollowMode() bool {
	c.following = !c.following
	if !c.following {
		c.cancel()
	}
	return c.following
}

// ShowRouteOverview fits the whole route into view and leaves follow mode.
func (c *Controller) ShowRouteOverview(route *types.Route, animated bool) {
	if route == nil || len(route.Steps) == 0 {
		return
	}
	c.following = false
	c.cancel()
	p := c.cfg.OverviewPadding
	if c.surface != nil {
		c.surface.FitRegion(geometry.Bound(route.Polyline(0)), Insets{Top: p, Left: p, Bottom: p, Right: p}, animated)
	}
}

func (c *Controller) cancel() {
	if c.rotating {
		c.rotating = false
		c.lastHeading = c.pose.Heading
		c.targetHeading = c.pose.Heading
	}
	c.moving = false
}

func (c *Controller) push() {
	if c.surface != nil {
		c.surface.SetCamera(c.pose)
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
