package render

import (
	"math"
	"time"

	"turn-by-turn/internal/nav/camera"
	"turn-by-turn/internal/nav/geometry"
	"turn-by-turn/pkg/types"

	"github.com/paulmach/orb"
)

const (
	DEFAULT_FIT_DURATION = 600 * time.Millisecond
	ZOOM_STEP            = 1.1
	MIN_ZOOM             = 0.25
	MAX_ZOOM             = 8.0
)

type transition struct {
	from, to camera.Pose
	elapsed  time.Duration
	duration time.Duration
}

// MapState is the model behind a map view. It receives poses from the camera
// controller and polylines from the session, and adds the user's zoom and pan
// on top. It is not safe for concurrent use.
type MapState struct {
	width, height float64

	pose camera.Pose
	fit  *transition
	zoom float64
	pan  types.Vec2 // screen pixels

	routeLine []types.Coordinate
	trail     []types.Coordinate
	traveler  *types.Coordinate
	heading   float64
}

func NewMapState(width, height float64) *MapState {
	return &MapState{
		width:  width,
		height: height,
		zoom:   1,
		pose:   camera.Pose{Distance: camera.DEFAULT_DISTANCE},
	}
}

func (m *MapState) Resize(width, height float64) {
	m.width, m.height = width, height
}

func (m *MapState) SetCamera(pose camera.Pose) {
	m.fit = nil
	m.pose = pose
}

// FitRegion shows region inside the padded screen, sliding there over
// DEFAULT_FIT_DURATION when animated.
func (m *MapState) FitRegion(region orb.Bound, padding camera.Insets, animated bool) {
	m.zoom, m.pan = 1, types.Vec2{}
	target := NewViewport(m.width, m.height, m.pose).Fit(region, padding)
	if !animated {
		m.fit = nil
		m.pose = target
		return
	}
	m.fit = &transition{from: m.pose, to: target, duration: DEFAULT_FIT_DURATION}
}

func (m *MapState) Fitting() bool {
	return m.fit != nil
}

func (m *MapState) Tick(dt time.Duration) {
	if m.fit == nil {
		return
	}
	m.fit.elapsed += dt
	ratio := math.Min(1, float64(m.fit.elapsed)/float64(m.fit.duration))
	e := camera.EASE_IN_OUT.Apply(ratio)
	from, to := m.fit.from, m.fit.to
	m.pose = camera.Pose{
		Center:   geometry.Interpolate(from.Center, to.Center, e),
		Distance: from.Distance + (to.Distance-from.Distance)*e,
		Pitch:    from.Pitch + (to.Pitch-from.Pitch)*e,
		Heading:  geometry.NormalizeHeading(from.Heading + geometry.ShortestAngularDelta(from.Heading, to.Heading)*e),
	}
	if ratio >= 1 {
		m.pose = to
		m.fit = nil
	}
}

func (m *MapState) SetRouteLine(line []types.Coordinate) {
	m.routeLine = line
}

func (m *MapState) SetTrail(trail []types.Coordinate) {
	m.trail = trail
}

func (m *MapState) SetTraveler(c types.Coordinate, heading *float64) {
	m.traveler = &c
	if heading != nil {
		m.heading = *heading
	}
}

// Zoom scales the view by ZOOM_STEP per wheel notch, keeping the world point
// under anchor fixed.
func (m *MapState) Zoom(notches float64, anchor types.Vec2) {
	if notches == 0 {
		return
	}
	before := m.Viewport().ToWorld(anchor)
	m.zoom = math.Max(MIN_ZOOM, math.Min(MAX_ZOOM, m.zoom*math.Pow(ZOOM_STEP, notches)))
	after := m.Viewport().ToScreen(before)
	m.pan.X += anchor.X - after.X
	m.pan.Y += anchor.Y - after.Y
}

func (m *MapState) Pan(dx, dy float64) {
	m.pan.X += dx
	m.pan.Y += dy
}

// ResetView drops the user's zoom and pan.
func (m *MapState) ResetView() {
	m.zoom, m.pan = 1, types.Vec2{}
}

func (m *MapState) ZoomLevel() float64 {
	return m.zoom
}

// Pose is the pose last received from the camera or the overview.
func (m *MapState) Pose() camera.Pose {
	return m.pose
}

// Viewport is what is actually on screen: the pose with zoom and pan applied.
func (m *MapState) Viewport() Viewport {
	pose := m.pose
	pose.Distance /= m.zoom
	vp := NewViewport(m.width, m.height, pose)
	if m.pan != (types.Vec2{}) {
		vp.Pose.Center = vp.ToWorld(types.NewVec2(m.width/2-m.pan.X, m.height/2-m.pan.Y))
	}
	return vp
}

func (m *MapState) Scene(banner ...string) Scene {
	return Scene{
		Route:    m.routeLine,
		Trail:    m.trail,
		Traveler: m.traveler,
		Heading:  m.heading,
		Banner:   banner,
	}
}

