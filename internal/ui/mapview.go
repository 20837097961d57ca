package ui

import (
	"image/color"
	"math"

	"turn-by-turn/internal/nav/geometry"
	"turn-by-turn/internal/render"
	"turn-by-turn/pkg/types"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// MapView draws a render.MapState on an ebiten screen. The state itself is
// what the camera controller and the session talk to.
type MapView struct {
	*render.MapState
}

func NewMapView(width, height int) *MapView {
	return &MapView{MapState: render.NewMapState(float64(width), float64(height))}
}

func (mv *MapView) Draw(screen *ebiten.Image) {
	screen.Fill(render.BackgroundColor)

	vp := mv.Viewport()
	scene := mv.Scene()
	mv.drawGrid(screen, vp)
	strokePolyline(screen, vp, scene.Route, render.ROUTE_WIDTH, render.RouteColor)
	strokePolyline(screen, vp, scene.Trail, render.TRAIL_WIDTH, render.TrailColor)

	if scene.Traveler != nil {
		p := vp.ToScreen(*scene.Traveler)
		vector.DrawFilledCircle(screen, float32(p.X), float32(p.Y), render.TRAVELER_RADIUS, render.TravelerColor, true)

		a := (scene.Heading - vp.Pose.Heading - 90) * math.Pi / 180
		length := render.TRAVELER_RADIUS * 3
		vector.StrokeLine(screen, float32(p.X), float32(p.Y),
			float32(p.X+math.Cos(a)*length), float32(p.Y+math.Sin(a)*length),
			2, render.TravelerColor, true)
	}
}

// drawGrid draws a fixed 100m grid so movement is visible on an empty map.
func (mv *MapView) drawGrid(screen *ebiten.Image, vp render.Viewport) {
	const spacing = 100.0
	gridColor := color.RGBA{40, 44, 52, 255}

	o := geometry.Planar(vp.Pose.Center)
	step := spacing / math.Cos(vp.Pose.Center.Lat*math.Pi/180)
	reach := math.Hypot(vp.Width, vp.Height) / 2 * vp.MetersPerPixel() / spacing * step
	lines := int(reach/step) + 1
	baseX, baseY := math.Floor(o.X/step)*step, math.Floor(o.Y/step)*step

	line := func(x1, y1, x2, y2 float64) {
		a := vp.ToScreen(geometry.FromPlanar(types.NewVec2(x1, y1)))
		b := vp.ToScreen(geometry.FromPlanar(types.NewVec2(x2, y2)))
		vector.StrokeLine(screen, float32(a.X), float32(a.Y), float32(b.X), float32(b.Y), 1, gridColor, false)
	}
	for i := -lines; i <= lines; i++ {
		x := baseX + float64(i)*step
		y := baseY + float64(i)*step
		line(x, o.Y-reach, x, o.Y+reach)
		line(o.X-reach, y, o.X+reach, y)
	}
}

func strokePolyline(screen *ebiten.Image, vp render.Viewport, line []types.Coordinate, width float32, c color.Color) {
	if len(line) < 2 {
		return
	}
	prev := vp.ToScreen(line[0])
	for _, coord := range line[1:] {
		p := vp.ToScreen(coord)
		vector.StrokeLine(screen, float32(prev.X), float32(prev.Y), float32(p.X), float32(p.Y), width, c, true)
		// round joint
		vector.DrawFilledCircle(screen, float32(p.X), float32(p.Y), width/2, c, true)
		prev = p
	}
}
