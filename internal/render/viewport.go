// Package render maps camera poses onto a flat screen. It is shared by the
// interactive map view and the PNG snapshots so both draw the same picture.
// The view is top-down: pitch is carried in the pose but not rendered.
package render

import (
	"math"

	"turn-by-turn/internal/nav/camera"
	"turn-by-turn/internal/nav/geometry"
	"turn-by-turn/pkg/types"

	"github.com/paulmach/orb"
)

const (
	FIELD_OF_VIEW            = 60.0 // degrees, vertical
	MIN_METERS_PER_PIXEL     = 0.05
	DEFAULT_METERS_PER_PIXEL = 1.0
)

// Viewport is a screen of Width x Height pixels looking down at Pose.
// The pose heading points up.
type Viewport struct {
	Width, Height float64
	Pose          camera.Pose
}

func NewViewport(width, height float64, pose camera.Pose) Viewport {
	return Viewport{Width: width, Height: height, Pose: pose}
}

// MetersPerPixel is the ground resolution at the pose center.
func (v Viewport) MetersPerPixel() float64 {
	if v.Height <= 0 || v.Pose.Distance <= 0 {
		return DEFAULT_METERS_PER_PIXEL
	}
	visible := 2 * v.Pose.Distance * math.Tan(FIELD_OF_VIEW/2*math.Pi/180)
	return math.Max(MIN_METERS_PER_PIXEL, visible/v.Height)
}

// planarPerPixel converts the ground resolution into Web-Mercator units,
// which stretch by 1/cos(latitude).
func (v Viewport) planarPerPixel() float64 {
	return v.MetersPerPixel() / math.Cos(v.Pose.Center.Lat*math.Pi/180)
}

func (v Viewport) ToScreen(c types.Coordinate) types.Vec2 {
	p, o := geometry.Planar(c), geometry.Planar(v.Pose.Center)
	dx, dy := p.X-o.X, p.Y-o.Y

	h := v.Pose.Heading * math.Pi / 180
	x := dx*math.Cos(h) - dy*math.Sin(h)
	y := dx*math.Sin(h) + dy*math.Cos(h)

	ppp := v.planarPerPixel()
	return types.NewVec2(v.Width/2+x/ppp, v.Height/2-y/ppp)
}

func (v Viewport) ToWorld(s types.Vec2) types.Coordinate {
	ppp := v.planarPerPixel()
	x := (s.X - v.Width/2) * ppp
	y := (v.Height/2 - s.Y) * ppp

	h := v.Pose.Heading * math.Pi / 180
	dx := x*math.Cos(h) + y*math.Sin(h)
	dy := -x*math.Sin(h) + y*math.Cos(h)

	o := geometry.Planar(v.Pose.Center)
	return geometry.FromPlanar(types.NewVec2(o.X+dx, o.Y+dy))
}

// Fit returns a north-up pose that shows region inside the screen minus
// padding.
func (v Viewport) Fit(region orb.Bound, padding camera.Insets) camera.Pose {
	sw := geometry.Planar(types.NewCoordinate(region.Min.Lat(), region.Min.Lon()))
	ne := geometry.Planar(types.NewCoordinate(region.Max.Lat(), region.Max.Lon()))

	availW := math.Max(1, v.Width-padding.Left-padding.Right)
	availH := math.Max(1, v.Height-padding.Top-padding.Bottom)
	ppp := math.Max((ne.X-sw.X)/availW, (ne.Y-sw.Y)/availH)

	centerLat := (region.Min.Lat() + region.Max.Lat()) / 2
	cos := math.Cos(centerLat * math.Pi / 180)
	mpp := math.Max(MIN_METERS_PER_PIXEL, ppp*cos)
	ppp = mpp / cos

	cx := (sw.X+ne.X)/2 - (padding.Left-padding.Right)/2*ppp
	cy := (sw.Y+ne.Y)/2 + (padding.Top-padding.Bottom)/2*ppp
	center := geometry.FromPlanar(types.NewVec2(cx, cy))

	return camera.Pose{
		Center:   center,
		Distance: mpp * v.Height / (2 * math.Tan(FIELD_OF_VIEW/2*math.Pi/180)),
		Pitch:    0,
		Heading:  0,
	}
}

// Contains reports whether the screen point is inside the viewport.
func (v Viewport) Contains(s types.Vec2) bool {
	return s.X >= 0 && s.X <= v.Width && s.Y >= 0 && s.Y <= v.Height
}
