package render

import (
	"image"
	"image/color"
	"math"

	"turn-by-turn/pkg/types"

	"github.com/fogleman/gg"
)

var (
	BackgroundColor = color.RGBA{24, 26, 32, 255}
	RouteColor      = color.RGBA{66, 133, 244, 255}
	TrailColor      = color.RGBA{160, 160, 160, 255}
	TravelerColor   = color.RGBA{255, 255, 255, 255}
	BannerColor     = color.RGBA{255, 255, 255, 255}
)

const (
	ROUTE_WIDTH     = 6.0
	TRAIL_WIDTH     = 3.0
	TRAVELER_RADIUS = 8.0
)

// Scene is everything drawn on one frame.
type Scene struct {
	Route    []types.Coordinate
	Trail    []types.Coordinate
	Traveler *types.Coordinate
	Heading  float64 // traveler course, degrees
	Banner   []string
}

// Snapshot draws scene as seen through vp.
func Snapshot(vp Viewport, scene Scene) image.Image {
	dc := gg.NewContext(int(vp.Width), int(vp.Height))
	dc.SetColor(BackgroundColor)
	dc.Clear()

	drawLine(dc, vp, scene.Route, RouteColor, ROUTE_WIDTH)
	drawLine(dc, vp, scene.Trail, TrailColor, TRAIL_WIDTH)

	if scene.Traveler != nil {
		p := vp.ToScreen(*scene.Traveler)
		dc.SetColor(TravelerColor)
		dc.DrawCircle(p.X, p.Y, TRAVELER_RADIUS)
		dc.Fill()

		// course arrow, relative to the map rotation
		a := gg.Radians(scene.Heading - vp.Pose.Heading - 90)
		dc.SetLineWidth(2)
		dc.MoveTo(p.X, p.Y)
		dc.LineTo(p.X+math.Cos(a)*TRAVELER_RADIUS*3, p.Y+math.Sin(a)*TRAVELER_RADIUS*3)
		dc.Stroke()
	}

	dc.SetColor(BannerColor)
	for i, line := range scene.Banner {
		dc.DrawString(line, 10, 20+float64(i)*16)
	}
	return dc.Image()
}

// SavePNG renders scene to a PNG file.
func SavePNG(path string, vp Viewport, scene Scene) error {
	return gg.SavePNG(path, Snapshot(vp, scene))
}

func drawLine(dc *gg.Context, vp Viewport, line []types.Coordinate, c color.Color, width float64) {
	if len(line) < 2 {
		return
	}
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	for i, coord := range line {
		p := vp.ToScreen(coord)
		if i == 0 {
			dc.MoveTo(p.X, p.Y)
		} else {
			dc.LineTo(p.X, p.Y)
		}
	}
	dc.Stroke()
}
