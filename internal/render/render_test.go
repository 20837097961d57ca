package render

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"turn-by-turn/internal/nav/camera"
	"turn-by-turn/internal/nav/geometry"
	"turn-by-turn/internal/nav/progress"
	"turn-by-turn/pkg/types"
)

var center = types.NewCoordinate(51.5007, -0.1246)

func testViewport(heading float64) Viewport {
	return NewViewport(800, 600, camera.Pose{Center: center, Distance: 300, Pitch: 65, Heading: heading})
}

func TestToScreen(t *testing.T) {
	east := geometry.Offset(center, 50, 90)
	north := geometry.Offset(center, 50, 0)

	tests := []struct {
		name    string
		heading float64
		point   types.Coordinate
		check   func(p types.Vec2) bool
	}{
		{"center", 0, center, func(p types.Vec2) bool { return math.Abs(p.X-400) < 1e-6 && math.Abs(p.Y-300) < 1e-6 }},
		{"north up", 0, north, func(p types.Vec2) bool { return p.Y < 300 && math.Abs(p.X-400) < 0.5 }},
		{"east right", 0, east, func(p types.Vec2) bool { return p.X > 400 && math.Abs(p.Y-300) < 0.5 }},
		{"heading east puts east up", 90, east, func(p types.Vec2) bool { return p.Y < 300 && math.Abs(p.X-400) < 0.5 }},
		{"heading east puts north left", 90, north, func(p types.Vec2) bool { return p.X < 400 && math.Abs(p.Y-300) < 0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testViewport(tt.heading).ToScreen(tt.point)
			if !tt.check(p) {
				t.Errorf("unexpected screen point %+v", p)
			}
		})
	}
}

func TestMetersPerPixel(t *testing.T) {
	vp := testViewport(0)
	north := geometry.Offset(center, 100, 0)
	pixels := 300 - vp.ToScreen(north).Y
	if got := pixels * vp.MetersPerPixel(); math.Abs(got-100) > 1 {
		t.Errorf("100m should span 100m of pixels, got %.2f", got)
	}
	if (Viewport{}).MetersPerPixel() != DEFAULT_METERS_PER_PIXEL {
		t.Error("empty viewport should use the default resolution")
	}
}

func TestScreenRoundTrip(t *testing.T) {
	for _, heading := range []float64{0, 45, 90, 200, 359} {
		vp := testViewport(heading)
		for _, c := range []types.Coordinate{
			center,
			geometry.Offset(center, 120, 30),
			geometry.Offset(center, 80, 250),
		} {
			back := vp.ToWorld(vp.ToScreen(c))
			if geometry.Distance(back, c) > 0.01 {
				t.Errorf("heading %v: %v came back as %v", heading, c, back)
			}
		}
	}
}

func TestFit(t *testing.T) {
	sw := center
	ne := geometry.Offset(geometry.Offset(center, 400, 0), 600, 90)
	bound := geometry.Bound([]types.Coordinate{sw, ne})
	pad := camera.Insets{Top: 100, Left: 100, Bottom: 150, Right: 50}

	vp := NewViewport(800, 600, camera.Pose{})
	vp.Pose = vp.Fit(bound, pad)
	if vp.Pose.Heading != 0 || vp.Pose.Pitch != 0 {
		t.Errorf("overview should be north up and flat, got %+v", vp.Pose)
	}

	for _, c := range []types.Coordinate{sw, ne} {
		p := vp.ToScreen(c)
		if p.X < pad.Left-1 || p.X > vp.Width-pad.Right+1 || p.Y < pad.Top-1 || p.Y > vp.Height-pad.Bottom+1 {
			t.Errorf("%v lands outside the padded area at %+v", c, p)
		}
	}

	// 400m over 350px is tighter than 600m over 650px
	height := vp.ToScreen(sw).Y - vp.ToScreen(ne).Y
	if math.Abs(height-(vp.Height-pad.Top-pad.Bottom)) > 1 {
		t.Errorf("expected the region to fill the padded height, got %.1f px", height)
	}
}

func TestContains(t *testing.T) {
	vp := testViewport(0)
	if !vp.Contains(types.NewVec2(0, 0)) || !vp.Contains(types.NewVec2(800, 600)) {
		t.Error("edges are inside")
	}
	if vp.Contains(types.NewVec2(-1, 10)) || vp.Contains(types.NewVec2(10, 601)) {
		t.Error("outside points reported inside")
	}
}

func TestSnapshot(t *testing.T) {
	vp := testViewport(0)
	traveler := center
	scene := Scene{
		Route:    []types.Coordinate{geometry.Offset(center, 100, 180), center, geometry.Offset(center, 100, 0)},
		Trail:    []types.Coordinate{geometry.Offset(center, 100, 180), center},
		Traveler: &traveler,
		Banner:   []string{"Turn left onto Whitehall", "120 m"},
	}
	img := Snapshot(vp, scene)
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 600 {
		t.Fatalf("unexpected size %v", img.Bounds())
	}
	if got := color.RGBAModel.Convert(img.At(400, 300)); got != color.RGBAModel.Convert(TravelerColor) {
		t.Errorf("expected the traveler marker at the center, got %v", got)
	}
	if got := color.RGBAModel.Convert(img.At(5, 595)); got != color.RGBAModel.Convert(BackgroundColor) {
		t.Errorf("expected background in the corner, got %v", got)
	}

	path := filepath.Join(t.TempDir(), "frame.png")
	if err := SavePNG(path, vp, scene); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("expected a PNG on disk, err=%v", err)
	}
}

func TestMapStateFitAnimates(t *testing.T) {
	m := NewMapState(800, 600)
	m.SetCamera(camera.Pose{Center: center, Distance: 300, Pitch: 65, Heading: 350})

	bound := geometry.Bound([]types.Coordinate{center, geometry.Offset(center, 2000, 45)})
	m.FitRegion(bound, camera.Insets{Top: 100, Left: 100, Bottom: 100, Right: 100}, true)
	if !m.Fitting() || m.Pose().Heading != 350 {
		t.Fatalf("animated fit should start from the current pose, got %+v", m.Pose())
	}

	m.Tick(DEFAULT_FIT_DURATION / 2)
	mid := m.Pose()
	if mid.Heading < 350 && mid.Heading > 10 {
		t.Errorf("heading should turn the short way back to north, got %v", mid.Heading)
	}
	if mid.Distance <= 300 {
		t.Errorf("camera should be pulling back, got %v", mid.Distance)
	}

	m.Tick(DEFAULT_FIT_DURATION)
	if m.Fitting() || m.Pose().Heading != 0 || m.Pose().Pitch != 0 {
		t.Errorf("fit should end north up and flat, got %+v", m.Pose())
	}

	m.FitRegion(bound, camera.Insets{}, true)
	m.SetCamera(camera.Pose{Center: center, Distance: 300})
	if m.Fitting() {
		t.Error("a camera pose should cancel the fit animation")
	}
}

func TestMapStateZoomKeepsAnchor(t *testing.T) {
	m := NewMapState(800, 600)
	m.SetCamera(camera.Pose{Center: center, Distance: 300, Heading: 30})

	anchor := types.NewVec2(600, 150)
	world := m.Viewport().ToWorld(anchor)
	m.Zoom(3, anchor)
	if math.Abs(m.ZoomLevel()-math.Pow(ZOOM_STEP, 3)) > 1e-9 {
		t.Errorf("unexpected zoom %v", m.ZoomLevel())
	}
	if got := m.Viewport().ToWorld(anchor); geometry.Distance(got, world) > 0.5 {
		t.Errorf("anchor drifted %.2fm", geometry.Distance(got, world))
	}

	m.Zoom(-100, anchor)
	if m.ZoomLevel() != MIN_ZOOM {
		t.Errorf("zoom should clamp to %v, got %v", MIN_ZOOM, m.ZoomLevel())
	}

	m.ResetView()
	if m.Viewport().Pose != m.Pose() {
		t.Error("reset should drop zoom and pan")
	}
}

func TestMapStatePan(t *testing.T) {
	m := NewMapState(800, 600)
	m.SetCamera(camera.Pose{Center: center, Distance: 300})
	m.Pan(100, 0)
	if p := m.Viewport().ToScreen(center); math.Abs(p.X-500) > 0.5 || math.Abs(p.Y-300) > 0.5 {
		t.Errorf("dragging right should move the map right, center now at %+v", p)
	}
}

func TestMapStateScene(t *testing.T) {
	m := NewMapState(800, 600)
	line := []types.Coordinate{center, geometry.Offset(center, 100, 0)}
	heading := 45.0
	m.SetRouteLine(line)
	m.SetTrail(line[:1])
	m.SetTraveler(center, &heading)
	m.SetTraveler(line[1], nil)

	scene := m.Scene("Head north")
	if len(scene.Route) != 2 || len(scene.Trail) != 1 || scene.Banner[0] != "Head north" {
		t.Errorf("unexpected scene %+v", scene)
	}
	if *scene.Traveler != line[1] || scene.Heading != 45 {
		t.Errorf("traveler should move and keep its last course, got %v %v", *scene.Traveler, scene.Heading)
	}
}

func TestBannerLines(t *testing.T) {
	step := progress.NavigationStep{
		Instruction:       "Turn left onto Whitehall",
		Distance:          120,
		RemainingDistance: 1500,
		ETA:               time.Date(2024, 5, 1, 9, 12, 0, 0, time.UTC),
	}
	next := types.Step{Instruction: "Arrive at destination"}

	tests := []struct {
		name   string
		notice string
		next   *types.Step
		want   []string
	}{
		{"last step", "", nil, []string{"120m  Turn left onto Whitehall", "1.5 km left, arrive 09:12"}},
		{"with next", "", &next, []string{"120m  Turn left onto Whitehall", "Then Arrive at destination", "1.5 km left, arrive 09:12"}},
		{"with notice", "Toll road", nil, []string{"120m  Turn left onto Whitehall", "Toll road", "1.5 km left, arrive 09:12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := step
			s.Notice = tt.notice
			got := BannerLines(s, tt.next)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
