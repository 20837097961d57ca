package simulator

import (
	"errors"
	"math"
	"testing"
	"time"

	"turn-by-turn/internal/nav/geometry"
	"turn-by-turn/internal/nav/ticker"
	"turn-by-turn/pkg/types"
)

var (
	start = types.NewCoordinate(51.5007, -0.1246)
	epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
)

// lRoute is 100m east then 200m north, with a duplicated vertex in the
// second step.
func lRoute(t *testing.T) *types.Route {
	t.Helper()
	corner := geometry.Offset(start, 100, 90)
	mid := geometry.Offset(corner, 100, 0)
	end := geometry.Offset(mid, 100, 0)
	route, err := types.NewRoute("l", types.AUTOMOBILE, []types.Step{
		{Instruction: "Head east", Polyline: []types.Coordinate{start, corner}, Distance: 100, ExpectedTravelTime: 10 * time.Second},
		{Instruction: "Turn left", Polyline: []types.Coordinate{corner, mid, mid, end}, Distance: 200, ExpectedTravelTime: 20 * time.Second},
	})
	if err != nil {
		t.Fatal(err)
	}
	return route
}

func TestNewRejectsEmptyRoute(t *testing.T) {
	if _, err := New(nil, &types.Route{}, 10); !errors.Is(err, ErrEmptyRoute) {
		t.Fatalf("expected ErrEmptyRoute, got %v", err)
	}
}

func TestBuildPoints(t *testing.T) {
	route := lRoute(t)
	sim, err := New(nil, route, 0)
	if err != nil {
		t.Fatal(err)
	}
	if sim.Speed() != DEFAULT_SPEED {
		t.Errorf("expected default speed, got %v", sim.Speed())
	}

	points := sim.Points()
	// 20 + 40 + 1, give or take rounding at segment ends
	if len(points) < 61 || len(points) > 64 {
		t.Errorf("expected about 61 points, got %d", len(points))
	}
	if points[0].Coordinate != start || points[0].DistanceFromStart != 0 {
		t.Errorf("first point should be the route start, got %+v", points[0])
	}
	if last := points[len(points)-1]; last.Coordinate != route.Destination() || last.StepIndex != 1 {
		t.Errorf("last point should be the destination on step 1, got %+v", last)
	}

	for i := 1; i < len(points); i++ {
		gap := points[i].DistanceFromStart - points[i-1].DistanceFromStart
		if gap <= 0 {
			t.Fatalf("point %d: distance not increasing (%f)", i, gap)
		}
		if gap > DEFAULT_POINT_SPACING+1e-6 {
			t.Fatalf("point %d: gap %f exceeds spacing", i, gap)
		}
		if points[i].StepIndex < points[i-1].StepIndex {
			t.Fatalf("point %d: step index went back", i)
		}
	}

	length := 0.0
	for _, s := range route.Steps {
		length += geometry.Length(s.Polyline)
	}
	if math.Abs(sim.TotalDistance()-length) > 1e-6 {
		t.Errorf("total %f does not match polyline length %f", sim.TotalDistance(), length)
	}
}

func TestSampleAt(t *testing.T) {
	sim, err := New(nil, lRoute(t), 10)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		distance   float64
		minHeading float64
		maxHeading float64
		step       int
	}{
		{"start", 0, 89, 91, 0},
		{"before the start", -50, 89, 91, 0},
		{"approaching the corner", 95, 1, 89, 0},
		{"second step", 150, -1, 1, 1},
		{"end", 300, -1, 1, 1},
		{"past the end", 1000, -1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sim.SampleAt(tt.distance)
			h := s.Heading
			if h > 180 {
				h -= 360
			}
			if h < tt.minHeading || h > tt.maxHeading {
				t.Errorf("heading %f outside [%f, %f]", s.Heading, tt.minHeading, tt.maxHeading)
			}
			if s.StepIndex != tt.step {
				t.Errorf("expected step %d, got %d", tt.step, s.StepIndex)
			}
		})
	}

	mid := sim.SampleAt(52.5)
	want := geometry.Offset(start, 52.5, 90)
	if d := geometry.Distance(mid.Coordinate, want); d > 0.1 {
		t.Errorf("interpolated position is %f m off", d)
	}
}

func run(t *testing.T, route *types.Route, dt time.Duration) []types.LocationFix {
	t.Helper()
	loop := ticker.NewLoop()
	sim, err := New(loop, route, 30, WithStartTime(epoch))
	if err != nil {
		t.Fatal(err)
	}
	var fixes []types.LocationFix
	sim.Subscribe(func(fix types.LocationFix, heading *float64) {
		if heading == nil {
			t.Fatal("simulated fixes always carry a heading")
		}
		fixes = append(fixes, fix)
	})
	if err := sim.Start(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 1000 && sim.Running(); i++ {
		loop.Advance(dt)
	}
	if !sim.Done() {
		t.Fatal("simulation did not finish")
	}
	if loop.Len() != 0 {
		t.Error("finished simulator must release its tick registration")
	}
	return fixes
}

func TestPlaybackIsDeterministic(t *testing.T) {
	route := lRoute(t)
	a := run(t, route, time.Second/60)
	b := run(t, route, time.Second/60)

	if len(a) != len(b) {
		t.Fatalf("runs differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("fix %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
	if last := a[len(a)-1]; last.Coordinate != route.Destination() {
		t.Errorf("playback should end on the destination, got %v", last.Coordinate)
	}
	// 300m at 30 m/s in 60 Hz ticks
	if len(a) < 599 || len(a) > 601 {
		t.Errorf("expected ~600 fixes, got %d", len(a))
	}
	if !a[0].Timestamp.Equal(epoch.Add(time.Second / 60)) {
		t.Errorf("unexpected first timestamp %v", a[0].Timestamp)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	loop := ticker.NewLoop()
	sim, err := New(loop, lRoute(t), 30)
	if err != nil {
		t.Fatal(err)
	}
	sim.Stop()

	n := 0
	sim.Subscribe(func(types.LocationFix, *float64) { n++ })
	sim.Start()
	sim.Start()
	if loop.Len() != 1 {
		t.Fatalf("double start registered %d tickables", loop.Len())
	}
	loop.Advance(time.Second)
	sim.Stop()
	sim.Stop()
	loop.Advance(time.Second)

	if n != 1 {
		t.Errorf("expected a single fix before stop, got %d", n)
	}
	if sim.Done() {
		t.Error("stopping is not finishing")
	}
	if math.Abs(sim.Travelled()-30) > 1e-9 {
		t.Errorf("expected 30m travelled, got %f", sim.Travelled())
	}
}

func TestFinishCallback(t *testing.T) {
	loop := ticker.NewLoop()
	sim, err := New(loop, lRoute(t), 100)
	if err != nil {
		t.Fatal(err)
	}
	finished := 0
	sim.OnFinish(func() { finished++ })
	sim.Start()
	for i := 0; i < 10; i++ {
		loop.Advance(time.Second)
	}
	if finished != 1 {
		t.Errorf("expected one finish, got %d", finished)
	}
	if err := sim.Start(); err != nil || sim.Running() {
		t.Error("a finished simulator cannot be restarted")
	}
}

func TestStartWithoutLoop(t *testing.T) {
	sim, err := New(nil, lRoute(t), 30)
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.Start(); err == nil {
		t.Error("expected an error without a tick loop")
	}
}
