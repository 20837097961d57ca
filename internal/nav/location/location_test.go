package location

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"turn-by-turn/internal/nav/ticker"
	"turn-by-turn/pkg/types"
)

var here = types.NewCoordinate(51.5007, -0.1246)

func TestBroadcasterUnsubscribe(t *testing.T) {
	var b Broadcaster
	var got []string

	unsubA := b.Subscribe(func(types.LocationFix, *float64) { got = append(got, "a") })
	b.Subscribe(func(types.LocationFix, *float64) { got = append(got, "b") })

	b.Emit(types.LocationFix{}, nil)
	unsubA()
	unsubA()
	b.Emit(types.LocationFix{}, nil)

	want := []string{"a", "b", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if b.Subscribers() != 1 {
		t.Errorf("expected 1 subscriber, got %d", b.Subscribers())
	}
}

func TestFeedDeliversOnTick(t *testing.T) {
	loop := ticker.NewLoop()
	feed := NewFeed(loop, 2)

	var fixes []types.LocationFix
	var headings []*float64
	feed.Subscribe(func(fix types.LocationFix, heading *float64) {
		fixes = append(fixes, fix)
		headings = append(headings, heading)
	})

	if err := feed.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h := 90.0
	feed.Send(types.NewLocationFix(here, time.Unix(1, 0), 5), &h)
	feed.Send(types.NewLocationFix(here, time.Unix(2, 0), 5), nil)
	if feed.Send(types.NewLocationFix(here, time.Unix(3, 0), 5), nil) {
		t.Error("expected a full buffer to drop the fix")
	}
	h = 180

	if len(fixes) != 0 {
		t.Fatal("fixes must not be delivered before the tick")
	}
	loop.Advance(16 * time.Millisecond)

	if len(fixes) != 2 {
		t.Fatalf("expected 2 fixes, got %d", len(fixes))
	}
	if headings[0] == nil || *headings[0] != 90 {
		t.Errorf("heading should be copied at send time, got %v", headings[0])
	}
	if headings[1] != nil {
		t.Errorf("expected no heading, got %v", *headings[1])
	}

	feed.Stop()
	feed.Stop()
	if feed.Running() || loop.Len() != 0 {
		t.Error("stop should release the tick registration")
	}
}

func TestFeedWithoutLoop(t *testing.T) {
	if err := NewFeed(nil, 0).Start(); !errors.Is(err, ErrNoLoop) {
		t.Errorf("expected ErrNoLoop, got %v", err)
	}
}

const track = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <name>commute</name>
    <trkseg>
      <trkpt lat="51.5007" lon="-0.1246"><time>2024-05-01T09:00:00Z</time></trkpt>
      <trkpt lat="51.5007" lon="-0.1240"><time>2024-05-01T09:00:02Z</time></trkpt>
      <trkpt lat="51.5012" lon="-0.1240"><time>2024-05-01T09:00:05Z</time></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestReplayPacing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commute.gpx")
	if err := os.WriteFile(path, []byte(track), 0644); err != nil {
		t.Fatal(err)
	}

	loop := ticker.NewLoop()
	replay, err := LoadReplay(loop, path)
	if err != nil {
		t.Fatalf("LoadReplay: %v", err)
	}
	if replay.Len() != 3 || replay.Duration() != 5*time.Second {
		t.Fatalf("unexpected replay: %d points over %v", replay.Len(), replay.Duration())
	}

	var fixes []types.LocationFix
	var headings []*float64
	replay.Subscribe(func(fix types.LocationFix, heading *float64) {
		fixes = append(fixes, fix)
		headings = append(headings, heading)
	})
	if err := replay.Start(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		advance time.Duration
		want    int
	}{
		{0, 1},
		{time.Second, 1},
		{time.Second, 2},
		{2 * time.Second, 2},
		{time.Second, 3},
	}
	for i, tt := range tests {
		loop.Advance(tt.advance)
		if len(fixes) != tt.want {
			t.Fatalf("step %d: expected %d fixes, got %d", i, tt.want, len(fixes))
		}
	}

	if !replay.Done() || replay.Running() {
		t.Error("replay should stop itself after the last fix")
	}
	if headings[0] != nil {
		t.Error("first fix has no heading")
	}
	if headings[1] == nil || math.Abs(*headings[1]-90) > 1 {
		t.Errorf("expected an eastbound heading, got %v", headings[1])
	}
	if headings[2] == nil || math.Abs(*headings[2]) > 1 {
		t.Errorf("expected a northbound heading, got %v", headings[2])
	}
	if !fixes[2].Timestamp.Equal(time.Date(2024, 5, 1, 9, 0, 5, 0, time.UTC)) {
		t.Errorf("fix should carry the recorded timestamp, got %v", fixes[2].Timestamp)
	}
}

func TestReplaySpeedup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commute.gpx")
	os.WriteFile(path, []byte(track), 0644)

	loop := ticker.NewLoop()
	replay, err := LoadReplay(loop, path)
	if err != nil {
		t.Fatal(err)
	}
	replay.SetSpeedup(5)
	n := 0
	replay.Subscribe(func(types.LocationFix, *float64) { n++ })
	replay.Start()

	loop.Advance(time.Second)
	if n != 3 || !replay.Done() {
		t.Errorf("expected the whole track within one second at 5x, got %d fixes", n)
	}
}
