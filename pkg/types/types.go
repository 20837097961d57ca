package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrEmptyRoute        = errors.New("route has no steps")
	ErrEmptyStep         = errors.New("step has no polyline")
)

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Lat: lat, Lon: lon}
}

func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// ParseCoordinate parses "lat,lon", e.g. "51.5007,-0.1246".
func ParseCoordinate(input string) (Coordinate, error) {
	parts := strings.Split(input, ",")
	if len(parts) != 2 {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, input)
	}

	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, input)
	}

	c := Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return Coordinate{}, fmt.Errorf("%w: %q out of range", ErrInvalidCoordinate, input)
	}
	return c, nil
}

// LocationFix is a single timestamped position sample.
type LocationFix struct {
	Coordinate
	Timestamp time.Time
	Accuracy  float64 // meters, horizontal
}

func NewLocationFix(c Coordinate, ts time.Time, accuracy float64) LocationFix {
	return LocationFix{Coordinate: c, Timestamp: ts, Accuracy: accuracy}
}

type TransportType int

const (
	AUTOMOBILE TransportType = iota
	WALKING
	TRANSIT
	ANY
)

var TransportStringMap = map[TransportType]string{
	AUTOMOBILE: "automobile",
	WALKING:    "walking",
	TRANSIT:    "transit",
	ANY:        "any",
}

func (t TransportType) String() string {
	if s, ok := TransportStringMap[t]; ok {
		return s
	}
	return "unknown"
}

func ParseTransportType(s string) (TransportType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return AUTOMOBILE, nil
	}
	for t, name := range TransportStringMap {
		if name == s {
			return t, nil
		}
	}
	return AUTOMOBILE, fmt.Errorf("unknown transport type %q", s)
}

// Step is one maneuver-to-maneuver leg of a route.
type Step struct {
	Instruction        string
	Notice             string
	Polyline           []Coordinate
	Distance           float64 // meters
	ExpectedTravelTime time.Duration
	Transport          TransportType
}

// End returns the last polyline vertex, which is where the next maneuver happens.
func (s Step) End() Coordinate {
	if len(s.Polyline) == 0 {
		return Coordinate{}
	}
	return s.Polyline[len(s.Polyline)-1]
}

// Route is an ordered plan of steps. It is never mutated once built.
type Route struct {
	Name               string
	Steps              []Step
	Distance           float64 // meters
	ExpectedTravelTime time.Duration
	Transport          TransportType
}

// NewRoute builds a route and derives its totals from the steps.
func NewRoute(name string, transport TransportType, steps []Step) (*Route, error) {
	r := &Route{
		Name:      name,
		Steps:     steps,
		Transport: transport,
	}
	for _, s := range steps {
		r.Distance += s.Distance
		r.ExpectedTravelTime += s.ExpectedTravelTime
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Route) Validate() error {
	if r == nil || len(r.Steps) == 0 {
		return ErrEmptyRoute
	}
	for i, s := range r.Steps {
		if len(s.Polyline) == 0 {
			return fmt.Errorf("step %d: %w", i, ErrEmptyStep)
		}
		for _, c := range s.Polyline {
			if !c.Valid() {
				return fmt.Errorf("step %d: %w: %s", i, ErrInvalidCoordinate, c)
			}
		}
	}
	return nil
}

// Polyline concatenates the step polylines from step index `from` onward,
// dropping the duplicated vertex where one step ends and the next begins.
func (r *Route) Polyline(from int) []Coordinate {
	var line []Coordinate
	for i := from; i < len(r.Steps); i++ {
		for _, c := range r.Steps[i].Polyline {
			if n := len(line); n > 0 && line[n-1] == c {
				continue
			}
			line = append(line, c)
		}
	}
	return line
}

func (r *Route) Origin() Coordinate {
	return r.Steps[0].Polyline[0]
}

func (r *Route) Destination() Coordinate {
	return r.Steps[len(r.Steps)-1].End()
}

// Vec2 is a planar point, used for projected meters and screen pixels.
type Vec2 struct {
	X float64
	Y float64
}

func NewVec2(x, y float64) Vec2 {
	return Vec2{x, y}
}

func (v1 Vec2) DistanceTo(v2 Vec2) float64 {
	dx := v1.X - v2.X
	dy := v1.Y - v2.Y
	return math.Sqrt(dx*dx + dy*dy)
}
