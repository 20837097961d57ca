package directions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"turn-by-turn/pkg/types"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tkrajina/gpxgo/gpx"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a route from a .geojson/.json, .gpx or .yaml/.yml file.
// Routes without a name are named after the file.
func LoadFile(path string) (*types.Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var route *types.Route
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		route, err = LoadGeoJSON(data)
	case ".gpx":
		route, err = LoadGPX(data)
	case ".yaml", ".yml":
		route, err = LoadYAML(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if route.Name == "" {
		route.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return route, nil
}

// LoadLibrary loads every file into a Library.
func LoadLibrary(paths []string) (*Library, error) {
	lib := NewLibrary()
	for _, p := range paths {
		route, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		lib.Add(route)
	}
	return lib, nil
}

// LoadGeoJSON reads a FeatureCollection where every LineString feature is one
// step. Recognised properties: instruction, notice, distance (m), duration (s),
// and on the first feature route and transport. Features whose kind is not
// "step", such as an exported trail, are skipped.
func LoadGeoJSON(data []byte) (*types.Route, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, types.ErrEmptyRoute
	}

	first := fc.Features[0].Properties
	transport, err := types.ParseTransportType(first.MustString("transport", ""))
	if err != nil {
		return nil, err
	}

	steps := make([]types.Step, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Properties.MustString("kind", "step") != "step" {
			continue
		}
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature %d: %w", i, types.ErrEmptyStep)
		}
		ls, ok := f.Geometry.(orb.LineString)
		if !ok {
			return nil, fmt.Errorf("feature %d: expected LineString, got %s", i, f.Geometry.GeoJSONType())
		}
		polyline := make([]types.Coordinate, 0, len(ls))
		for _, p := range ls {
			polyline = append(polyline, types.NewCoordinate(p[1], p[0]))
		}
		seconds := f.Properties.MustFloat64("duration", 0)
		steps = append(steps, NewStep(
			f.Properties.MustString("instruction", ""),
			f.Properties.MustString("notice", ""),
			polyline,
			transport,
			f.Properties.MustFloat64("distance", 0),
			time.Duration(seconds*float64(time.Second)),
		))
	}
	return types.NewRoute(first.MustString("route", ""), transport, steps)
}

// LoadGPX reads the first <rte>, one step per pair of consecutive route
// points with the instruction taken from the leading point. Without routes,
// every track segment becomes a step named after its track.
func LoadGPX(data []byte) (*types.Route, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode gpx: %w", err)
	}

	if len(g.Routes) > 0 {
		rte := g.Routes[0]
		if len(rte.Points) < 2 {
			return nil, fmt.Errorf("gpx route %q: %w", rte.Name, types.ErrEmptyRoute)
		}
		transport, err := types.ParseTransportType(rte.Type)
		if err != nil {
			return nil, err
		}
		var steps []types.Step
		for i := 0; i < len(rte.Points)-1; i++ {
			from, to := rte.Points[i], rte.Points[i+1]
			steps = append(steps, NewStep(
				firstNonEmpty(from.Description, from.Name, from.Comment),
				"",
				[]types.Coordinate{
					types.NewCoordinate(from.Latitude, from.Longitude),
					types.NewCoordinate(to.Latitude, to.Longitude),
				},
				transport, 0, 0,
			))
		}
		return types.NewRoute(rte.Name, transport, steps)
	}

	var steps []types.Step
	name := ""
	for _, trk := range g.Tracks {
		if name == "" {
			name = trk.Name
		}
		for _, seg := range trk.Segments {
			if len(seg.Points) == 0 {
				continue
			}
			polyline := make([]types.Coordinate, 0, len(seg.Points))
			for _, p := range seg.Points {
				polyline = append(polyline, types.NewCoordinate(p.Latitude, p.Longitude))
			}
			steps = append(steps, NewStep(firstNonEmpty(trk.Description, trk.Name), "", polyline, types.AUTOMOBILE, 0, 0))
		}
	}
	if len(steps) == 0 {
		return nil, types.ErrEmptyRoute
	}
	return types.NewRoute(name, types.AUTOMOBILE, steps)
}

type routeDocument struct {
	Name      string         `yaml:"name"`
	Transport string         `yaml:"transport" validate:"omitempty,oneof=automobile walking transit any"`
	Steps     []stepDocument `yaml:"steps" validate:"required,min=1,dive"`
}

type stepDocument struct {
	Instruction string        `yaml:"instruction" validate:"required"`
	Notice      string        `yaml:"notice"`
	Distance    float64       `yaml:"distance" validate:"gte=0"`
	Duration    time.Duration `yaml:"duration" validate:"gte=0"`
	Polyline    [][]float64   `yaml:"polyline" validate:"required,min=1,dive,len=2"` // [lat, lon] pairs
}

var validate = validator.New()

// LoadYAML reads the route fixture format:
//
//	name: embankment
//	transport: automobile
//	steps:
//	  - instruction: Head east on Victoria Embankment
//	    duration: 45s
//	    polyline: [[51.5007, -0.1246], [51.5010, -0.1220]]
func LoadYAML(data []byte) (*types.Route, error) {
	var doc routeDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := validate.Struct(doc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("invalid route document: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("invalid route document: %w", err)
	}

	transport, err := types.ParseTransportType(doc.Transport)
	if err != nil {
		return nil, err
	}

	steps := make([]types.Step, 0, len(doc.Steps))
	for _, s := range doc.Steps {
		polyline := make([]types.Coordinate, 0, len(s.Polyline))
		for _, pair := range s.Polyline {
			polyline = append(polyline, types.NewCoordinate(pair[0], pair[1]))
		}
		steps = append(steps, NewStep(s.Instruction, s.Notice, polyline, transport, s.Distance, s.Duration))
	}
	return types.NewRoute(doc.Name, transport, steps)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
