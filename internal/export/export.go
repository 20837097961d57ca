// Package export writes a finished drive to disk: the driven trail as GPX and
// the route with the trail as GeoJSON.
package export

import (
	"fmt"
	"os"

	"turn-by-turn/internal/nav/location"
	"turn-by-turn/pkg/types"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tkrajina/gpxgo/gpx"
)

const CREATOR = "turn-by-turn"

// TrackGPX turns recorded fixes into a single-segment GPX track. Accuracy is
// written back as HDOP so the file replays with the same accuracy.
func TrackGPX(name string, fixes []types.LocationFix) *gpx.GPX {
	segment := gpx.GPXTrackSegment{}
	for _, f := range fixes {
		p := gpx.GPXPoint{
			Point:     gpx.Point{Latitude: f.Lat, Longitude: f.Lon},
			Timestamp: f.Timestamp.UTC(),
		}
		if f.Accuracy > 0 {
			p.HorizontalDilution = *gpx.NewNullableFloat64(f.Accuracy / location.METERS_PER_HDOP)
		}
		segment.Points = append(segment.Points, p)
	}
	return &gpx.GPX{
		Version: "1.1",
		Creator: CREATOR,
		Tracks: []gpx.GPXTrack{{
			Name:     name,
			Segments: []gpx.GPXTrackSegment{segment},
		}},
	}
}

func WriteGPX(path, name string, fixes []types.LocationFix) error {
	data, err := TrackGPX(name, fixes).ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("encode gpx: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// RouteFeatures writes one LineString per step, in the layout the GeoJSON
// route loader reads, followed by the trail as a feature of kind "trail".
func RouteFeatures(route *types.Route, trail []types.Coordinate) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, s := range route.Steps {
		f := geojson.NewFeature(lineString(s.Polyline))
		f.Properties["kind"] = "step"
		f.Properties["index"] = i
		f.Properties["instruction"] = s.Instruction
		if s.Notice != "" {
			f.Properties["notice"] = s.Notice
		}
		f.Properties["distance"] = s.Distance
		f.Properties["duration"] = s.ExpectedTravelTime.Seconds()
		if i == 0 {
			f.Properties["route"] = route.Name
			f.Properties["transport"] = route.Transport.String()
		}
		fc.Append(f)
	}
	if len(trail) > 0 {
		f := geojson.NewFeature(lineString(trail))
		f.Properties["kind"] = "trail"
		fc.Append(f)
	}
	return fc
}

func WriteGeoJSON(path string, route *types.Route, trail []types.Coordinate) error {
	data, err := RouteFeatures(route, trail).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// lineString is in GeoJSON axis order, lon then lat.
func lineString(line []types.Coordinate) orb.LineString {
	ls := make(orb.LineString, 0, len(line))
	for _, c := range line {
		ls = append(ls, orb.Point{c.Lon, c.Lat})
	}
	return ls
}
