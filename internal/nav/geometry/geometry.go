// Package geometry holds the pure geographic helpers used by route tracking,
// simulation and the camera: segment and polyline projection, great-circle
// distance and bearing, and angular arithmetic on headings.
//
// Projection onto segments happens in Web-Mercator meters, where straight
// lines on the map are straight lines in the plane. Distances are always
// reported as great-circle meters.
package geometry

import (
	"math"

	"turn-by-turn/pkg/types"

	geo "github.com/kellydunn/golang-geo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Projection describes where a point lands on a polyline.
type Projection struct {
	Point    types.Coordinate
	Distance float64 // meters from the projected point to the input point
	Segment  int     // index of the segment's first vertex
	T        float64 // position along the segment, 0..1
}

func toPlanar(c types.Coordinate) orb.Point {
	return project.WGS84.ToMercator(orb.Point{c.Lon, c.Lat})
}

func fromPlanar(p orb.Point) types.Coordinate {
	q := project.Mercator.ToWGS84(p)
	return types.Coordinate{Lat: q[1], Lon: q[0]}
}

func toGeo(c types.Coordinate) *geo.Point {
	return geo.NewPoint(c.Lat, c.Lon)
}

// segmentParam returns the clamped projection parameter of p onto a->b.
// A degenerate segment yields 0.
func segmentParam(p, a, b orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	if dx == 0 && dy == 0 {
		return 0
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (dx*dx + dy*dy)
	return math.Max(0, math.Min(1, t))
}

func closestOnSegment(point, start, end types.Coordinate) (types.Coordinate, float64) {
	a, b := toPlanar(start), toPlanar(end)
	t := segmentParam(toPlanar(point), a, b)
	switch {
	case t <= 0:
		return start, 0
	case t >= 1:
		return end, 1
	}
	return fromPlanar(orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}), t
}

// ClosestPointOnSegment returns the orthogonal projection of point onto the
// segment, clamped to its endpoints. A zero-length segment returns its start.
func ClosestPointOnSegment(point, segmentStart, segmentEnd types.Coordinate) types.Coordinate {
	c, _ := closestOnSegment(point, segmentStart, segmentEnd)
	return c
}

// Project finds the globally closest point on the polyline. Every segment is
// visited; there is no early exit, so winding paths are handled correctly.
// ok is false only for an empty polyline.
func Project(point types.Coordinate, polyline []types.Coordinate) (proj Projection, ok bool) {
	switch len(polyline) {
	case 0:
		return Projection{}, false
	case 1:
		return Projection{Point: polyline[0], Distance: Distance(point, polyline[0])}, true
	}

	proj.Distance = math.Inf(1)
	for i := 0; i < len(polyline)-1; i++ {
		c, t := closestOnSegment(point, polyline[i], polyline[i+1])
		d := Distance(point, c)
		if d < proj.Distance {
			proj = Projection{Point: c, Distance: d, Segment: i, T: t}
		}
	}
	return proj, true
}

// ClosestPointOnPolyline returns the closest point on the polyline and its
// distance in meters. An empty polyline returns the input point at +Inf.
func ClosestPointOnPolyline(point types.Coordinate, polyline []types.Coordinate) (types.Coordinate, float64) {
	proj, ok := Project(point, polyline)
	if !ok {
		return point, math.Inf(1)
	}
	return proj.Point, proj.Distance
}

// Remainder returns the part of polyline that lies after proj, starting at
// the projected point.
func Remainder(polyline []types.Coordinate, proj Projection) []types.Coordinate {
	if len(polyline) == 0 {
		return nil
	}
	out := []types.Coordinate{proj.Point}
	for _, c := range polyline[proj.Segment+1:] {
		if c == out[len(out)-1] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Distance is the great-circle distance in meters.
func Distance(a, b types.Coordinate) float64 {
	if a == b {
		return 0
	}
	return toGeo(a).GreatCircleDistance(toGeo(b)) * 1000
}

// Length sums the great-circle lengths of all segments.
func Length(polyline []types.Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(polyline); i++ {
		total += Distance(polyline[i-1], polyline[i])
	}
	return total
}

// Bearing is the initial great-circle bearing in [0,360). Coincident points
// have no heading and return 0.
func Bearing(from, to types.Coordinate) float64 {
	if from == to {
		return 0
	}
	return NormalizeHeading(toGeo(from).BearingTo(toGeo(to)))
}

// Offset returns the point reached by travelling meters along bearing.
func Offset(from types.Coordinate, meters, bearing float64) types.Coordinate {
	p := toGeo(from).PointAtDistanceAndBearing(meters/1000, bearing)
	return types.Coordinate{Lat: p.Lat(), Lon: p.Lng()}
}

// Interpolate is a straight lat/lon blend; fine over the few meters between
// simulation points.
func Interpolate(start, end types.Coordinate, fraction float64) types.Coordinate {
	return types.Coordinate{
		Lat: start.Lat + (end.Lat-start.Lat)*fraction,
		Lon: start.Lon + (end.Lon-start.Lon)*fraction,
	}
}

// NormalizeHeading wraps h into [0,360).
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

// ShortestAngularDelta returns the signed rotation in (-180,180] that takes
// heading from to heading to.
func ShortestAngularDelta(from, to float64) float64 {
	d := math.Mod(to-from, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

// Bound is the lon/lat bounding box of the polyline.
func Bound(polyline []types.Coordinate) orb.Bound {
	ls := make(orb.LineString, 0, len(polyline))
	for _, c := range polyline {
		ls = append(ls, orb.Point{c.Lon, c.Lat})
	}
	return ls.Bound()
}

// Planar returns the Web-Mercator position of c in meters.
func Planar(c types.Coordinate) types.Vec2 {
	p := toPlanar(c)
	return types.NewVec2(p[0], p[1])
}

// FromPlanar is the inverse of Planar.
func FromPlanar(v types.Vec2) types.Coordinate {
	return fromPlanar(orb.Point{v.X, v.Y})
}
