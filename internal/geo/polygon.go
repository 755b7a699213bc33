package geo

import (
	"encoding/json"
	"math"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
)

// Polygon is an immutable geographic polygon: a closed exterior ring plus
// zero or more holes, vertices in (lng,lat) order internally via orb.
// Construction validates and, where possible, repairs the input (closing
// open rings, dropping duplicate vertices, normalizing self-intersections).
type Polygon struct {
	rings orb.Polygon
}

// NewPolygon builds a validated polygon from rings of points. The first ring
// is the exterior; the rest are holes. Each ring must have at least three
// distinct vertices. Open rings are closed; self-intersecting rings are
// normalized through a self-union, keeping the largest resulting part.
func NewPolygon(rings [][]Point) (*Polygon, error) {
	if len(rings) == 0 {
		return nil, eris.New("geo: polygon requires at least one ring")
	}

	op := make(orb.Polygon, 0, len(rings))
	for i, ring := range rings {
		r, err := buildRing(ring)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: ring %d", i)
		}
		op = append(op, r)
	}

	p := &Polygon{rings: op}
	if selfIntersects(op[0]) {
		repaired, err := p.normalize()
		if err != nil {
			return nil, eris.Wrap(err, "geo: repair self-intersection")
		}
		p = repaired
	}
	return p, nil
}

// FromOrb builds a polygon from an orb.Polygon, applying the same validation
// and repair as NewPolygon. The input is copied; the caller keeps ownership.
func FromOrb(op orb.Polygon) (*Polygon, error) {
	rings := make([][]Point, 0, len(op))
	for _, r := range op {
		pts := make([]Point, 0, len(r))
		for _, v := range r {
			pts = append(pts, Point{Lat: v.Lat(), Lng: v.Lon()})
		}
		rings = append(rings, pts)
	}
	return NewPolygon(rings)
}

// SquareAround returns an axis-aligned square polygon centered on a point
// with the given half-width in meters. Used as the estimated-boundary
// fallback when no authoritative parcel is available.
func SquareAround(center Point, radiusM float64) *Polygon {
	dLat := radiusM / MetersPerDegLat
	dLng := radiusM / MetersPerDegLng(center.Lat)
	ring := orb.Ring{
		{center.Lng - dLng, center.Lat - dLat},
		{center.Lng + dLng, center.Lat - dLat},
		{center.Lng + dLng, center.Lat + dLat},
		{center.Lng - dLng, center.Lat + dLat},
		{center.Lng - dLng, center.Lat - dLat},
	}
	return &Polygon{rings: orb.Polygon{ring}}
}

// Orb returns a copy of the underlying orb polygon.
func (p *Polygon) Orb() orb.Polygon {
	return p.rings.Clone()
}

// Exterior returns the exterior ring as points in (lat,lng) form,
// including the closing vertex.
func (p *Polygon) Exterior() []Point {
	ring := p.rings[0]
	pts := make([]Point, 0, len(ring))
	for _, v := range ring {
		pts = append(pts, Point{Lat: v.Lat(), Lng: v.Lon()})
	}
	return pts
}

// Bounds returns the polygon's bounding box.
func (p *Polygon) Bounds() Bounds {
	b := p.rings.Bound()
	return Bounds{
		MinLat: b.Min.Lat(),
		MaxLat: b.Max.Lat(),
		MinLng: b.Min.Lon(),
		MaxLng: b.Max.Lon(),
	}
}

// Centroid returns the area-weighted centroid.
func (p *Polygon) Centroid() Point {
	c, _ := planar.CentroidArea(p.rings)
	return Point{Lat: c.Lat(), Lng: c.Lon()}
}

// AreaM2 returns the polygon's metric area using the local equirectangular
// scale at its centroid. Not a geodesic area; error is well under 1% at
// parcel scale.
func (p *Polygon) AreaM2() float64 {
	areaDeg2 := math.Abs(planar.Area(p.rings))
	c := p.Centroid()
	return areaDeg2 * MetersPerDegLat * MetersPerDegLng(c.Lat)
}

// Contains reports whether the point is inside the polygon, treating any
// point within tolDeg degrees of the boundary as contained. A zero tolDeg
// gives strict containment.
func (p *Polygon) Contains(pt Point, tolDeg float64) bool {
	op := orb.Point{pt.Lng, pt.Lat}
	if planar.PolygonContains(p.rings, op) {
		return true
	}
	if tolDeg <= 0 {
		return false
	}
	return p.boundaryDistanceDeg(op) <= tolDeg
}

// GeoJSON encodes the polygon as a GeoJSON geometry.
func (p *Polygon) GeoJSON() (json.RawMessage, error) {
	data, err := geojson.NewGeometry(p.rings.Clone()).MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "geo: marshal polygon geojson")
	}
	return data, nil
}

// boundaryDistanceDeg returns the minimum degree-space distance from the
// point to any polygon edge.
func (p *Polygon) boundaryDistanceDeg(pt orb.Point) float64 {
	min := math.Inf(1)
	for _, ring := range p.rings {
		for i := 0; i+1 < len(ring); i++ {
			d := pointSegmentDistance(pt, ring[i], ring[i+1])
			if d < min {
				min = d
			}
		}
	}
	return min
}

// normalize runs a self-union through the boolean-ops engine and keeps the
// largest resulting part, discarding degenerate slivers.
func (p *Polygon) normalize() (*Polygon, error) {
	out, err := polygol.Union(polygolGeom(p.rings))
	if err != nil {
		return nil, eris.Wrap(err, "geo: self-union")
	}

	var best orb.Polygon
	bestArea := -1.0
	for _, poly := range orbMultiPolygon(out) {
		a := math.Abs(planar.Area(poly))
		if a > bestArea {
			bestArea = a
			best = poly
		}
	}
	if best == nil {
		return nil, eris.New("geo: self-union produced no polygon")
	}
	return &Polygon{rings: best}, nil
}

func buildRing(pts []Point) (orb.Ring, error) {
	ring := make(orb.Ring, 0, len(pts)+1)
	for _, pt := range pts {
		v := orb.Point{pt.Lng, pt.Lat}
		if len(ring) > 0 && ring[len(ring)-1] == v {
			continue // drop duplicate consecutive vertex
		}
		ring = append(ring, v)
	}

	// Drop a pre-closed ring's final vertex so distinct-count is honest.
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < 3 {
		return nil, eris.Errorf("geo: ring has %d distinct vertices, need at least 3", len(ring))
	}
	ring = append(ring, ring[0])
	return ring, nil
}

// selfIntersects reports whether any two non-adjacent edges of the ring cross.
func selfIntersects(ring orb.Ring) bool {
	n := len(ring) - 1 // last vertex repeats the first
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // first and last edges share a vertex
			}
			if segmentsCross(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a1, a2, b1, b2 orb.Point) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func pointSegmentDistance(p, a, b orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		t = ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
	}
	px := a[0] + t*dx
	py := a[1] + t*dy
	return math.Hypot(p[0]-px, p[1]-py)
}

// polygolGeom converts an orb polygon into the boolean-ops multipolygon form.
func polygolGeom(p orb.Polygon) polygol.Geom {
	poly := make([][][]float64, 0, len(p))
	for _, ring := range p {
		r := make([][]float64, 0, len(ring))
		for _, pt := range ring {
			r = append(r, []float64{pt[0], pt[1]})
		}
		poly = append(poly, r)
	}
	return polygol.Geom{poly}
}

// orbMultiPolygon converts a boolean-ops result back into orb form.
func orbMultiPolygon(g polygol.Geom) orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(g))
	for _, poly := range g {
		op := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			r := make(orb.Ring, 0, len(ring))
			for _, pt := range ring {
				r = append(r, orb.Point{pt[0], pt[1]})
			}
			op = append(op, r)
		}
		if len(op) > 0 {
			mp = append(mp, op)
		}
	}
	return mp
}
