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

// MultiPolygon is an immutable collection of disjoint polygons, typically the
// result of a geometric union across overlapping inputs.
type MultiPolygon struct {
	polys orb.MultiPolygon
}

// Union computes the geometric union of the given polygons. Overlapping area
// is counted once. Returns nil for an empty input.
func Union(polys []*Polygon) (*MultiPolygon, error) {
	if len(polys) == 0 {
		return nil, nil
	}

	geoms := make([]polygol.Geom, 0, len(polys))
	for _, p := range polys {
		geoms = append(geoms, polygolGeom(p.rings))
	}

	out, err := polygol.Union(geoms[0], geoms[1:]...)
	if err != nil {
		return nil, eris.Wrap(err, "geo: union")
	}
	return &MultiPolygon{polys: orbMultiPolygon(out)}, nil
}

// Intersect clips a polygon against another, returning the overlapping
// region as a multipolygon. Returns nil when the polygons are disjoint.
func Intersect(subject, clip *Polygon) (*MultiPolygon, error) {
	out, err := polygol.Intersection(polygolGeom(subject.rings), polygolGeom(clip.rings))
	if err != nil {
		return nil, eris.Wrap(err, "geo: intersection")
	}
	mp := orbMultiPolygon(out)
	if len(mp) == 0 {
		return nil, nil
	}
	return &MultiPolygon{polys: mp}, nil
}

// Empty reports whether the multipolygon has no area.
func (m *MultiPolygon) Empty() bool {
	return m == nil || len(m.polys) == 0
}

// Polygons returns the member polygons. Degenerate parts that survive
// boolean ops with fewer than three distinct vertices are skipped.
func (m *MultiPolygon) Polygons() []*Polygon {
	if m == nil {
		return nil
	}
	out := make([]*Polygon, 0, len(m.polys))
	for _, p := range m.polys {
		poly, err := FromOrb(p)
		if err != nil {
			continue
		}
		out = append(out, poly)
	}
	return out
}

// Largest returns the member polygon with the greatest area, or nil.
func (m *MultiPolygon) Largest() *Polygon {
	var best *Polygon
	bestArea := -1.0
	for _, p := range m.Polygons() {
		if a := p.AreaM2(); a > bestArea {
			bestArea = a
			best = p
		}
	}
	return best
}

// AreaM2 returns the total metric area across all member polygons.
func (m *MultiPolygon) AreaM2() float64 {
	if m == nil {
		return 0
	}
	total := 0.0
	for _, p := range m.polys {
		areaDeg2 := math.Abs(planar.Area(p))
		c, _ := planar.CentroidArea(p)
		total += areaDeg2 * MetersPerDegLat * MetersPerDegLng(c.Lat())
	}
	return total
}

// Bounds returns the bounding box across all member polygons.
func (m *MultiPolygon) Bounds() Bounds {
	b := m.polys.Bound()
	return Bounds{
		MinLat: b.Min.Lat(),
		MaxLat: b.Max.Lat(),
		MinLng: b.Min.Lon(),
		MaxLng: b.Max.Lon(),
	}
}

// Orb returns a copy of the underlying orb multipolygon.
func (m *MultiPolygon) Orb() orb.MultiPolygon {
	if m == nil {
		return nil
	}
	return m.polys.Clone()
}

// GeoJSON encodes the multipolygon as a GeoJSON geometry.
func (m *MultiPolygon) GeoJSON() (json.RawMessage, error) {
	if m.Empty() {
		return nil, nil
	}
	data, err := geojson.NewGeometry(m.polys.Clone()).MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "geo: marshal multipolygon geojson")
	}
	return data, nil
}
