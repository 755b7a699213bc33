// Package geo holds the shared geographic primitives for parcel analysis:
// points, bounds, polygons, and the local equirectangular metric used to
// convert degree-space measurements into meters. All math here is a
// small-scale approximation (valid at city/parcel scale), not projected-CRS
// math; callers that need survey-grade accuracy are in the wrong place.
package geo

import (
	"math"
)

const (
	// MetersPerDegLat is the local scale factor for latitude degrees.
	// Accurate to well under 1% at parcel scale.
	MetersPerDegLat = 111000.0

	// SqftPerSqm converts square meters to square feet.
	SqftPerSqm = 10.7639

	earthRadiusM = 6371000.0
)

// Point is a geographic coordinate (WGS84 lat/lng).
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is an axis-aligned geographic bounding box.
// Invariant: MinLat < MaxLat and MinLng < MaxLng.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// Center returns the midpoint of the bounds.
func (b Bounds) Center() Point {
	return Point{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lng: (b.MinLng + b.MaxLng) / 2,
	}
}

// SpanMeters returns the north-south and east-west extent of the bounds in
// meters, using the local scale at the bounds' center latitude.
func (b Bounds) SpanMeters() (heightM, widthM float64) {
	c := b.Center()
	heightM = (b.MaxLat - b.MinLat) * MetersPerDegLat
	widthM = (b.MaxLng - b.MinLng) * MetersPerDegLng(c.Lat)
	return heightM, widthM
}

// Contains reports whether the point lies inside the bounds (inclusive).
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Valid reports whether the bounds satisfy the min<max invariant on both axes.
func (b Bounds) Valid() bool {
	return b.MinLat < b.MaxLat && b.MinLng < b.MaxLng
}

// Expand grows the bounds by the given number of meters on every side.
func (b Bounds) Expand(meters float64) Bounds {
	c := b.Center()
	dLat := meters / MetersPerDegLat
	dLng := meters / MetersPerDegLng(c.Lat)
	return Bounds{
		MinLat: b.MinLat - dLat,
		MaxLat: b.MaxLat + dLat,
		MinLng: b.MinLng - dLng,
		MaxLng: b.MaxLng + dLng,
	}
}

// MetersPerDegLng returns the local east-west scale factor at a latitude.
func MetersPerDegLng(lat float64) float64 {
	return MetersPerDegLat * math.Cos(lat*math.Pi/180)
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}
