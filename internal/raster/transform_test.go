package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pavescan/internal/geo"
)

func testBounds() geo.Bounds {
	return geo.Bounds{
		MinLat: 32.770,
		MaxLat: 32.780,
		MinLng: -96.800,
		MaxLng: -96.790,
	}
}

func TestNewTransform_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewTransform(geo.Bounds{MinLat: 2, MaxLat: 1, MinLng: 0, MaxLng: 1}, 100, 100)
	assert.Error(t, err)

	_, err = NewTransform(testBounds(), 0, 100)
	assert.Error(t, err)
}

func TestTransform_Corners(t *testing.T) {
	t.Parallel()

	b := testBounds()
	tr, err := NewTransform(b, 640, 640)
	require.NoError(t, err)

	// Top-left pixel is (MaxLat, MinLng): top edge = max_lat, left edge = min_lon.
	topLeft := tr.GeoToPixel(geo.Point{Lat: b.MaxLat, Lng: b.MinLng})
	assert.InDelta(t, 0, topLeft.X, 1e-9)
	assert.InDelta(t, 0, topLeft.Y, 1e-9)

	bottomRight := tr.GeoToPixel(geo.Point{Lat: b.MinLat, Lng: b.MaxLng})
	assert.InDelta(t, 640, bottomRight.X, 1e-9)
	assert.InDelta(t, 640, bottomRight.Y, 1e-9)

	center := tr.GeoToPixel(b.Center())
	assert.InDelta(t, 320, center.X, 1e-6)
	assert.InDelta(t, 320, center.Y, 1e-6)
}

func TestTransform_RoundTrip(t *testing.T) {
	t.Parallel()

	tr, err := NewTransform(testBounds(), 640, 480)
	require.NoError(t, err)

	// geo_to_pixel(pixel_to_geo(x,y)) must land within one pixel unit.
	pixels := []Pixel{
		{X: 0, Y: 0},
		{X: 639, Y: 479},
		{X: 320, Y: 240},
		{X: 17.25, Y: 401.75},
	}
	for _, px := range pixels {
		back := tr.GeoToPixel(tr.PixelToGeo(px))
		assert.InDelta(t, px.X, back.X, 1)
		assert.InDelta(t, px.Y, back.Y, 1)
	}

	// And the geo-side round trip within floating-point epsilon.
	p := geo.Point{Lat: 32.7744, Lng: -96.7931}
	round := tr.PixelToGeo(tr.GeoToPixel(p))
	assert.InDelta(t, p.Lat, round.Lat, 1e-9)
	assert.InDelta(t, p.Lng, round.Lng, 1e-9)
}

func TestTransform_PolygonRoundTrip(t *testing.T) {
	t.Parallel()

	tr, err := NewTransform(testBounds(), 640, 640)
	require.NoError(t, err)

	poly, err := geo.NewPolygon([][]geo.Point{{
		{Lat: 32.772, Lng: -96.798},
		{Lat: 32.772, Lng: -96.792},
		{Lat: 32.778, Lng: -96.792},
		{Lat: 32.778, Lng: -96.798},
	}})
	require.NoError(t, err)

	px := tr.PolygonToPixels(poly)
	require.Len(t, px, 5, "closed ring maps vertex-wise")

	back, err := tr.PixelsToPolygon(px)
	require.NoError(t, err)

	want := poly.Exterior()
	got := back.Exterior()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].Lat, got[i].Lat, 1e-9)
		assert.InDelta(t, want[i].Lng, got[i].Lng, 1e-9)
	}
}
