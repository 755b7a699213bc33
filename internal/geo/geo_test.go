package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		a, b    Point
		wantM   float64
		within  float64
	}{
		{
			name:   "same point",
			a:      Point{Lat: 32.7767, Lng: -96.7970},
			b:      Point{Lat: 32.7767, Lng: -96.7970},
			wantM:  0,
			within: 0.001,
		},
		{
			name:   "one degree of latitude",
			a:      Point{Lat: 32.0, Lng: -96.0},
			b:      Point{Lat: 33.0, Lng: -96.0},
			wantM:  111195,
			within: 200,
		},
		{
			name:   "about 150m east at dallas latitude",
			a:      Point{Lat: 32.7767, Lng: -96.7970},
			b:      Point{Lat: 32.7767, Lng: -96.79539},
			wantM:  150,
			within: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.wantM, Haversine(tt.a, tt.b), tt.within)
		})
	}
}

func TestMetersPerDegLng(t *testing.T) {
	t.Parallel()

	// At the equator the east-west scale equals the north-south scale;
	// at 60°N it is halved.
	assert.InDelta(t, MetersPerDegLat, MetersPerDegLng(0), 0.01)
	assert.InDelta(t, MetersPerDegLat/2, MetersPerDegLng(60), 1)
}

func TestBoundsSpanMeters(t *testing.T) {
	t.Parallel()

	b := Bounds{
		MinLat: 32.0,
		MaxLat: 32.001,
		MinLng: -96.001,
		MaxLng: -96.0,
	}
	h, w := b.SpanMeters()
	assert.InDelta(t, 111.0, h, 1)
	assert.InDelta(t, 94.1, w, 1) // 111 * cos(32°)
}

func TestBoundsContains(t *testing.T) {
	t.Parallel()

	b := Bounds{MinLat: 32.0, MaxLat: 33.0, MinLng: -97.0, MaxLng: -96.0}

	assert.True(t, b.Contains(Point{Lat: 32.5, Lng: -96.5}))
	assert.True(t, b.Contains(Point{Lat: 32.0, Lng: -97.0}), "edges are inclusive")
	assert.False(t, b.Contains(Point{Lat: 33.5, Lng: -96.5}))
}

func TestBoundsExpand(t *testing.T) {
	t.Parallel()

	b := Bounds{MinLat: 32.0, MaxLat: 32.001, MinLng: -96.001, MaxLng: -96.0}
	grown := b.Expand(100)

	require.True(t, grown.Valid())
	h0, w0 := b.SpanMeters()
	h1, w1 := grown.SpanMeters()
	assert.InDelta(t, h0+200, h1, 1)
	assert.InDelta(t, w0+200, w1, 1)
}

func TestBoundsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Bounds{MinLat: 1, MaxLat: 2, MinLng: 3, MaxLng: 4}.Valid())
	assert.False(t, Bounds{MinLat: 2, MaxLat: 1, MinLng: 3, MaxLng: 4}.Valid())
	assert.False(t, Bounds{}.Valid())
}
