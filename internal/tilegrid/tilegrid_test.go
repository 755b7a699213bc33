package tilegrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pavescan/internal/geo"
)

func TestGroundResolution(t *testing.T) {
	t.Parallel()

	// Zoom 0 at the equator is the base constant.
	assert.InDelta(t, 156543.03, GroundResolution(0, 0), 0.01)

	// Each zoom level halves the resolution.
	assert.InDelta(t, GroundResolution(10, 0)/2, GroundResolution(11, 0), 1e-6)

	// Higher latitude shrinks the footprint.
	assert.Less(t, GroundResolution(15, 60), GroundResolution(15, 0))
}

func TestPlanPoint_SingleTileForSmallRegion(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	grid, err := PlanPoint(geo.Point{Lat: 32.7767, Lng: -96.7970}, 40, opts)
	require.NoError(t, err)

	assert.Equal(t, 1, grid.Rows)
	assert.Equal(t, 1, grid.Cols)
	require.Len(t, grid.Tiles, 1)

	tile := grid.Tiles[0]
	assert.Equal(t, 0, tile.Index)
	assert.InDelta(t, 32.7767, tile.CenterLat, 1e-6)
	assert.True(t, tile.Bounds.Valid())
	assert.GreaterOrEqual(t, tile.Zoom, opts.ZoomMin)
	assert.LessOrEqual(t, tile.Zoom, opts.ZoomMax)
}

func TestPlanPoint_PrefersFinestCoveringZoom(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	grid, err := PlanPoint(geo.Point{Lat: 0, Lng: 0}, 30, opts)
	require.NoError(t, err)
	require.Len(t, grid.Tiles, 1)

	// The next-finer zoom's footprint must NOT cover the region, otherwise
	// the planner left resolution on the table.
	if grid.Zoom < opts.ZoomMax {
		finer := float64(opts.PixelSize) * GroundResolution(grid.Zoom+1, 0)
		assert.Less(t, finer, opts.CoverageFraction*60.0)
	}
}

func TestPlanPoint_TwoByTwoGrid(t *testing.T) {
	t.Parallel()

	// 200m x 200m region at a zoom whose tile footprint is ~153m:
	// ceil(200/153) = 2 on each axis.
	opts := DefaultOptions()
	opts.ZoomMin = 19
	opts.ZoomMax = 19
	opts.PixelSize = 512

	grid, err := PlanPoint(geo.Point{Lat: 0, Lng: 0}, 100, opts)
	require.NoError(t, err)

	assert.Equal(t, 2, grid.Rows)
	assert.Equal(t, 2, grid.Cols)
	assert.Len(t, grid.Tiles, 4)
	assert.False(t, grid.Truncated)

	// Row 0 is the northern band; indexes walk row-major.
	assert.Greater(t, grid.Tiles[0].CenterLat, grid.Tiles[2].CenterLat)
	assert.Less(t, grid.Tiles[0].CenterLng, grid.Tiles[1].CenterLng)
	for i, tile := range grid.Tiles {
		assert.Equal(t, i, tile.Index)
		assert.Equal(t, i/2, tile.Row)
		assert.Equal(t, i%2, tile.Col)
	}
}

func TestPlanPoint_Deterministic(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	center := geo.Point{Lat: 32.7767, Lng: -96.7970}

	a, err := PlanPoint(center, 350, opts)
	require.NoError(t, err)
	b, err := PlanPoint(center, 350, opts)
	require.NoError(t, err)

	assert.Equal(t, a, b, "identical inputs must produce bit-identical grids")
}

func TestPlanPoint_TruncatesAtTileCap(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.ZoomMin = 20
	opts.ZoomMax = 20
	opts.MaxTiles = 9

	// A 2km square at zoom 20 wants far more than 9 tiles.
	grid, err := PlanPoint(geo.Point{Lat: 32.7767, Lng: -96.7970}, 1000, opts)
	require.NoError(t, err)

	assert.True(t, grid.Truncated)
	assert.LessOrEqual(t, grid.Rows*grid.Cols, opts.MaxTiles)
	assert.Len(t, grid.Tiles, grid.Rows*grid.Cols)
}

func TestPlanPoint_ZeroRadiusFallsBack(t *testing.T) {
	t.Parallel()

	grid, err := PlanPoint(geo.Point{Lat: 32.7767, Lng: -96.7970}, 0, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, grid.Tiles, 1)
	assert.True(t, grid.Tiles[0].Bounds.Valid())
}

func TestPlanPolygon(t *testing.T) {
	t.Parallel()

	region := geo.SquareAround(geo.Point{Lat: 32.7767, Lng: -96.7970}, 150)
	grid, err := PlanPolygon(region, DefaultOptions())
	require.NoError(t, err)

	require.NotEmpty(t, grid.Tiles)
	// Tile centers stay inside the region's bbox.
	bbox := region.Bounds()
	for _, tile := range grid.Tiles {
		assert.True(t, bbox.Contains(geo.Point{Lat: tile.CenterLat, Lng: tile.CenterLng}))
	}
}

func TestTileBounds_MatchesFootprint(t *testing.T) {
	t.Parallel()

	b := TileBounds(32.7767, -96.7970, 19, 640)
	require.True(t, b.Valid())

	h, w := b.SpanMeters()
	want := 640 * GroundResolution(19, 32.7767)
	assert.InDelta(t, want, h, want*0.01)
	assert.InDelta(t, want, w, want*0.01)
}

func TestPlan_OptionValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"inverted zoom range", func(o *Options) { o.ZoomMin = 20; o.ZoomMax = 16 }},
		{"zero pixel size", func(o *Options) { o.PixelSize = 0 }},
		{"zero max tiles", func(o *Options) { o.MaxTiles = 0 }},
		{"bad coverage fraction", func(o *Options) { o.CoverageFraction = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := DefaultOptions()
			tt.mutate(&opts)
			_, err := PlanPoint(geo.Point{}, 50, opts)
			assert.Error(t, err)
		})
	}
}
