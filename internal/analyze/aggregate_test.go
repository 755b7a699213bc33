package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pavescan/internal/detect"
	"github.com/sells-group/pavescan/internal/geo"
)

// squareAtMeters builds an axis-aligned square near the equator whose
// south-west corner sits (x0, y0) meters east/north of the origin.
func squareAtMeters(t *testing.T, x0, y0, sideM float64) *geo.Polygon {
	t.Helper()

	lat0 := y0 / geo.MetersPerDegLat
	lng0 := x0 / geo.MetersPerDegLng(0)
	dLat := sideM / geo.MetersPerDegLat
	dLng := sideM / geo.MetersPerDegLng(0)

	poly, err := geo.NewPolygon([][]geo.Point{{
		{Lat: lat0, Lng: lng0},
		{Lat: lat0, Lng: lng0 + dLng},
		{Lat: lat0 + dLat, Lng: lng0 + dLng},
		{Lat: lat0 + dLat, Lng: lng0},
	}})
	require.NoError(t, err)
	return poly
}

func surfaceOf(st detect.SurfaceType, poly *geo.Polygon) detect.DetectedSurface {
	area := poly.AreaM2()
	return detect.DetectedSurface{
		SurfaceType: st,
		Confidence:  0.9,
		Polygons:    []*geo.Polygon{poly},
		AreaM2:      area,
		AreaSqft:    area * geo.SqftPerSqm,
	}
}

func TestAggregate_OverlapCountedOnce(t *testing.T) {
	t.Parallel()

	// Two 10m squares overlapping by half: union is 150 m², not 200.
	tiles := []TileResult{
		{Surfaces: []detect.DetectedSurface{surfaceOf(detect.SurfaceAsphalt, squareAtMeters(t, 0, 0, 10))}},
		{Surfaces: []detect.DetectedSurface{surfaceOf(detect.SurfaceAsphalt, squareAtMeters(t, 5, 0, 10))}},
	}

	agg := NewAggregator(DefaultAggregatorOptions(), nil)
	result, err := agg.Aggregate(tiles, 2)
	require.NoError(t, err)

	require.Len(t, result.Surfaces, 1)
	assert.Equal(t, detect.SurfaceAsphalt, result.Surfaces[0].SurfaceType)
	assert.Equal(t, 2, result.Surfaces[0].Detections)
	assert.InDelta(t, 150, result.Surfaces[0].AreaM2, 2)
	assert.InDelta(t, 150, result.TotalPavedM2, 2)
	assert.Equal(t, 2, result.TilesUsed)
	assert.Equal(t, 2, result.TilesTotal)
}

func TestAggregate_ConditionMeanOverQualifyingTiles(t *testing.T) {
	t.Parallel()

	tiles := []TileResult{
		{
			// 100 m² of asphalt qualifies this tile for condition scoring.
			Surfaces: []detect.DetectedSurface{surfaceOf(detect.SurfaceAsphalt, squareAtMeters(t, 0, 0, 10))},
			Condition: &detect.ConditionReport{
				Score:        40,
				CrackCount:   2,
				PotholeCount: 1,
				Damage: []detect.Hotspot{
					{Kind: detect.DamageCrack, Severity: detect.SeverityModerate},
					{Kind: detect.DamageCrack, Severity: detect.SeverityMinor},
				},
			},
		},
		{
			// ~30 m² of concrete is below the qualifying threshold: the 90
			// score must not dilute the property mean, but its damage
			// findings still count.
			Surfaces: []detect.DetectedSurface{surfaceOf(detect.SurfaceConcrete, squareAtMeters(t, 100, 0, 5.5))},
			Condition: &detect.ConditionReport{
				Score:      90,
				CrackCount: 7,
				Damage: []detect.Hotspot{
					{Kind: detect.DamageCrack, Severity: detect.SeveritySevere},
				},
			},
		},
		{
			// Roof-only tile: condition says nothing about pavement.
			Surfaces:  []detect.DetectedSurface{surfaceOf(detect.SurfaceBuilding, squareAtMeters(t, 200, 0, 20))},
			Condition: &detect.ConditionReport{Score: 10, PotholeCount: 4},
		},
	}

	agg := NewAggregator(DefaultAggregatorOptions(), nil)
	result, err := agg.Aggregate(tiles, 3)
	require.NoError(t, err)

	// Only the 100 m² tile scores, but damage sums across all three tiles.
	assert.InDelta(t, 40, result.ConditionScore, 1e-9)
	assert.Equal(t, 9, result.CrackCount)
	assert.Equal(t, 5, result.PotholeCount)
	require.Len(t, result.Hotspots, 2)
	assert.Equal(t, detect.SeverityModerate, result.Hotspots[0].Severity)
	assert.Equal(t, detect.SeveritySevere, result.Hotspots[1].Severity)

	// Paved area still counts the sub-threshold concrete.
	assert.InDelta(t, 100+30.25, result.TotalPavedM2, 2)
}

func TestAggregate_NoPavementDefaultsCondition(t *testing.T) {
	t.Parallel()

	tiles := []TileResult{
		{
			Surfaces:  []detect.DetectedSurface{surfaceOf(detect.SurfaceBuilding, squareAtMeters(t, 0, 0, 30))},
			Condition: &detect.ConditionReport{Score: 15},
		},
	}

	agg := NewAggregator(DefaultAggregatorOptions(), nil)
	result, err := agg.Aggregate(tiles, 1)
	require.NoError(t, err)

	assert.Equal(t, 100.0, result.ConditionScore)
	assert.Zero(t, result.TotalPavedM2)
	assert.Equal(t, LeadLow, result.LeadQuality)
}

func TestAggregate_FailedTilesExcluded(t *testing.T) {
	t.Parallel()

	tiles := []TileResult{
		{Surfaces: []detect.DetectedSurface{surfaceOf(detect.SurfaceAsphalt, squareAtMeters(t, 0, 0, 10))}},
		{Failed: &TileFailure{TileIndex: 1, Stage: "fetch", Cause: "upstream 502"}},
	}

	agg := NewAggregator(DefaultAggregatorOptions(), nil)
	result, err := agg.Aggregate(tiles, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TilesUsed)
	assert.Equal(t, 2, result.TilesTotal)
	assert.InDelta(t, 100, result.TotalPavedM2, 2)
}

func TestAggregate_Deterministic(t *testing.T) {
	t.Parallel()

	tiles := []TileResult{
		{Surfaces: []detect.DetectedSurface{
			surfaceOf(detect.SurfaceConcrete, squareAtMeters(t, 0, 50, 12)),
			surfaceOf(detect.SurfaceAsphalt, squareAtMeters(t, 0, 0, 10)),
		}},
		{Surfaces: []detect.DetectedSurface{surfaceOf(detect.SurfaceAsphalt, squareAtMeters(t, 30, 0, 10))}},
	}
	reversed := []TileResult{tiles[1], tiles[0]}

	agg := NewAggregator(DefaultAggregatorOptions(), nil)
	a, err := agg.Aggregate(tiles, 2)
	require.NoError(t, err)
	b, err := agg.Aggregate(reversed, 2)
	require.NoError(t, err)

	// Surface ordering is by type, independent of tile completion order.
	require.Len(t, a.Surfaces, 2)
	assert.Equal(t, detect.SurfaceAsphalt, a.Surfaces[0].SurfaceType)
	assert.Equal(t, detect.SurfaceConcrete, a.Surfaces[1].SurfaceType)

	for i := range a.Surfaces {
		assert.Equal(t, a.Surfaces[i].SurfaceType, b.Surfaces[i].SurfaceType)
		assert.InDelta(t, a.Surfaces[i].AreaM2, b.Surfaces[i].AreaM2, 1e-6)
	}
	assert.InDelta(t, a.TotalPavedM2, b.TotalPavedM2, 1e-6)
	assert.Equal(t, a.LeadQuality, b.LeadQuality)
	assert.Equal(t, a.ConditionScore, b.ConditionScore)
}

func TestAggregate_LeadTierFromMergedArea(t *testing.T) {
	t.Parallel()

	// ~1000 m² ≈ 10764 sqft of rough asphalt lands in the standard tier.
	tiles := []TileResult{
		{
			Surfaces:  []detect.DetectedSurface{surfaceOf(detect.SurfaceAsphalt, squareAtMeters(t, 0, 0, 31.7))},
			Condition: &detect.ConditionReport{Score: 55},
		},
	}

	agg := NewAggregator(DefaultAggregatorOptions(), nil)
	result, err := agg.Aggregate(tiles, 1)
	require.NoError(t, err)

	assert.Greater(t, result.TotalPavedSqft, 10000.0)
	assert.Equal(t, LeadStandard, result.LeadQuality)
}
