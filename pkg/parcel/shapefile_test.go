package parcel

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squareShape(x0, y0, side float64) *shp.Polygon {
	return &shp.Polygon{
		NumParts:  1,
		NumPoints: 5,
		Parts:     []int32{0},
		Points: []shp.Point{
			{X: x0, Y: y0},
			{X: x0, Y: y0 + side},
			{X: x0 + side, Y: y0 + side},
			{X: x0 + side, Y: y0},
			{X: x0, Y: y0},
		},
	}
}

func writeTestShapefile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "parcels.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("SITUS_ADDR", 64)}))

	w.Write(squareShape(-96.798, 32.776, 0.002))
	require.NoError(t, w.WriteAttribute(0, 0, "100 Main St"))

	w.Write(squareShape(-96.790, 32.780, 0.001))
	require.NoError(t, w.WriteAttribute(1, 0, "200  ELM AVE "))

	w.Close()
	return path
}

func TestShapefileProvider_LookupByPoint(t *testing.T) {
	t.Parallel()

	p, err := NewShapefile(ShapefileOptions{Path: writeTestShapefile(t)})
	require.NoError(t, err)

	poly, err := p.LookupByPoint(context.Background(), pointXY(32.777, -96.797))
	require.NoError(t, err)
	require.NotNil(t, poly)
	assert.True(t, poly.Contains(pointXY(32.777, -96.797), 0))

	_, err = p.LookupByPoint(context.Background(), pointXY(40.0, -74.0))
	assert.ErrorIs(t, err, ErrNoCoverage)
}

func TestShapefileProvider_LookupByAddress(t *testing.T) {
	t.Parallel()

	p, err := NewShapefile(ShapefileOptions{Path: writeTestShapefile(t)})
	require.NoError(t, err)

	// Case and whitespace are normalized on both sides.
	poly, err := p.LookupByAddress(context.Background(), "200 elm ave")
	require.NoError(t, err)
	require.NotNil(t, poly)
	assert.True(t, poly.Contains(pointXY(32.7805, -96.7895), 0))

	_, err = p.LookupByAddress(context.Background(), "999 Nowhere Ln")
	assert.ErrorIs(t, err, ErrNoCoverage)

	_, err = p.LookupByAddress(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoCoverage)
}

func TestShapefileProvider_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewShapefile(ShapefileOptions{Path: filepath.Join(t.TempDir(), "missing.shp")})
	assert.Error(t, err)
}

func TestShpPolygonToGeo_MultiPartKeepsLargest(t *testing.T) {
	t.Parallel()

	// Part 1 is a sliver; part 2 is the parcel proper.
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			{X: -96.9, Y: 32.7},
			{X: -96.9, Y: 32.7001},
			{X: -96.8999, Y: 32.7001},
			{X: -96.8999, Y: 32.7},
			{X: -96.9, Y: 32.7},

			{X: -96.798, Y: 32.776},
			{X: -96.798, Y: 32.778},
			{X: -96.796, Y: 32.778},
			{X: -96.796, Y: 32.776},
			{X: -96.798, Y: 32.776},
		},
	}

	got, err := shpPolygonToGeo(poly)
	require.NoError(t, err)
	assert.True(t, got.Contains(pointXY(32.777, -96.797), 0))
}

func TestShpPolygonToGeo_Degenerate(t *testing.T) {
	t.Parallel()

	_, err := shpPolygonToGeo(&shp.Polygon{})
	assert.Error(t, err)

	_, err = shpPolygonToGeo(&shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points:   []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
	})
	assert.Error(t, err)
}

func TestNormalizeAddress(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "100 main st", normalizeAddress("  100  MAIN   St "))
	assert.Equal(t, "", normalizeAddress("   "))
}
