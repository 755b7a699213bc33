package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pavescan/internal/geo"
)

func uniformImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestMask_InteriorUnchangedExteriorBackground(t *testing.T) {
	t.Parallel()

	fill := color.NRGBA{R: 120, G: 130, B: 140, A: 255}
	bg := color.NRGBA{R: 10, G: 20, B: 30, A: 255}
	img := uniformImage(200, 200, fill)

	polygon := []Pixel{
		{X: 60, Y: 60}, {X: 140, Y: 60}, {X: 140, Y: 140}, {X: 60, Y: 140},
	}

	opts := DefaultMaskOptions()
	opts.Background = bg
	opts.MinDimPx = 300 // keep full frame so coordinates stay comparable

	res, err := Mask(img, polygon, opts)
	require.NoError(t, err)
	require.True(t, res.Masked)
	assert.False(t, res.WasCropped)

	// Deep interior: untouched by the feather.
	assert.Equal(t, fill, res.Image.NRGBAAt(100, 100))

	// Far exterior: exactly the background color.
	assert.Equal(t, bg, res.Image.NRGBAAt(5, 5))
	assert.Equal(t, bg, res.Image.NRGBAAt(195, 195))
}

func TestMask_FeatherBlendsEdge(t *testing.T) {
	t.Parallel()

	fill := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	bg := color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	img := uniformImage(200, 200, fill)

	polygon := []Pixel{
		{X: 60, Y: 60}, {X: 140, Y: 60}, {X: 140, Y: 140}, {X: 60, Y: 140},
	}

	opts := DefaultMaskOptions()
	opts.Background = bg
	opts.MinDimPx = 300

	res, err := Mask(img, polygon, opts)
	require.NoError(t, err)

	// A pixel right on the boundary should be neither pure fill nor pure
	// background once feathered.
	edge := res.Image.NRGBAAt(60, 100)
	assert.Greater(t, edge.R, uint8(0))
	assert.Less(t, edge.R, uint8(255))
}

func TestMask_CropsWithPaddingAndOffsets(t *testing.T) {
	t.Parallel()

	img := uniformImage(640, 640, color.NRGBA{R: 90, G: 90, B: 90, A: 255})
	polygon := []Pixel{
		{X: 200, Y: 200}, {X: 400, Y: 200}, {X: 400, Y: 400}, {X: 200, Y: 400},
	}

	opts := DefaultMaskOptions()
	res, err := Mask(img, polygon, opts)
	require.NoError(t, err)
	require.True(t, res.WasCropped)

	assert.Equal(t, 180, res.CropOffsetX)
	assert.Equal(t, 180, res.CropOffsetY)
	assert.Equal(t, 240, res.Image.Bounds().Dx())
	assert.Equal(t, 240, res.Image.Bounds().Dy())

	// Polygon is shifted into crop space and maps back via ToOriginal.
	assert.InDelta(t, 20, res.Polygon[0].X, 1e-9)
	orig := res.ToOriginal(res.Polygon[0])
	assert.InDelta(t, 200, orig.X, 1e-9)
	assert.InDelta(t, 200, orig.Y, 1e-9)
}

func TestMask_SkipsCropBelowMinDim(t *testing.T) {
	t.Parallel()

	img := uniformImage(640, 640, color.NRGBA{R: 90, G: 90, B: 90, A: 255})
	polygon := []Pixel{
		{X: 300, Y: 300}, {X: 330, Y: 300}, {X: 330, Y: 330}, {X: 300, Y: 330},
	}

	res, err := Mask(img, polygon, DefaultMaskOptions())
	require.NoError(t, err)
	require.True(t, res.Masked)

	assert.False(t, res.WasCropped)
	assert.Equal(t, 640, res.Image.Bounds().Dx())
	assert.Zero(t, res.CropOffsetX)
}

func TestMask_DegeneratePolygonPassthrough(t *testing.T) {
	t.Parallel()

	fill := color.NRGBA{R: 50, G: 60, B: 70, A: 255}
	img := uniformImage(64, 64, fill)

	res, err := Mask(img, []Pixel{{X: 1, Y: 1}, {X: 2, Y: 2}}, DefaultMaskOptions())
	require.NoError(t, err)

	assert.False(t, res.Masked)
	assert.Equal(t, fill, res.Image.NRGBAAt(32, 32))
}

func TestImage_NewAndTransform(t *testing.T) {
	t.Parallel()

	data, err := EncodePNG(uniformImage(64, 48, color.NRGBA{A: 255}))
	require.NoError(t, err)

	b := geo.Bounds{MinLat: 32.0, MaxLat: 32.001, MinLng: -96.001, MaxLng: -96.0}
	im, err := NewImage(data, b)
	require.NoError(t, err)
	assert.Equal(t, 64, im.Width)
	assert.Equal(t, 48, im.Height)

	tr, err := im.Transform()
	require.NoError(t, err)
	assert.Equal(t, b, tr.Bounds())

	decoded, err := im.Decode()
	require.NoError(t, err)
	assert.Equal(t, 64, decoded.Bounds().Dx())
}

func TestImage_RejectsInvalidBounds(t *testing.T) {
	t.Parallel()

	_, err := NewImage(nil, geo.Bounds{})
	assert.Error(t, err)
}
