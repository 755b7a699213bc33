package raster

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// MaskOptions controls polygon masking.
type MaskOptions struct {
	// Background is the fill color applied outside the polygon.
	Background color.NRGBA

	// FeatherPx is the Gaussian blur radius applied to the mask edge so the
	// boundary does not read as a hard linear feature to a detector.
	FeatherPx int

	// CropPaddingPx pads the polygon's bounding box before cropping.
	CropPaddingPx int

	// MinDimPx skips cropping when the padded crop would fall below this
	// size on either axis.
	MinDimPx int
}

// DefaultMaskOptions returns the standard masking parameters.
func DefaultMaskOptions() MaskOptions {
	return MaskOptions{
		Background:    color.NRGBA{R: 0, G: 0, B: 0, A: 255},
		FeatherPx:     5,
		CropPaddingPx: 20,
		MinDimPx:      100,
	}
}

// MaskResult is a masked (and possibly cropped) raster plus the offsets
// needed to translate output-pixel coordinates back into the original
// raster's pixel space.
type MaskResult struct {
	Image       *image.NRGBA
	CropOffsetX int
	CropOffsetY int
	Polygon     []Pixel // polygon adjusted into the output's pixel space
	Masked      bool
	WasCropped  bool
}

// Mask feathers and crops a raster to a pixel-space polygon. Pixels well
// inside the polygon are unchanged; pixels well outside are exactly the
// background color; the feathered band in between blends the two. A polygon
// with fewer than three vertices passes the raster through unmasked.
func Mask(img image.Image, polygonPx []Pixel, opts MaskOptions) (*MaskResult, error) {
	src := imaging.Clone(img)

	if len(distinctVertices(polygonPx)) < 3 {
		zap.L().Debug("raster: mask skipped, polygon has fewer than 3 vertices",
			zap.Int("vertices", len(polygonPx)),
		)
		return &MaskResult{
			Image:   src,
			Polygon: polygonPx,
			Masked:  false,
		}, nil
	}

	w := src.Bounds().Dx()
	h := src.Bounds().Dy()

	alpha := rasterizeAlpha(polygonPx, w, h)
	if opts.FeatherPx > 0 {
		alpha = featherAlpha(alpha, opts.FeatherPx)
	}

	blended := blend(src, alpha, opts.Background)

	result := &MaskResult{
		Image:   blended,
		Polygon: polygonPx,
		Masked:  true,
	}

	// Crop to the polygon's padded bounding box when large enough.
	x0, y0, x1, y1 := pixelBBox(polygonPx)
	x0 = max(0, x0-opts.CropPaddingPx)
	y0 = max(0, y0-opts.CropPaddingPx)
	x1 = min(w, x1+opts.CropPaddingPx)
	y1 = min(h, y1+opts.CropPaddingPx)

	if x1-x0 >= opts.MinDimPx && y1-y0 >= opts.MinDimPx && (x1-x0 < w || y1-y0 < h) {
		result.Image = imaging.Crop(blended, image.Rect(x0, y0, x1, y1))
		result.CropOffsetX = x0
		result.CropOffsetY = y0
		result.WasCropped = true

		adjusted := make([]Pixel, 0, len(polygonPx))
		for _, p := range polygonPx {
			adjusted = append(adjusted, Pixel{X: p.X - float64(x0), Y: p.Y - float64(y0)})
		}
		result.Polygon = adjusted
	}

	return result, nil
}

// ToOriginal translates a pixel in the masked output back into the original
// raster's pixel space.
func (r *MaskResult) ToOriginal(p Pixel) Pixel {
	return Pixel{X: p.X + float64(r.CropOffsetX), Y: p.Y + float64(r.CropOffsetY)}
}

// rasterizeAlpha scanline-fills the polygon into a single-channel mask:
// 255 inside, 0 outside (even-odd rule).
func rasterizeAlpha(polygon []Pixel, w, h int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, w, h))

	ring := closeRing(polygon)
	for y := 0; y < h; y++ {
		cy := float64(y) + 0.5

		var xs []float64
		for i := 0; i+1 < len(ring); i++ {
			a, b := ring[i], ring[i+1]
			if (a.Y <= cy && b.Y > cy) || (b.Y <= cy && a.Y > cy) {
				t := (cy - a.Y) / (b.Y - a.Y)
				xs = append(xs, a.X+t*(b.X-a.X))
			}
		}
		sort.Float64s(xs)

		for i := 0; i+1 < len(xs); i += 2 {
			x0 := int(math.Ceil(xs[i] - 0.5))
			x1 := int(math.Floor(xs[i+1] - 0.5))
			for x := max(0, x0); x <= min(w-1, x1); x++ {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return mask
}

// featherAlpha Gaussian-blurs the mask edge.
func featherAlpha(mask *image.Gray, radius int) *image.Gray {
	blurred := blur.Gaussian(mask, float64(radius))

	out := image.NewGray(mask.Bounds())
	b := mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetGray(x, y, color.Gray{Y: blurred.RGBAAt(x, y).R})
		}
	}
	return out
}

// blend mixes the source with the background using the mask as a per-pixel
// weight. Alpha 255 yields the source pixel exactly; alpha 0 yields the
// background exactly.
func blend(src *image.NRGBA, alpha *image.Gray, bg color.NRGBA) *image.NRGBA {
	b := src.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := uint32(alpha.GrayAt(x, y).Y)
			fg := src.NRGBAAt(x, y)
			out.SetNRGBA(x, y, color.NRGBA{
				R: mix(fg.R, bg.R, a),
				G: mix(fg.G, bg.G, a),
				B: mix(fg.B, bg.B, a),
				A: 255,
			})
		}
	}
	return out
}

func mix(fg, bg uint8, a uint32) uint8 {
	return uint8((uint32(fg)*a + uint32(bg)*(255-a) + 127) / 255)
}

func pixelBBox(polygon []Pixel) (x0, y0, x1, y1 int) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range polygon {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY))
}

func closeRing(polygon []Pixel) []Pixel {
	if len(polygon) == 0 {
		return polygon
	}
	if polygon[0] == polygon[len(polygon)-1] {
		return polygon
	}
	out := make([]Pixel, len(polygon)+1)
	copy(out, polygon)
	out[len(polygon)] = polygon[0]
	return out
}

func distinctVertices(polygon []Pixel) []Pixel {
	var out []Pixel
	seen := make(map[Pixel]bool, len(polygon))
	for _, p := range polygon {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
