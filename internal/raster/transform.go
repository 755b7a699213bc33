package raster

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/pavescan/internal/geo"
)

// Pixel is a sub-pixel coordinate in raster space: x grows rightward from
// the left edge, y grows downward from the top edge.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transform is the bidirectional pixel/geo mapping for one raster.
// GeoToPixel and PixelToGeo are exact inverses up to floating-point epsilon.
type Transform struct {
	bounds geo.Bounds
	width  float64
	height float64
}

// NewTransform builds a transform for a raster of the given pixel size
// covering the given bounds.
func NewTransform(bounds geo.Bounds, widthPx, heightPx int) (*Transform, error) {
	if !bounds.Valid() {
		return nil, eris.New("raster: transform requires min<max bounds on both axes")
	}
	if widthPx <= 0 || heightPx <= 0 {
		return nil, eris.Errorf("raster: transform requires positive dimensions, got %dx%d", widthPx, heightPx)
	}
	return &Transform{
		bounds: bounds,
		width:  float64(widthPx),
		height: float64(heightPx),
	}, nil
}

// Bounds returns the geographic bounds the transform covers.
func (t *Transform) Bounds() geo.Bounds { return t.bounds }

// GeoToPixel maps a geographic point into pixel space. The top pixel row is
// MaxLat, so y grows as latitude falls.
func (t *Transform) GeoToPixel(p geo.Point) Pixel {
	return Pixel{
		X: (p.Lng - t.bounds.MinLng) / (t.bounds.MaxLng - t.bounds.MinLng) * t.width,
		Y: (t.bounds.MaxLat - p.Lat) / (t.bounds.MaxLat - t.bounds.MinLat) * t.height,
	}
}

// PixelToGeo maps a pixel coordinate back into geographic space.
func (t *Transform) PixelToGeo(px Pixel) geo.Point {
	return geo.Point{
		Lat: t.bounds.MaxLat - px.Y/t.height*(t.bounds.MaxLat-t.bounds.MinLat),
		Lng: t.bounds.MinLng + px.X/t.width*(t.bounds.MaxLng-t.bounds.MinLng),
	}
}

// PolygonToPixels maps a geo polygon's exterior ring into pixel space,
// preserving vertex order.
func (t *Transform) PolygonToPixels(poly *geo.Polygon) []Pixel {
	ext := poly.Exterior()
	out := make([]Pixel, 0, len(ext))
	for _, p := range ext {
		out = append(out, t.GeoToPixel(p))
	}
	return out
}

// PixelsToPolygon maps a pixel-space ring back into a geo polygon,
// preserving vertex order and winding.
func (t *Transform) PixelsToPolygon(ring []Pixel) (*geo.Polygon, error) {
	pts := make([]geo.Point, 0, len(ring))
	for _, px := range ring {
		pts = append(pts, t.PixelToGeo(px))
	}
	poly, err := geo.NewPolygon([][]geo.Point{pts})
	if err != nil {
		return nil, eris.Wrap(err, "raster: pixel ring to polygon")
	}
	return poly, nil
}
