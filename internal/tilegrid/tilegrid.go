// Package tilegrid plans a deterministic grid of aerial-image tiles covering
// a region of interest. Identical inputs always produce a bit-identical tile
// list, which is what makes re-analysis idempotent and the grid testable.
package tilegrid

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pavescan/internal/geo"
)

// groundResolutionBase is the standard tile-pyramid constant: meters per
// pixel at zoom 0 on the equator (2πR / 256).
const groundResolutionBase = 156543.03

// Tile is one square raster footprint in the grid. ID is a pure function of
// grid position.
type Tile struct {
	Index     int        `json:"index"`
	Row       int        `json:"row"`
	Col       int        `json:"col"`
	Zoom      int        `json:"zoom"`
	CenterLat float64    `json:"center_lat"`
	CenterLng float64    `json:"center_lng"`
	PixelSize int        `json:"pixel_size"`
	Bounds    geo.Bounds `json:"bounds"`
}

// Grid is a planned tile grid.
type Grid struct {
	Rows      int    `json:"rows"`
	Cols      int    `json:"cols"`
	Zoom      int    `json:"zoom"`
	Truncated bool   `json:"truncated"`
	Tiles     []Tile `json:"tiles"`
}

// Options controls grid planning.
type Options struct {
	ZoomMin          int     // lowest zoom considered
	ZoomMax          int     // highest zoom considered
	PixelSize        int     // square tile edge in pixels
	MaxTiles         int     // cap on rows*cols; exceeded grids are scaled down
	CoverageFraction float64 // single-tile threshold against the bbox's shorter span
	DefaultRadiusM   float64 // half-width used for zero-area regions
}

// DefaultOptions returns the standard planning parameters.
func DefaultOptions() Options {
	return Options{
		ZoomMin:          16,
		ZoomMax:          21,
		PixelSize:        640,
		MaxTiles:         100,
		CoverageFraction: 0.9,
		DefaultRadiusM:   50,
	}
}

// GroundResolution returns meters per pixel at the given zoom and latitude.
func GroundResolution(zoom int, lat float64) float64 {
	return groundResolutionBase * math.Cos(lat*math.Pi/180) / math.Pow(2, float64(zoom))
}

// PlanPolygon plans a grid covering a polygon's bounding box.
func PlanPolygon(region *geo.Polygon, opts Options) (*Grid, error) {
	return planBounds(region.Bounds(), opts)
}

// PlanPoint plans a grid covering a square of the given radius around a
// point. A non-positive radius falls back to the default radius, so a
// zero-area region still yields a single usable tile.
func PlanPoint(center geo.Point, radiusM float64, opts Options) (*Grid, error) {
	if radiusM <= 0 {
		radiusM = opts.DefaultRadiusM
	}
	return planBounds(geo.SquareAround(center, radiusM).Bounds(), opts)
}

func planBounds(bbox geo.Bounds, opts Options) (*Grid, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}
	if !bbox.Valid() {
		// Zero-area region: degrade to a default-radius square at the point.
		bbox = geo.SquareAround(bbox.Center(), opts.DefaultRadiusM).Bounds()
	}

	center := bbox.Center()
	heightM, widthM := bbox.SpanMeters()
	shortM := math.Min(heightM, widthM)

	// Prefer the finest zoom whose single-tile footprint still covers the
	// required fraction of the bbox's shorter span. If no zoom in range
	// can cover in one tile, grid out at the coarsest zoom.
	zoom := opts.ZoomMin
	single := false
	for z := opts.ZoomMax; z >= opts.ZoomMin; z-- {
		footprint := float64(opts.PixelSize) * GroundResolution(z, center.Lat)
		if footprint >= opts.CoverageFraction*shortM {
			zoom = z
			single = true
			break
		}
	}

	footprintM := float64(opts.PixelSize) * GroundResolution(zoom, center.Lat)
	rows, cols := 1, 1
	if !single {
		rows = int(math.Ceil(heightM / footprintM))
		cols = int(math.Ceil(widthM / footprintM))
	}

	truncated := false
	if rows*cols > opts.MaxTiles {
		scale := math.Sqrt(float64(opts.MaxTiles) / float64(rows*cols))
		rows = max(1, int(float64(rows)*scale))
		cols = max(1, int(float64(cols)*scale))
		truncated = true
		zap.L().Warn("tilegrid: grid truncated to tile cap",
			zap.Int("rows", rows),
			zap.Int("cols", cols),
			zap.Int("max_tiles", opts.MaxTiles),
		)
	}

	grid := &Grid{
		Rows:      rows,
		Cols:      cols,
		Zoom:      zoom,
		Truncated: truncated,
		Tiles:     make([]Tile, 0, rows*cols),
	}

	// Tile centers are evenly spaced across the bbox: each tile sits at the
	// center of its grid cell. Row 0 is the northernmost band.
	latSpan := bbox.MaxLat - bbox.MinLat
	lngSpan := bbox.MaxLng - bbox.MinLng
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			cLat := bbox.MaxLat - (float64(row)+0.5)/float64(rows)*latSpan
			cLng := bbox.MinLng + (float64(col)+0.5)/float64(cols)*lngSpan
			grid.Tiles = append(grid.Tiles, Tile{
				Index:     row*cols + col,
				Row:       row,
				Col:       col,
				Zoom:      zoom,
				CenterLat: cLat,
				CenterLng: cLng,
				PixelSize: opts.PixelSize,
				Bounds:    TileBounds(cLat, cLng, zoom, opts.PixelSize),
			})
		}
	}

	return grid, nil
}

// TileBounds derives a tile's geographic bounds from its center, zoom, and
// pixel size — the inverse of the raster transform's pixel spacing.
func TileBounds(centerLat, centerLng float64, zoom, pixelSize int) geo.Bounds {
	halfM := float64(pixelSize) * GroundResolution(zoom, centerLat) / 2
	dLat := halfM / geo.MetersPerDegLat
	dLng := halfM / geo.MetersPerDegLng(centerLat)
	return geo.Bounds{
		MinLat: centerLat - dLat,
		MaxLat: centerLat + dLat,
		MinLng: centerLng - dLng,
		MaxLng: centerLng + dLng,
	}
}

func validate(opts Options) error {
	if opts.ZoomMin > opts.ZoomMax {
		return eris.Errorf("tilegrid: zoom range [%d,%d] is inverted", opts.ZoomMin, opts.ZoomMax)
	}
	if opts.PixelSize <= 0 {
		return eris.Errorf("tilegrid: pixel size %d must be positive", opts.PixelSize)
	}
	if opts.MaxTiles <= 0 {
		return eris.Errorf("tilegrid: max tiles %d must be positive", opts.MaxTiles)
	}
	if opts.CoverageFraction <= 0 || opts.CoverageFraction > 1 {
		return eris.Errorf("tilegrid: coverage fraction %v must be in (0,1]", opts.CoverageFraction)
	}
	return nil
}
