package detect

import (
	"go.uber.org/zap"

	"github.com/sells-group/pavescan/internal/geo"
	"github.com/sells-group/pavescan/internal/raster"
)

// MapperOptions controls detection-to-geo conversion thresholds.
type MapperOptions struct {
	// MinConfidence drops detections the model itself is unsure about.
	MinConfidence float64

	// MinAreaM2 drops slivers below a usable surface size.
	MinAreaM2 float64
}

// DefaultMapperOptions returns the standard mapping thresholds.
func DefaultMapperOptions() MapperOptions {
	return MapperOptions{
		MinConfidence: 0.25,
		MinAreaM2:     20,
	}
}

// GeoMapper converts raw pixel-space detections into clipped, geo-referenced
// surfaces.
type GeoMapper struct {
	opts MapperOptions
	log  *zap.Logger
}

// NewGeoMapper creates a GeoMapper.
func NewGeoMapper(opts MapperOptions) *GeoMapper {
	return &GeoMapper{
		opts: opts,
		log:  zap.L().With(zap.String("component", "detect.mapper")),
	}
}

// Map converts each raw detection into a DetectedSurface using the raster's
// transform. When clipTo is non-nil the detection polygon is intersected
// with it; detections that fall entirely outside, score below the
// confidence floor, or cover less than the minimum metric area are dropped.
func (m *GeoMapper) Map(raw []RawDetection, transform *raster.Transform, clipTo *geo.Polygon) []DetectedSurface {
	surfaces := make([]DetectedSurface, 0, len(raw))

	for _, det := range raw {
		if det.Confidence < m.opts.MinConfidence {
			continue
		}

		poly, err := transform.PixelsToPolygon(det.Polygon)
		if err != nil {
			m.log.Debug("dropping unmappable detection",
				zap.String("label", det.Label),
				zap.Error(err),
			)
			continue
		}

		parts := []*geo.Polygon{poly}
		areaM2 := poly.AreaM2()
		geometry, _ := poly.GeoJSON()

		if clipTo != nil {
			clipped, clipErr := geo.Intersect(poly, clipTo)
			if clipErr != nil {
				m.log.Warn("clip failed, dropping detection",
					zap.String("label", det.Label),
					zap.Error(clipErr),
				)
				continue
			}
			if clipped.Empty() {
				continue
			}
			// A concave parcel can split the intersection; every part's
			// area counts toward the surface.
			parts = clipped.Polygons()
			if len(parts) == 0 {
				continue
			}
			areaM2 = clipped.AreaM2()
			if len(parts) == 1 {
				geometry, _ = parts[0].GeoJSON()
			} else {
				geometry, _ = clipped.GeoJSON()
			}
		}

		if areaM2 < m.opts.MinAreaM2 {
			continue
		}

		surfaces = append(surfaces, DetectedSurface{
			SurfaceType: ParseSurfaceType(det.Label),
			Confidence:  det.Confidence,
			Polygons:    parts,
			Geometry:    geometry,
			AreaM2:      areaM2,
			AreaSqft:    areaM2 * geo.SqftPerSqm,
		})
	}

	return surfaces
}
