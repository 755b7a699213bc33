package parcel

import (
	"context"
	"math"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/pavescan/internal/geo"
)

// ShapefileOptions configures the county shapefile provider.
type ShapefileOptions struct {
	// Path is the .shp file holding parcel polygons in WGS84.
	Path string

	// AddressField is the attribute column carrying the parcel's situs
	// address.
	AddressField string
}

// ShapefileProvider serves parcel lookups from a county assessor shapefile
// loaded into memory. Useful where the cadastral API has no coverage but the
// county publishes its parcel layer directly.
type ShapefileProvider struct {
	records []shpRecord
	log     *zap.Logger
}

type shpRecord struct {
	polygon *geo.Polygon
	bounds  geo.Bounds
	address string
}

// NewShapefile loads a parcel shapefile into memory.
func NewShapefile(opts ShapefileOptions) (*ShapefileProvider, error) {
	if opts.AddressField == "" {
		opts.AddressField = "situs_addr"
	}

	reader, err := shp.Open(opts.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "parcel: open shapefile %s", opts.Path)
	}
	defer func() { _ = reader.Close() }()

	addrIdx := -1
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, opts.AddressField) {
			addrIdx = i
			break
		}
	}

	p := &ShapefileProvider{
		log: zap.L().With(zap.String("component", "parcel.shapefile")),
	}

	skipped := 0
	for reader.Next() {
		_, shape := reader.Shape()
		sp, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}

		poly, convErr := shpPolygonToGeo(sp)
		if convErr != nil || poly == nil {
			skipped++
			continue
		}

		rec := shpRecord{polygon: poly, bounds: poly.Bounds()}
		if addrIdx >= 0 {
			rec.address = normalizeAddress(strings.TrimRight(reader.Attribute(addrIdx), "\x00"))
		}
		p.records = append(p.records, rec)
	}

	if skipped > 0 {
		p.log.Debug("skipped shapefile records", zap.Int("skipped", skipped))
	}
	if len(p.records) == 0 {
		return nil, eris.Errorf("parcel: shapefile %s has no usable polygons", opts.Path)
	}

	p.log.Info("loaded parcel shapefile",
		zap.String("path", opts.Path),
		zap.Int("parcels", len(p.records)),
	)
	return p, nil
}

func (p *ShapefileProvider) Name() string { return "county-shapefile" }

// LookupByPoint returns the first parcel whose polygon contains the point.
func (p *ShapefileProvider) LookupByPoint(_ context.Context, pt geo.Point) (*geo.Polygon, error) {
	for _, rec := range p.records {
		if !rec.bounds.Contains(pt) {
			continue
		}
		if rec.polygon.Contains(pt, 0) {
			return rec.polygon, nil
		}
	}
	return nil, ErrNoCoverage
}

// LookupByAddress returns the parcel whose situs address matches.
func (p *ShapefileProvider) LookupByAddress(_ context.Context, address string) (*geo.Polygon, error) {
	want := normalizeAddress(address)
	if want == "" {
		return nil, ErrNoCoverage
	}
	for _, rec := range p.records {
		if rec.address != "" && rec.address == want {
			return rec.polygon, nil
		}
	}
	return nil, ErrNoCoverage
}

// shpPolygonToGeo converts a shapefile polygon through go-geom into a geo
// polygon. Only the first (outer) ring of the largest part is kept; parcel
// holes do not affect boundary analysis.
func shpPolygonToGeo(sp *shp.Polygon) (*geo.Polygon, error) {
	if sp == nil || sp.NumParts == 0 || len(sp.Points) == 0 {
		return nil, eris.New("parcel: empty shapefile polygon")
	}

	var best *geom.Polygon
	bestArea := -1.0
	for i := int32(0); i < sp.NumParts; i++ {
		start := sp.Parts[i]
		end := int32(len(sp.Points))
		if i+1 < sp.NumParts {
			end = sp.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, sp.Points[j].X, sp.Points[j].Y)
		}
		if len(flat) < 8 { // 3 distinct vertices + closure
			continue
		}

		poly := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
		if a := math.Abs(poly.Area()); a > bestArea {
			bestArea = a
			best = poly
		}
	}
	if best == nil {
		return nil, eris.New("parcel: no usable ring in shapefile polygon")
	}

	coords := best.Coords()[0]
	ring := make([]geo.Point, 0, len(coords))
	for _, c := range coords {
		ring = append(ring, geo.Point{Lat: c.Y(), Lng: c.X()})
	}
	return geo.NewPolygon([][]geo.Point{ring})
}

func normalizeAddress(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}
