package parcel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/pavescan/internal/geo"
	"github.com/sells-group/pavescan/internal/resilience"
)

// HTTPOptions configures the cadastral API client.
type HTTPOptions struct {
	BaseURL string
	APIKey  string

	// RequestsPerSecond throttles calls to the provider. Zero disables
	// throttling.
	RequestsPerSecond float64

	Timeout time.Duration
}

// HTTPProvider looks up parcel boundaries from a cadastral HTTP API that
// serves GeoJSON parcel records.
type HTTPProvider struct {
	opts    HTTPOptions
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewHTTP creates a cadastral API client.
func NewHTTP(opts HTTPOptions) (*HTTPProvider, error) {
	if opts.BaseURL == "" {
		return nil, eris.New("parcel: base URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &HTTPProvider{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: limiter,
		log:     zap.L().With(zap.String("component", "parcel.http")),
	}, nil
}

func (p *HTTPProvider) Name() string { return "cadastral-api" }

// LookupByPoint fetches the parcel containing the point.
func (p *HTTPProvider) LookupByPoint(ctx context.Context, pt geo.Point) (*geo.Polygon, error) {
	params := url.Values{
		"lat": {strconv.FormatFloat(pt.Lat, 'f', -1, 64)},
		"lng": {strconv.FormatFloat(pt.Lng, 'f', -1, 64)},
	}
	return p.lookup(ctx, params)
}

// LookupByAddress fetches the parcel matching a street address.
func (p *HTTPProvider) LookupByAddress(ctx context.Context, address string) (*geo.Polygon, error) {
	return p.lookup(ctx, url.Values{"address": {address}})
}

type parcelResponse struct {
	Parcels []struct {
		Geometry json.RawMessage `json:"geometry"`
	} `json:"parcels"`
}

func (p *HTTPProvider) lookup(ctx context.Context, params url.Values) (*geo.Polygon, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "parcel: rate limit")
	}

	reqURL := p.opts.BaseURL + "/parcels?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "parcel: build request")
	}
	if p.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.opts.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "parcel: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoCoverage
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("parcel: provider returned status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("parcel: provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "parcel: read body")
	}

	var pr parcelResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, eris.Wrap(err, "parcel: parse response")
	}
	if len(pr.Parcels) == 0 {
		return nil, ErrNoCoverage
	}

	poly, err := polygonFromGeoJSON(pr.Parcels[0].Geometry)
	if err != nil {
		return nil, eris.Wrap(err, "parcel: parse geometry")
	}
	return poly, nil
}

// polygonFromGeoJSON decodes a GeoJSON Polygon or MultiPolygon geometry. For
// a multipolygon the largest part is taken: cadastral records occasionally
// split a parcel across a right-of-way.
func polygonFromGeoJSON(raw json.RawMessage) (*geo.Polygon, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, eris.Wrap(err, "parcel: unmarshal geometry")
	}

	switch geom := g.Geometry().(type) {
	case orb.Polygon:
		return geo.FromOrb(geom)
	case orb.MultiPolygon:
		var best *geo.Polygon
		bestArea := -1.0
		for _, part := range geom {
			poly, perr := geo.FromOrb(part)
			if perr != nil {
				continue
			}
			if a := poly.AreaM2(); a > bestArea {
				bestArea = a
				best = poly
			}
		}
		if best == nil {
			return nil, eris.New("parcel: multipolygon has no valid part")
		}
		return best, nil
	default:
		return nil, eris.Errorf("parcel: unsupported geometry type %s", g.Type)
	}
}
