package imagery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/pavescan/internal/resilience"
)

// StaticMapOptions configures the static-map imagery client.
type StaticMapOptions struct {
	BaseURL string
	APIKey  string

	// MapType selects the imagery layer. Defaults to satellite.
	MapType string

	// RequestsPerSecond throttles calls to the provider. Zero disables
	// throttling.
	RequestsPerSecond float64

	Timeout time.Duration
}

// StaticMapClient fetches aerial tiles from a static-map HTTP endpoint.
type StaticMapClient struct {
	opts    StaticMapOptions
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewStaticMap creates a static-map imagery client.
func NewStaticMap(opts StaticMapOptions) (*StaticMapClient, error) {
	if opts.BaseURL == "" {
		return nil, eris.New("imagery: base URL is required")
	}
	if opts.MapType == "" {
		opts.MapType = "satellite"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &StaticMapClient{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: limiter,
		log:     zap.L().With(zap.String("component", "imagery.staticmap")),
	}, nil
}

func (c *StaticMapClient) Name() string { return "static-map" }

// Fetch downloads one encoded tile centered on the point.
func (c *StaticMapClient) Fetch(ctx context.Context, centerLat, centerLng float64, zoom, sizePx int) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "imagery: rate limit")
	}

	params := url.Values{
		"center":  {fmt.Sprintf("%.8f,%.8f", centerLat, centerLng)},
		"zoom":    {strconv.Itoa(zoom)},
		"size":    {fmt.Sprintf("%dx%d", sizePx, sizePx)},
		"maptype": {c.opts.MapType},
	}
	if c.opts.APIKey != "" {
		params.Set("key", c.opts.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "imagery: build request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "imagery: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("imagery: provider returned status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("imagery: provider returned status %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, eris.Errorf("imagery: unexpected content type %s", ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "imagery: read body")
	}
	if len(data) == 0 {
		return nil, eris.New("imagery: empty response body")
	}

	c.log.Debug("fetched tile",
		zap.Float64("lat", centerLat),
		zap.Float64("lng", centerLng),
		zap.Int("zoom", zoom),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}
