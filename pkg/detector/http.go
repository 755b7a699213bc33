package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/pavescan/internal/detect"
	"github.com/sells-group/pavescan/internal/geo"
	"github.com/sells-group/pavescan/internal/raster"
)

// HTTPOptions configures an inference service client.
type HTTPOptions struct {
	BaseURL string
	APIKey  string

	// Model selects the served model variant, when the service hosts more
	// than one.
	Model string

	// RequestsPerSecond throttles calls to the service. Zero disables
	// throttling.
	RequestsPerSecond float64

	Timeout time.Duration
}

func (o *HTTPOptions) defaults() error {
	if o.BaseURL == "" {
		return eris.New("detector: base URL is required")
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	return nil
}

func newLimiter(rps float64) *rate.Limiter {
	if rps > 0 {
		return rate.NewLimiter(rate.Limit(rps), 1)
	}
	return rate.NewLimiter(rate.Inf, 1)
}

// HTTPDetector calls a remote surface-detection inference service. Quota and
// availability rejections come back as typed outcomes, not errors, so the
// pipeline can branch to a fallback detector.
type HTTPDetector struct {
	opts    HTTPOptions
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewHTTPDetector creates a surface-detection client.
func NewHTTPDetector(opts HTTPOptions) (*HTTPDetector, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}
	return &HTTPDetector{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: newLimiter(opts.RequestsPerSecond),
		log:     zap.L().With(zap.String("component", "detector.http")),
	}, nil
}

func (d *HTTPDetector) Name() string { return "inference-api" }

type detectResponse struct {
	Detections []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		Polygon    []struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"polygon"`
	} `json:"detections"`
	Error string `json:"error,omitempty"`
}

// Detect runs surface detection on an encoded raster.
func (d *HTTPDetector) Detect(ctx context.Context, imageBytes []byte) (detect.Outcome, error) {
	body, status, err := postImage(ctx, d.client, d.limiter, d.opts, "/v1/detect", imageBytes)
	if err != nil {
		return detect.Outcome{}, eris.Wrap(err, "detector: detect")
	}

	switch {
	case status == http.StatusPaymentRequired || status == http.StatusTooManyRequests:
		d.log.Warn("detector quota rejected", zap.Int("status", status))
		return detect.QuotaExceeded(reasonFrom(body, status)), nil
	case status >= 500:
		d.log.Warn("detector unavailable", zap.Int("status", status))
		return detect.Unavailable(reasonFrom(body, status)), nil
	case status != http.StatusOK:
		return detect.Outcome{}, eris.Errorf("detector: service returned status %d", status)
	}

	var dr detectResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return detect.Outcome{}, eris.Wrap(err, "detector: parse response")
	}

	raws := make([]detect.RawDetection, 0, len(dr.Detections))
	for _, det := range dr.Detections {
		raw := detect.RawDetection{Label: det.Label, Confidence: det.Confidence}
		for _, v := range det.Polygon {
			raw.Polygon = append(raw.Polygon, raster.Pixel{X: v.X, Y: v.Y})
		}
		raws = append(raws, raw)
	}
	return detect.Success(raws), nil
}

// HTTPEvaluator calls a remote pavement-condition inference service.
type HTTPEvaluator struct {
	opts    HTTPOptions
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewHTTPEvaluator creates a condition-evaluation client.
func NewHTTPEvaluator(opts HTTPOptions) (*HTTPEvaluator, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}
	return &HTTPEvaluator{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: newLimiter(opts.RequestsPerSecond),
		log:     zap.L().With(zap.String("component", "detector.evaluator")),
	}, nil
}

func (e *HTTPEvaluator) Name() string { return "condition-api" }

type evaluateResponse struct {
	Score        float64 `json:"score"`
	CrackCount   int     `json:"crack_count"`
	PotholeCount int     `json:"pothole_count"`
	Damage       []struct {
		Kind     string  `json:"kind"`
		Severity string  `json:"severity"`
		Lat      float64 `json:"lat"`
		Lng      float64 `json:"lng"`
	} `json:"damage"`
	Error string `json:"error,omitempty"`
}

// Evaluate scores pavement condition in an encoded raster.
func (e *HTTPEvaluator) Evaluate(ctx context.Context, imageBytes []byte) (*detect.ConditionReport, error) {
	body, status, err := postImage(ctx, e.client, e.limiter, e.opts, "/v1/condition", imageBytes)
	if err != nil {
		return nil, eris.Wrap(err, "detector: evaluate")
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("detector: condition service returned status %d", status)
	}

	var er evaluateResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return nil, eris.Wrap(err, "detector: parse condition response")
	}
	if er.Score < 0 || er.Score > 100 {
		return nil, eris.Errorf("detector: condition score %v out of range", er.Score)
	}

	report := &detect.ConditionReport{
		Score:        er.Score,
		CrackCount:   er.CrackCount,
		PotholeCount: er.PotholeCount,
	}
	for _, dmg := range er.Damage {
		report.Damage = append(report.Damage, detect.Hotspot{
			Kind:     detect.DamageKind(dmg.Kind),
			Severity: detect.Severity(dmg.Severity),
			Location: geo.Point{Lat: dmg.Lat, Lng: dmg.Lng},
		})
	}
	return report, nil
}

func postImage(ctx context.Context, client *http.Client, limiter *rate.Limiter, opts HTTPOptions, path string, imageBytes []byte) ([]byte, int, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.BaseURL+path, bytes.NewReader(imageBytes))
	if err != nil {
		return nil, 0, eris.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "image/png")
	if opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+opts.APIKey)
	}
	if opts.Model != "" {
		req.Header.Set("X-Model", opts.Model)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, eris.Wrap(err, "read body")
	}
	return body, resp.StatusCode, nil
}

func reasonFrom(body []byte, status int) string {
	var er struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return http.StatusText(status)
}
