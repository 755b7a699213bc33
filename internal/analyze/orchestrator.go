package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pavescan/internal/boundary"
	"github.com/sells-group/pavescan/internal/detect"
	"github.com/sells-group/pavescan/internal/geo"
	"github.com/sells-group/pavescan/internal/jobstore"
	"github.com/sells-group/pavescan/internal/raster"
	"github.com/sells-group/pavescan/internal/resilience"
	"github.com/sells-group/pavescan/internal/tilegrid"
	"github.com/sells-group/pavescan/pkg/detector"
	"github.com/sells-group/pavescan/pkg/imagery"
)

// ErrDetectionUnavailable means every tile failed outright (fetch or
// transport errors): nothing was analyzed, so there is no partial result
// worth reporting. Detectors declining on quota or availability do not
// raise it; those tiles count with zero surfaces.
var ErrDetectionUnavailable = eris.New("analyze: detection unavailable for all tiles")

// Options controls orchestration.
type Options struct {
	// Concurrency bounds how many tiles are in flight at once.
	Concurrency int

	// TileTimeout bounds one tile's imagery fetch.
	TileTimeout time.Duration

	// DetectTimeout bounds one tile's detection and condition calls.
	// Inference back-ends run much slower than tile fetches, so they get
	// their own budget.
	DetectTimeout time.Duration

	// MaskParcel masks each tile to the resolved parcel boundary before
	// detection, so neighboring lots do not pollute the result.
	MaskParcel bool

	Grid   tilegrid.Options
	Mask   raster.MaskOptions
	Mapper detect.MapperOptions
}

// DefaultOptions returns the standard orchestration parameters.
func DefaultOptions() Options {
	return Options{
		Concurrency:   4,
		TileTimeout:   30 * time.Second,
		DetectTimeout: 90 * time.Second,
		MaskParcel:    true,
		Grid:        tilegrid.DefaultOptions(),
		Mask:        raster.DefaultMaskOptions(),
		Mapper:      detect.DefaultMapperOptions(),
	}
}

// Request is one property analysis request.
type Request struct {
	Point   geo.Point `json:"point"`
	Address string    `json:"address,omitempty"`

	// RadiusM sizes the estimated boundary when no parcel resolves. Zero
	// falls back to the grid planner's default radius.
	RadiusM float64 `json:"radius_m,omitempty"`

	// JobID, when set, ties the run to a persisted job record.
	JobID string `json:"job_id,omitempty"`
}

// Report is the full output of one run: the property result plus the
// per-tile breakdown and the boundary provenance.
type Report struct {
	Result   *PropertyAnalysisResult `json:"result"`
	Boundary *boundary.Validated     `json:"boundary,omitempty"`
	Grid     *tilegrid.Grid          `json:"grid"`
	Tiles    []TileResult            `json:"tiles"`
	Elapsed  time.Duration           `json:"elapsed"`
}

// Orchestrator runs the full pipeline: boundary, grid, bounded tile fan-out,
// aggregation, and optional job persistence.
type Orchestrator struct {
	resolver   *boundary.Resolver
	imagery    imagery.Provider
	detector   detector.SurfaceDetector
	fallback   detector.SurfaceDetector
	evaluator  detector.ConditionEvaluator
	mapper     *detect.GeoMapper
	aggregator *Aggregator
	store      jobstore.Store
	opts       Options
	retry      resilience.RetryConfig
	log        *zap.Logger
}

// NewOrchestrator wires the pipeline. The imagery provider and primary
// detector are required; resolver, fallback detector, evaluator, and store
// are optional and disable their feature when nil.
func NewOrchestrator(
	resolver *boundary.Resolver,
	img imagery.Provider,
	det detector.SurfaceDetector,
	fallback detector.SurfaceDetector,
	eval detector.ConditionEvaluator,
	agg *Aggregator,
	store jobstore.Store,
	opts Options,
) (*Orchestrator, error) {
	if img == nil {
		return nil, eris.New("analyze: imagery provider is required")
	}
	if det == nil {
		return nil, eris.New("analyze: surface detector is required")
	}
	if agg == nil {
		agg = NewAggregator(DefaultAggregatorOptions(), nil)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.TileTimeout <= 0 {
		opts.TileTimeout = 30 * time.Second
	}
	if opts.DetectTimeout <= 0 {
		opts.DetectTimeout = 90 * time.Second
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 2
	retry.InitialBackoff = 250 * time.Millisecond

	return &Orchestrator{
		resolver:   resolver,
		imagery:    img,
		detector:   det,
		fallback:   fallback,
		evaluator:  eval,
		mapper:     detect.NewGeoMapper(opts.Mapper),
		aggregator: agg,
		store:      store,
		opts:       opts,
		retry:      retry,
		log:        zap.L().With(zap.String("component", "analyze.orchestrator")),
	}, nil
}

// Analyze runs the full pipeline for one request. Individual tile failures
// never abort the property; the run fails only when no tile at all could be
// analyzed.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	o.markRunning(ctx, req.JobID)

	report, err := o.analyze(ctx, req)
	if err != nil {
		o.markFailed(ctx, req.JobID, err)
		return nil, err
	}
	report.Elapsed = time.Since(start)
	o.markCompleted(ctx, req.JobID, report.Result)

	o.log.Info("analysis complete",
		zap.Float64("lat", req.Point.Lat),
		zap.Float64("lng", req.Point.Lng),
		zap.Int("tiles_used", report.Result.TilesUsed),
		zap.Int("tiles_total", report.Result.TilesTotal),
		zap.Float64("paved_m2", report.Result.TotalPavedM2),
		zap.String("lead_quality", string(report.Result.LeadQuality)),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

func (o *Orchestrator) analyze(ctx context.Context, req Request) (*Report, error) {
	validated, parcelPoly, err := o.resolveBoundary(ctx, req)
	if err != nil {
		return nil, err
	}

	var grid *tilegrid.Grid
	if parcelPoly != nil {
		grid, err = tilegrid.PlanPolygon(parcelPoly, o.opts.Grid)
	} else {
		grid, err = tilegrid.PlanPoint(req.Point, req.RadiusM, o.opts.Grid)
	}
	if err != nil {
		return nil, eris.Wrap(err, "analyze: plan grid")
	}

	results := make([]TileResult, len(grid.Tiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)
	for i, tile := range grid.Tiles {
		g.Go(func() error {
			results[i] = o.analyzeTile(gctx, tile, parcelPoly)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "analyze: tile fan-out")
	}
	if ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "analyze: canceled")
	}

	result, err := o.aggregator.Aggregate(results, len(grid.Tiles))
	if err != nil {
		return nil, eris.Wrap(err, "analyze: aggregate")
	}
	if result.TilesUsed == 0 && len(grid.Tiles) > 0 {
		return nil, ErrDetectionUnavailable
	}

	return &Report{
		Result:   result,
		Boundary: validated,
		Grid:     grid,
		Tiles:    results,
	}, nil
}

// resolveBoundary returns the validated parcel polygon, or nil when the run
// proceeds on an estimated boundary. ErrNotFound degrades; any other
// resolver error is fatal.
func (o *Orchestrator) resolveBoundary(ctx context.Context, req Request) (*boundary.Validated, *geo.Polygon, error) {
	if o.resolver == nil {
		return nil, nil, nil
	}

	v, err := o.resolver.Resolve(ctx, req.Point, req.Address)
	switch {
	case err == nil:
		return v, v.Polygon, nil
	case eris.Is(err, boundary.ErrNotFound):
		o.log.Info("no parcel resolved, using estimated boundary",
			zap.Float64("lat", req.Point.Lat),
			zap.Float64("lng", req.Point.Lng),
		)
		return nil, nil, nil
	default:
		return nil, nil, eris.Wrap(err, "analyze: resolve boundary")
	}
}

// analyzeTile fetches, masks, and detects one tile. Failures are captured in
// the TileResult rather than returned, keeping tiles isolated.
func (o *Orchestrator) analyzeTile(ctx context.Context, tile tilegrid.Tile, parcelPoly *geo.Polygon) TileResult {
	tr := TileResult{Tile: tile}

	fctx, fcancel := context.WithTimeout(ctx, o.opts.TileTimeout)
	imgBytes, err := resilience.DoVal(fctx, o.retry, func(ctx context.Context) ([]byte, error) {
		return o.imagery.Fetch(ctx, tile.CenterLat, tile.CenterLng, tile.Zoom, tile.PixelSize)
	})
	fcancel()
	if err != nil {
		tr.Failed = o.tileFailure(tile, o.imagery.Name(), "fetch", err)
		return tr
	}

	img, err := raster.NewImage(imgBytes, tile.Bounds)
	if err != nil {
		tr.Failed = o.tileFailure(tile, o.imagery.Name(), "fetch", err)
		return tr
	}
	transform, err := img.Transform()
	if err != nil {
		tr.Failed = o.tileFailure(tile, o.imagery.Name(), "map", err)
		return tr
	}

	detectBytes := imgBytes
	detectTransform := transform
	if o.opts.MaskParcel && parcelPoly != nil {
		maskedBytes, maskedTransform, maskErr := o.maskTile(img, transform, parcelPoly)
		if maskErr != nil {
			// Masking is an enhancement: degrade to the unmasked raster.
			o.log.Warn("tile masking failed, detecting on unmasked raster",
				zap.Int("tile", tile.Index),
				zap.Error(maskErr),
			)
		} else {
			detectBytes = maskedBytes
			detectTransform = maskedTransform
		}
	}

	dctx, dcancel := context.WithTimeout(ctx, o.opts.DetectTimeout)
	defer dcancel()

	outcome, degraded, err := o.detectSurfaces(dctx, detectBytes)
	if err != nil {
		tr.Failed = o.tileFailure(tile, o.detector.Name(), "detect", err)
		return tr
	}
	if degraded != "" {
		// Every registered detector declined: the tile counts with zero
		// surfaces rather than failing.
		tr.Degraded = degraded
		return tr
	}
	tr.Surfaces = o.mapper.Map(outcome.Detections, detectTransform, parcelPoly)

	if o.evaluator != nil {
		condition, evalErr := o.evaluator.Evaluate(dctx, detectBytes)
		if evalErr != nil {
			// Condition scoring is optional per tile; the surfaces stand.
			o.log.Warn("condition evaluation failed",
				zap.Int("tile", tile.Index),
				zap.String("evaluator", o.evaluator.Name()),
				zap.Error(evalErr),
			)
		} else {
			tr.Condition = condition
		}
	}

	return tr
}

// detectSurfaces calls the primary detector and falls back to the secondary
// when the primary errors or declines. When no working fallback remains, a
// typed decline degrades to an empty success with a non-empty note, so the
// tile counts with zero surfaces. The tile fails only when every registered
// detector returned a transport error.
func (o *Orchestrator) detectSurfaces(ctx context.Context, imgBytes []byte) (detect.Outcome, string, error) {
	outcome, err := o.detector.Detect(ctx, imgBytes)
	if err == nil && outcome.Status == detect.OutcomeSuccess {
		return outcome, "", nil
	}
	primaryNote := declineNote(o.detector.Name(), outcome, err)
	o.log.Warn("primary detector declined",
		zap.String("detector", o.detector.Name()),
		zap.String("detail", primaryNote),
	)

	if o.fallback == nil {
		if err != nil {
			return detect.Outcome{}, "", eris.Wrapf(err, "analyze: detector %s", o.detector.Name())
		}
		return detect.Success(nil), primaryNote, nil
	}

	fbOutcome, fbErr := o.fallback.Detect(ctx, imgBytes)
	if fbErr == nil && fbOutcome.Status == detect.OutcomeSuccess {
		return fbOutcome, "", nil
	}
	fbNote := declineNote(o.fallback.Name(), fbOutcome, fbErr)
	o.log.Warn("fallback detector declined",
		zap.String("detector", o.fallback.Name()),
		zap.String("detail", fbNote),
	)
	if err != nil && fbErr != nil {
		return detect.Outcome{}, "", eris.Wrapf(fbErr, "analyze: fallback detector %s after %s", o.fallback.Name(), primaryNote)
	}
	return detect.Success(nil), primaryNote + "; " + fbNote, nil
}

func declineNote(name string, outcome detect.Outcome, err error) string {
	if err != nil {
		return fmt.Sprintf("%s error: %v", name, err)
	}
	return fmt.Sprintf("%s %s: %s", name, outcome.Status, outcome.Reason)
}

// maskTile masks the raster to the parcel and re-derives the pixel/geo
// transform for the cropped output.
func (o *Orchestrator) maskTile(img *raster.Image, transform *raster.Transform, parcelPoly *geo.Polygon) ([]byte, *raster.Transform, error) {
	decoded, err := img.Decode()
	if err != nil {
		return nil, nil, err
	}

	masked, err := raster.Mask(decoded, transform.PolygonToPixels(parcelPoly), o.opts.Mask)
	if err != nil {
		return nil, nil, err
	}

	out, err := raster.EncodePNG(masked.Image)
	if err != nil {
		return nil, nil, err
	}

	if !masked.WasCropped {
		return out, transform, nil
	}

	// The crop shifts pixel space: rebuild the transform from the crop
	// window's geographic corners.
	w := masked.Image.Bounds().Dx()
	h := masked.Image.Bounds().Dy()
	topLeft := transform.PixelToGeo(raster.Pixel{
		X: float64(masked.CropOffsetX),
		Y: float64(masked.CropOffsetY),
	})
	bottomRight := transform.PixelToGeo(raster.Pixel{
		X: float64(masked.CropOffsetX + w),
		Y: float64(masked.CropOffsetY + h),
	})
	cropped, err := raster.NewTransform(geo.Bounds{
		MinLat: bottomRight.Lat,
		MaxLat: topLeft.Lat,
		MinLng: topLeft.Lng,
		MaxLng: bottomRight.Lng,
	}, w, h)
	if err != nil {
		return nil, nil, err
	}
	return out, cropped, nil
}

func (o *Orchestrator) tileFailure(tile tilegrid.Tile, provider, stage string, err error) *TileFailure {
	o.log.Warn("tile failed",
		zap.Int("tile", tile.Index),
		zap.String("provider", provider),
		zap.String("stage", stage),
		zap.Error(err),
	)
	return &TileFailure{
		TileIndex: tile.Index,
		Provider:  provider,
		Stage:     stage,
		Cause:     err.Error(),
	}
}

func (o *Orchestrator) markRunning(ctx context.Context, jobID string) {
	if o.store == nil || jobID == "" {
		return
	}
	if err := o.store.UpdateStatus(ctx, jobID, jobstore.StatusRunning); err != nil {
		o.log.Warn("job status update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (o *Orchestrator) markCompleted(ctx context.Context, jobID string, result *PropertyAnalysisResult) {
	if o.store == nil || jobID == "" {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		o.log.Warn("job result marshal failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if err := o.store.CompleteJob(ctx, jobID, payload); err != nil {
		o.log.Warn("job completion update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (o *Orchestrator) markFailed(ctx context.Context, jobID string, cause error) {
	if o.store == nil || jobID == "" {
		return
	}
	if err := o.store.FailJob(ctx, jobID, cause.Error()); err != nil {
		o.log.Warn("job failure update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
