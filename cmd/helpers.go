package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pavescan/internal/analyze"
	"github.com/sells-group/pavescan/internal/boundary"
	"github.com/sells-group/pavescan/internal/jobstore"
	"github.com/sells-group/pavescan/pkg/detector"
	"github.com/sells-group/pavescan/pkg/imagery"
	"github.com/sells-group/pavescan/pkg/parcel"
)

// initStore opens the configured job store.
func initStore() (jobstore.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return jobstore.NewMemory(), nil
	case "sqlite", "":
		return jobstore.NewSQLite(cfg.Store.Path)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initParcelProvider builds the parcel lookup provider, or nil when no
// cadastral source is configured.
func initParcelProvider() (parcel.Provider, error) {
	if cfg.Parcel.ShapefilePath != "" {
		return parcel.NewShapefile(parcel.ShapefileOptions{
			Path:         cfg.Parcel.ShapefilePath,
			AddressField: cfg.Parcel.AddressField,
		})
	}
	if cfg.Parcel.BaseURL != "" {
		return parcel.NewHTTP(parcel.HTTPOptions{
			BaseURL:           cfg.Parcel.BaseURL,
			APIKey:            cfg.Parcel.Key,
			RequestsPerSecond: cfg.Parcel.RequestsPerSecond,
		})
	}
	return nil, nil
}

// buildOrchestrator wires the full analysis pipeline from configuration.
func buildOrchestrator(store jobstore.Store) (*analyze.Orchestrator, error) {
	if cfg.Imagery.BaseURL == "" {
		return nil, eris.New("imagery.base_url is required")
	}
	if cfg.Detector.BaseURL == "" {
		return nil, eris.New("detector.base_url is required")
	}

	img, err := imagery.NewStaticMap(imagery.StaticMapOptions{
		BaseURL:           cfg.Imagery.BaseURL,
		APIKey:            cfg.Imagery.Key,
		MapType:           cfg.Imagery.MapType,
		RequestsPerSecond: cfg.Imagery.RequestsPerSecond,
	})
	if err != nil {
		return nil, err
	}

	det, err := detector.NewHTTPDetector(detector.HTTPOptions{
		BaseURL: cfg.Detector.BaseURL,
		APIKey:  cfg.Detector.Key,
		Model:   cfg.Detector.Model,
	})
	if err != nil {
		return nil, err
	}

	var fallback detector.SurfaceDetector
	if cfg.Detector.FallbackBaseURL != "" {
		fb, fbErr := detector.NewHTTPDetector(detector.HTTPOptions{
			BaseURL: cfg.Detector.FallbackBaseURL,
			APIKey:  cfg.Detector.FallbackKey,
		})
		if fbErr != nil {
			return nil, fbErr
		}
		fallback = fb
	}

	var evaluator detector.ConditionEvaluator
	if cfg.Detector.ConditionBaseURL != "" {
		ev, evErr := detector.NewHTTPEvaluator(detector.HTTPOptions{
			BaseURL: cfg.Detector.ConditionBaseURL,
			APIKey:  cfg.Detector.ConditionKey,
		})
		if evErr != nil {
			return nil, evErr
		}
		evaluator = ev
	}

	var resolver *boundary.Resolver
	parcelProvider, err := initParcelProvider()
	if err != nil {
		return nil, err
	}
	if parcelProvider != nil {
		bOpts := boundary.DefaultOptions()
		if cfg.Boundary.AddressToleranceM > 0 {
			bOpts.AddressToleranceM = cfg.Boundary.AddressToleranceM
		}
		resolver = boundary.NewResolver(parcelProvider, bOpts)
	} else {
		zap.L().Warn("no parcel provider configured, analyses will use estimated boundaries")
	}

	var leadCfg *analyze.LeadConfig
	if cfg.Analyze.LeadConfigPath != "" {
		leadCfg, err = analyze.LoadLeadConfig(cfg.Analyze.LeadConfigPath)
		if err != nil {
			return nil, err
		}
	}

	opts := analyze.DefaultOptions()
	opts.Concurrency = cfg.Analyze.Concurrency
	if cfg.Analyze.TileTimeoutSecs > 0 {
		opts.TileTimeout = time.Duration(cfg.Analyze.TileTimeoutSecs) * time.Second
	}
	if cfg.Analyze.DetectTimeoutSecs > 0 {
		opts.DetectTimeout = time.Duration(cfg.Analyze.DetectTimeoutSecs) * time.Second
	}
	opts.MaskParcel = cfg.Mask.Enabled
	opts.Mask.FeatherPx = cfg.Mask.FeatherPx
	applyGridConfig(&opts)

	agg := analyze.NewAggregator(analyze.DefaultAggregatorOptions(), leadCfg)
	return analyze.NewOrchestrator(resolver, img, det, fallback, evaluator, agg, store, opts)
}

func applyGridConfig(opts *analyze.Options) {
	if cfg.Grid.ZoomMin > 0 {
		opts.Grid.ZoomMin = cfg.Grid.ZoomMin
	}
	if cfg.Grid.ZoomMax > 0 {
		opts.Grid.ZoomMax = cfg.Grid.ZoomMax
	}
	if cfg.Grid.PixelSize > 0 {
		opts.Grid.PixelSize = cfg.Grid.PixelSize
	}
	if cfg.Grid.MaxTiles > 0 {
		opts.Grid.MaxTiles = cfg.Grid.MaxTiles
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
