// Package analyze runs the property analysis pipeline: it fans imagery
// fetches and detection calls out across the planned tile grid with bounded
// concurrency, then folds the per-tile results into one deterministic
// property-level summary.
package analyze

import (
	"encoding/json"

	"github.com/sells-group/pavescan/internal/detect"
	"github.com/sells-group/pavescan/internal/tilegrid"
)

// SurfaceSummary is the merged footprint of one surface type across all
// tiles. Geometry is the GeoJSON of the geometric union, so tile-seam
// overlap is counted once.
type SurfaceSummary struct {
	SurfaceType detect.SurfaceType `json:"surface_type"`
	Geometry    json.RawMessage    `json:"geometry,omitempty"`
	AreaM2      float64            `json:"area_m2"`
	AreaSqft    float64            `json:"area_sqft"`
	Detections  int                `json:"detections"`
}

// PropertyAnalysisResult is the sole artifact handed to the persistence
// layer: one immutable property-level summary per analysis run.
type PropertyAnalysisResult struct {
	Surfaces       []SurfaceSummary `json:"surfaces"`
	TotalPavedM2   float64          `json:"total_paved_m2"`
	TotalPavedSqft float64          `json:"total_paved_sqft"`

	// ConditionScore is the mean over tiles with enough paved area to
	// score. 100 means "no pavement detected, nothing to score" — an
	// explicit default, not an error.
	ConditionScore float64 `json:"condition_score"`

	CrackCount   int              `json:"crack_count"`
	PotholeCount int              `json:"pothole_count"`
	Hotspots     []detect.Hotspot `json:"hotspots,omitempty"`

	LeadQuality LeadQuality `json:"lead_quality"`

	TilesUsed  int `json:"tiles_used"`
	TilesTotal int `json:"tiles_total"`
}

// TileFailure records why one tile was excluded from aggregation. Nothing
// is swallowed silently: the tile index, provider, and upstream cause all
// travel with the run report.
type TileFailure struct {
	TileIndex int    `json:"tile_index"`
	Provider  string `json:"provider"`
	Stage     string `json:"stage"` // "fetch", "detect", "map"
	Cause     string `json:"cause"`
}

// TileResult is the outcome of analyzing one tile. Failed is non-nil when
// the tile could not be analyzed; such tiles are excluded from aggregation.
// Degraded notes a tile that counted with zero surfaces because every
// registered detector declined on quota or availability; fabricating
// detections is never an option, an empty tile is.
type TileResult struct {
	Tile      tilegrid.Tile            `json:"tile"`
	Surfaces  []detect.DetectedSurface `json:"surfaces,omitempty"`
	Condition *detect.ConditionReport  `json:"condition,omitempty"`
	Degraded  string                   `json:"degraded,omitempty"`
	Failed    *TileFailure             `json:"failed,omitempty"`
}
