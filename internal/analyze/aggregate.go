package analyze

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/pavescan/internal/detect"
	"github.com/sells-group/pavescan/internal/geo"
)

// AggregatorOptions controls per-property aggregation.
type AggregatorOptions struct {
	// MinConditionAreaM2 is the paved area a tile must carry before its
	// condition score counts toward the property mean. Tiles that are all
	// roof or lawn say nothing about pavement health.
	MinConditionAreaM2 float64

	// DefaultConditionScore is reported when no tile qualifies for
	// condition scoring. 100 reads as "no pavement found to degrade".
	DefaultConditionScore float64
}

// DefaultAggregatorOptions returns the standard aggregation thresholds.
func DefaultAggregatorOptions() AggregatorOptions {
	return AggregatorOptions{
		MinConditionAreaM2:    50,
		DefaultConditionScore: 100,
	}
}

// Aggregator folds per-tile results into a property-level summary.
type Aggregator struct {
	opts AggregatorOptions
	lead *LeadConfig
	log  *zap.Logger
}

// NewAggregator creates an Aggregator. A nil lead config falls back to the
// default tier table.
func NewAggregator(opts AggregatorOptions, lead *LeadConfig) *Aggregator {
	if lead == nil {
		lead = DefaultLeadConfig()
	}
	return &Aggregator{
		opts: opts,
		lead: lead,
		log:  zap.L().With(zap.String("component", "analyze.aggregator")),
	}
}

// Aggregate merges tile results into one PropertyAnalysisResult. Surface
// areas are measured on the geometric union per surface type, so a surface
// that straddles a tile seam is counted once. Failed tiles are excluded;
// they reduce TilesUsed but never abort the property.
func (a *Aggregator) Aggregate(tiles []TileResult, tilesTotal int) (*PropertyAnalysisResult, error) {
	byType := make(map[detect.SurfaceType][]*geo.Polygon)
	countByType := make(map[detect.SurfaceType]int)

	used := 0
	conditionSum := 0.0
	conditionTiles := 0
	crackCount := 0
	potholeCount := 0
	var hotspots []detect.Hotspot

	for _, tr := range tiles {
		if tr.Failed != nil {
			continue
		}
		used++

		tilePavedM2 := 0.0
		for _, s := range tr.Surfaces {
			for _, p := range s.Polygons {
				if p != nil {
					byType[s.SurfaceType] = append(byType[s.SurfaceType], p)
				}
			}
			countByType[s.SurfaceType]++
			if s.SurfaceType.Paved() {
				tilePavedM2 += s.AreaM2
			}
		}

		if tr.Condition != nil {
			// Damage counts and hotspots come from every completed tile;
			// only the condition mean is gated on paved area.
			crackCount += tr.Condition.CrackCount
			potholeCount += tr.Condition.PotholeCount
			for _, h := range tr.Condition.Damage {
				if h.Severity.AtLeastModerate() {
					hotspots = append(hotspots, h)
				}
			}
			if tilePavedM2 >= a.opts.MinConditionAreaM2 {
				conditionSum += tr.Condition.Score
				conditionTiles++
			}
		}
	}

	result := &PropertyAnalysisResult{
		ConditionScore: a.opts.DefaultConditionScore,
		CrackCount:     crackCount,
		PotholeCount:   potholeCount,
		Hotspots:       hotspots,
		TilesUsed:      used,
		TilesTotal:     tilesTotal,
	}
	if conditionTiles > 0 {
		result.ConditionScore = conditionSum / float64(conditionTiles)
	}

	// Deterministic surface ordering regardless of tile completion order.
	types := make([]detect.SurfaceType, 0, len(byType))
	for st := range byType {
		types = append(types, st)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, st := range types {
		merged, err := geo.Union(byType[st])
		if err != nil {
			a.log.Warn("surface union failed, falling back to summed areas",
				zap.String("surface_type", string(st)),
				zap.Error(err),
			)
			merged = nil
		}

		summary := SurfaceSummary{
			SurfaceType: st,
			Detections:  countByType[st],
		}
		if merged != nil && !merged.Empty() {
			summary.AreaM2 = merged.AreaM2()
			if gj, gjErr := merged.GeoJSON(); gjErr == nil {
				summary.Geometry = gj
			}
		} else {
			for _, p := range byType[st] {
				summary.AreaM2 += p.AreaM2()
			}
		}
		summary.AreaSqft = summary.AreaM2 * geo.SqftPerSqm

		result.Surfaces = append(result.Surfaces, summary)
		if st.Paved() {
			result.TotalPavedM2 += summary.AreaM2
		}
	}
	result.TotalPavedSqft = result.TotalPavedM2 * geo.SqftPerSqm
	result.LeadQuality = a.lead.Classify(result.TotalPavedSqft, result.ConditionScore)

	return result, nil
}
