// Package detect defines the detection-side types shared between the
// surface-detector boundary and the analysis pipeline, and converts raw
// pixel-space detections into geo-referenced surfaces.
package detect

import (
	"encoding/json"

	"github.com/sells-group/pavescan/internal/geo"
	"github.com/sells-group/pavescan/internal/raster"
)

// SurfaceType classifies a detected surface.
type SurfaceType string

const (
	SurfaceAsphalt  SurfaceType = "asphalt"
	SurfaceConcrete SurfaceType = "concrete"
	SurfaceBuilding SurfaceType = "building"
	SurfaceOther    SurfaceType = "other"
)

// ParseSurfaceType normalizes a detector label into a SurfaceType,
// defaulting unknown labels to SurfaceOther.
func ParseSurfaceType(s string) SurfaceType {
	switch SurfaceType(s) {
	case SurfaceAsphalt, SurfaceConcrete, SurfaceBuilding:
		return SurfaceType(s)
	default:
		return SurfaceOther
	}
}

// Paved reports whether the surface type counts toward paved area.
func (s SurfaceType) Paved() bool {
	return s == SurfaceAsphalt || s == SurfaceConcrete
}

// RawDetection is one detector output in pixel space: a polygon outline (or
// box corners) with a confidence score.
type RawDetection struct {
	Label      string         `json:"label"`
	Confidence float64        `json:"confidence"`
	Polygon    []raster.Pixel `json:"polygon"`
}

// DetectedSurface is a geo-referenced, area-quantified detection. Derived
// and transient: it lives only for the duration of one analysis run.
// Clipping against a concave parcel can split the footprint, so the
// geometry is a set of parts and AreaM2 covers all of them.
type DetectedSurface struct {
	SurfaceType SurfaceType     `json:"surface_type"`
	Confidence  float64         `json:"confidence"`
	Polygons    []*geo.Polygon  `json:"-"`
	Geometry    json.RawMessage `json:"geometry,omitempty"` // GeoJSON of the clipped footprint
	AreaM2      float64         `json:"area_m2"`
	AreaSqft    float64         `json:"area_sqft"`
}

// Severity grades a damage finding.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// AtLeastModerate reports whether the severity qualifies as a hotspot.
func (s Severity) AtLeastModerate() bool {
	return s == SeverityModerate || s == SeveritySevere
}

// DamageKind is the category of a damage finding.
type DamageKind string

const (
	DamageCrack   DamageKind = "crack"
	DamagePothole DamageKind = "pothole"
)

// Hotspot is a localized damage detection with its geographic location.
type Hotspot struct {
	Kind     DamageKind `json:"kind"`
	Severity Severity   `json:"severity"`
	Location geo.Point  `json:"location"`
}

// ConditionReport is the pavement-condition evaluator's output for one tile.
type ConditionReport struct {
	Score        float64   `json:"score"` // 0 (failed) .. 100 (new)
	CrackCount   int       `json:"crack_count"`
	PotholeCount int       `json:"pothole_count"`
	Damage       []Hotspot `json:"damage,omitempty"`
}

// OutcomeStatus tags a detector call's result variant.
type OutcomeStatus string

const (
	OutcomeSuccess       OutcomeStatus = "success"
	OutcomeUnavailable   OutcomeStatus = "unavailable"
	OutcomeQuotaExceeded OutcomeStatus = "quota_exceeded"
)

// Outcome is the typed result of a surface-detector call. Branching on the
// Status tag replaces string-matching on provider error messages.
type Outcome struct {
	Status     OutcomeStatus  `json:"status"`
	Detections []RawDetection `json:"detections,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// Success builds a successful outcome.
func Success(detections []RawDetection) Outcome {
	return Outcome{Status: OutcomeSuccess, Detections: detections}
}

// Unavailable builds an outcome for a detector that cannot serve the call.
func Unavailable(reason string) Outcome {
	return Outcome{Status: OutcomeUnavailable, Reason: reason}
}

// QuotaExceeded builds an outcome for a quota/billing rejection.
func QuotaExceeded(reason string) Outcome {
	return Outcome{Status: OutcomeQuotaExceeded, Reason: reason}
}
