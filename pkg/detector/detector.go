// Package detector defines the computer-vision collaborator boundary: the
// surface detector that finds paved/built surfaces in a raster, and the
// condition evaluator that scores pavement health. Neither model runs in
// this repo; both are remote inference services.
package detector

import (
	"context"

	"github.com/sells-group/pavescan/internal/detect"
)

// SurfaceDetector runs surface detection on an encoded raster. The returned
// Outcome is a tagged variant; quota and availability failures come back as
// typed statuses, never as error-string conventions.
type SurfaceDetector interface {
	Name() string
	Detect(ctx context.Context, imageBytes []byte) (detect.Outcome, error)
}

// ConditionEvaluator scores pavement condition (0 failed .. 100 new) and
// localizes damage in an encoded raster.
type ConditionEvaluator interface {
	Name() string
	Evaluate(ctx context.Context, imageBytes []byte) (*detect.ConditionReport, error)
}
