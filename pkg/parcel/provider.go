// Package parcel provides cadastral parcel lookup: resolving the surveyed
// boundary polygon for a point or street address from a third-party parcel
// data source.
package parcel

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pavescan/internal/geo"
)

// ErrNoCoverage is returned when the provider has no parcel data for the
// requested location. Recoverable: callers fall back to an estimated
// boundary.
var ErrNoCoverage = eris.New("parcel: no coverage for location")

// Provider looks up parcel boundaries from a cadastral data source.
type Provider interface {
	Name() string

	// LookupByPoint returns the parcel polygon containing (or nearest to)
	// the point, or ErrNoCoverage.
	LookupByPoint(ctx context.Context, pt geo.Point) (*geo.Polygon, error)

	// LookupByAddress returns the parcel polygon matching the street
	// address, or ErrNoCoverage.
	LookupByAddress(ctx context.Context, address string) (*geo.Polygon, error)
}
