// Package boundary resolves and validates the authoritative parcel polygon
// for an analysis request. Geocoded business points are frequently offset
// from true parcel centroids (signage and entrance bias), so an address
// candidate that fails strict containment is still accepted when its
// centroid lies within a bounded distance of the query point.
package boundary

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pavescan/internal/geo"
	"github.com/sells-group/pavescan/pkg/parcel"
)

var (
	// ErrNotConfigured means no parcel lookup provider is wired. Fatal;
	// callers must not retry or fall back.
	ErrNotConfigured = eris.New("boundary: no parcel provider configured")

	// ErrNotFound means no candidate polygon validated for the request.
	// Recoverable: callers fall back to an estimated square boundary.
	ErrNotFound = eris.New("boundary: no validated parcel found")
)

// Options controls boundary validation.
type Options struct {
	// AddressToleranceM accepts an address-matched parcel whose centroid is
	// within this many meters of the query point. The value is a field
	// heuristic, not a surveyed constant, which is why it is configuration.
	AddressToleranceM float64

	// ContainmentEpsilonDeg treats points this close to the polygon
	// boundary as contained.
	ContainmentEpsilonDeg float64
}

// DefaultOptions returns the standard validation tolerances.
func DefaultOptions() Options {
	return Options{
		AddressToleranceM:     150,
		ContainmentEpsilonDeg: 1e-4,
	}
}

// Validated is a resolved parcel boundary. Exact is true when the query
// point itself sits inside the polygon, false when the polygon was accepted
// through the address-centroid tolerance.
type Validated struct {
	Polygon *geo.Polygon `json:"-"`
	Exact   bool         `json:"exact"`
	Source  string       `json:"source"`
}

// Resolver validates candidate parcel polygons against the query point.
type Resolver struct {
	provider parcel.Provider
	opts     Options
	log      *zap.Logger
}

// NewResolver creates a Resolver backed by the given parcel provider.
func NewResolver(provider parcel.Provider, opts Options) *Resolver {
	return &Resolver{
		provider: provider,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "boundary.resolver")),
	}
}

// Resolve finds and validates a parcel polygon for the point, optionally
// using a street address as a secondary lookup. Returns ErrNotConfigured
// when no provider is wired, ErrNotFound when nothing validates.
func (r *Resolver) Resolve(ctx context.Context, point geo.Point, address string) (*Validated, error) {
	if r.provider == nil {
		return nil, ErrNotConfigured
	}

	// Point lookup first: containment of the query point is the strongest
	// signal that the polygon is the right parcel.
	poly, err := r.provider.LookupByPoint(ctx, point)
	switch {
	case err == nil && poly != nil:
		if poly.Contains(point, r.opts.ContainmentEpsilonDeg) {
			return &Validated{Polygon: poly, Exact: true, Source: r.provider.Name()}, nil
		}
		r.log.Debug("point-lookup parcel does not contain query point",
			zap.Float64("lat", point.Lat),
			zap.Float64("lng", point.Lng),
		)
	case err != nil && !eris.Is(err, parcel.ErrNoCoverage):
		return nil, eris.Wrap(err, "boundary: point lookup")
	}

	if address != "" {
		candidate, addrErr := r.provider.LookupByAddress(ctx, address)
		switch {
		case addrErr == nil && candidate != nil:
			if v := r.validateAddressCandidate(candidate, point); v != nil {
				return v, nil
			}
		case addrErr != nil && !eris.Is(addrErr, parcel.ErrNoCoverage):
			return nil, eris.Wrap(addrErr, "boundary: address lookup")
		}
	}

	return nil, ErrNotFound
}

// validateAddressCandidate accepts an address-matched polygon either by
// containment or by centroid distance within the configured tolerance.
func (r *Resolver) validateAddressCandidate(candidate *geo.Polygon, point geo.Point) *Validated {
	if candidate.Contains(point, r.opts.ContainmentEpsilonDeg) {
		return &Validated{Polygon: candidate, Exact: true, Source: r.provider.Name()}
	}

	dist := geo.Haversine(point, candidate.Centroid())
	if dist <= r.opts.AddressToleranceM {
		r.log.Debug("accepted address parcel by centroid tolerance",
			zap.Float64("distance_m", dist),
			zap.Float64("tolerance_m", r.opts.AddressToleranceM),
		)
		return &Validated{Polygon: candidate, Exact: false, Source: r.provider.Name()}
	}

	r.log.Debug("rejected address parcel: centroid beyond tolerance",
		zap.Float64("distance_m", dist),
		zap.Float64("tolerance_m", r.opts.AddressToleranceM),
	)
	return nil
}
