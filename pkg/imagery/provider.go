// Package imagery fetches aerial raster tiles from a static-map imagery
// service.
package imagery

import "context"

// Provider fetches one encoded aerial image centered on a point at a given
// zoom. Implementations own their HTTP details; callers own timeouts via ctx.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, centerLat, centerLng float64, zoom, sizePx int) ([]byte, error)
}
