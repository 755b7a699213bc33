// Package raster maps between pixel space and geographic space for a single
// aerial image, and prepares imagery for detection by masking everything
// outside a parcel boundary. The pixel/geo mapping is the equirectangular
// approximation: latitude and longitude scale linearly with y and x. That is
// deliberate and documented; at parcel scale the error is negligible.
package raster

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pavescan/internal/geo"
)

// Image is one geo-referenced raster: encoded bytes plus pixel dimensions
// and the geographic bounds the pixels cover. Axis convention is fixed: the
// top pixel row sits at MaxLat, the left column at MinLng.
type Image struct {
	Data   []byte     `json:"-"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Bounds geo.Bounds `json:"bounds"`
}

// NewImage wraps encoded raster bytes, decoding the header to validate the
// dimensions against the declared ones.
func NewImage(data []byte, bounds geo.Bounds) (*Image, error) {
	if !bounds.Valid() {
		return nil, eris.New("raster: invalid bounds")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "raster: decode image header")
	}
	return &Image{
		Data:   data,
		Width:  cfg.Width,
		Height: cfg.Height,
		Bounds: bounds,
	}, nil
}

// Decode decodes the raster bytes into an image.
func (im *Image) Decode() (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(im.Data))
	if err != nil {
		return nil, eris.Wrap(err, "raster: decode image")
	}
	return img, nil
}

// Transform returns the pixel/geo transform for this raster.
func (im *Image) Transform() (*Transform, error) {
	return NewTransform(im.Bounds, im.Width, im.Height)
}

// EncodePNG encodes a decoded image back to PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, eris.Wrap(err, "raster: encode png")
	}
	return buf.Bytes(), nil
}
