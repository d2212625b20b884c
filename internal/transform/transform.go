// Package transform computes the centered crop for a zoom factor and applies it to frames.
package transform

import (
	"image"
	"math"

	"github.com/ZacxDev/video-zoom/pkg/types"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// CropRegion is the part of a frame kept before rescaling back to full size
type CropRegion struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Rect returns the region as an image rectangle anchored at the frame origin
func (r CropRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// IsFull reports whether the region covers the whole frame.
func (r CropRegion) IsFull(width, height int) bool {
	return r.X == 0 && r.Y == 0 && r.Width == width && r.Height == height
}

// ValidateZoom rejects zoom factors that would need content outside the frame.
// 1.0 is accepted and leaves frames untouched.
func ValidateZoom(zoom float64) error {
	if math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return errors.Wrapf(types.ErrInvalidZoomFactor, "zoom factor must be finite, got %v", zoom)
	}
	if zoom < 1 {
		return errors.Wrapf(types.ErrInvalidZoomFactor, "zoom factor must be at least 1, got %v", zoom)
	}
	return nil
}

// ComputeCropRegion derives the centered crop for a width x height frame.
//
//	crop_w = floor(width / zoom), x = floor((width - crop_w) / 2)
//
// and likewise for the height. The result is clamped so it never leaves the frame
// and never collapses below one pixel.
func ComputeCropRegion(width, height int, zoom float64) CropRegion {
	cropW := clamp(int(math.Floor(float64(width)/zoom)), 1, width)
	cropH := clamp(int(math.Floor(float64(height)/zoom)), 1, height)

	return CropRegion{
		X:      (width - cropW) / 2,
		Y:      (height - cropH) / 2,
		Width:  cropW,
		Height: cropH,
	}
}

// Apply crops frame to region and resamples the crop to width x height with
// linear interpolation. The region is intersected with the frame bounds first.
func Apply(frame image.Image, region CropRegion, width, height int) *image.NRGBA {
	b := frame.Bounds()
	rect := region.Rect().Add(b.Min)

	cropped := imaging.Crop(frame, rect)
	if cropped.Bounds().Dx() == width && cropped.Bounds().Dy() == height {
		return cropped
	}
	return imaging.Resize(cropped, width, height, imaging.Linear)
}

// Transformer applies one fixed region to every frame of a video
type Transformer struct {
	region CropRegion
	width  int
	height int
}

// NewTransformer returns a transformer for a video of the given size and zoom.
func NewTransformer(width, height int, zoom float64) (*Transformer, error) {
	if err := ValidateZoom(zoom); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid frame dimensions %dx%d", width, height)
	}
	return &Transformer{
		region: ComputeCropRegion(width, height, zoom),
		width:  width,
		height: height,
	}, nil
}

func (t *Transformer) Region() CropRegion {
	return t.region
}

// Transform returns a new frame with the original dimensions.
func (t *Transformer) Transform(frame image.Image) *image.NRGBA {
	return Apply(frame, t.region, t.width, t.height)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
