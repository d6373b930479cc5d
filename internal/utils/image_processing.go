package utils

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Path      string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("image processing error in %s of %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// DimensionMismatchError reports a camera image whose size differs from the
// first camera's.
type DimensionMismatchError struct {
	Path          string
	Width, Height int
	WantW, WantH  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("image %s is %dx%d, want %dx%d", e.Path, e.Width, e.Height, e.WantW, e.WantH)
}

// ToNRGBA returns img as a zero-origin *image.NRGBA. Images that already
// have that form are returned unchanged.
func ToNRGBA(img image.Image) (*image.NRGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "convert", Err: errors.New("input image is nil")}
	}
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n, nil
	}
	return imaging.Clone(img), nil
}

// MaskBounds returns the smallest rectangle of r whose cells are set in
// mask, stored row-major over r, or an empty rectangle if none is set.
func MaskBounds(r image.Rectangle, mask []bool) image.Rectangle {
	w := r.Dx()
	minX, minY, maxX, maxY := w, r.Dy(), -1, -1
	for i, set := range mask {
		if !set {
			continue
		}
		x, y := i%w, i/w
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	if maxX < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1).Add(r.Min)
}

// CropToContent trims img to content. An empty content rectangle, or one
// covering the whole image, returns img unchanged.
func CropToContent(img *image.NRGBA, content image.Rectangle) *image.NRGBA {
	content = content.Intersect(img.Rect)
	if content.Empty() || content == img.Rect {
		return img
	}
	return imaging.Crop(img, content)
}
