// Package testutil generates synthetic rigs and images for tests.
package testutil

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// GradientImage returns a w x h opaque image whose red channel follows x,
// green follows y and blue is fixed to tag, so every pixel of a camera is
// traceable in a composite.
func GradientImage(w, h int, tag uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = uint8(x * 255 / max(w-1, 1))
			img.Pix[i+1] = uint8(y * 255 / max(h-1, 1))
			img.Pix[i+2] = tag
			img.Pix[i+3] = 255
		}
	}
	return img
}

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.NRGBA) *image.NRGBA {
	return imaging.New(w, h, c)
}

// SaveImage encodes img to path, choosing the format from the extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// LoadImage decodes the image at path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image %s", path)
	return img
}

// CountNonZero returns how many pixels of img have a non-zero alpha.
func CountNonZero(img *image.NRGBA) int {
	n := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			n++
		}
	}
	return n
}
