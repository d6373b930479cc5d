package utils

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/panostitch/internal/common"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// SupportedImageExtensions lists supported file extensions for loading and saving.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	return slices.Contains(SupportedImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// LoadImage opens and decodes an image file into NRGBA form.
// An unreadable file yields a *common.MissingInputError.
func LoadImage(path string) (*image.NRGBA, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		err := &ImageProcessingError{Operation: "load", Path: path, Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
		return nil, ImageMetadata{}, err
	}

	f, err := os.Open(path) //nolint:gosec // G304: image paths come from the rig configuration
	if err != nil {
		return nil, ImageMetadata{}, &common.MissingInputError{Kind: "image", Path: path, Err: err}
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("Error closing image file", "path", path, "error", err)
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, ImageMetadata{}, &common.MissingInputError{Kind: "image", Path: path, Err: err}
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "decode", Path: path, Err: err}
	}
	nrgba, err := ToNRGBA(img)
	if err != nil {
		return nil, ImageMetadata{}, err
	}

	meta := ImageMetadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     nrgba.Rect.Dx(),
		Height:    nrgba.Rect.Dy(),
	}
	return nrgba, meta, nil
}

// ValidateDimensions checks that got has the same size as want.
func ValidateDimensions(got, want ImageMetadata) error {
	if got.Width != want.Width || got.Height != want.Height {
		return &DimensionMismatchError{
			Path:   got.Path,
			Width:  got.Width,
			Height: got.Height,
			WantW:  want.Width,
			WantH:  want.Height,
		}
	}
	return nil
}

// SaveImage encodes img to path; the format follows the extension.
// quality applies to JPEG output only.
func SaveImage(img image.Image, path string, quality int) error {
	if img == nil {
		return &ImageProcessingError{Operation: "save", Path: path, Err: errors.New("input image is nil")}
	}
	if !IsSupportedImage(path) {
		return &ImageProcessingError{Operation: "save", Path: path, Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return &ImageProcessingError{Operation: "save", Path: path, Err: err}
		}
	}
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return &ImageProcessingError{Operation: "save", Path: path, Err: err}
	}
	return nil
}
