// Package compositor places projected camera pixels onto the shared output
// canvas.
package compositor

import (
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/panostitch/internal/utils"
)

// WritePolicy decides who owns a canvas cell that several cameras map to.
type WritePolicy string

const (
	// LastWriter lets later cameras overwrite earlier ones (painter's algorithm).
	LastWriter WritePolicy = "last_writer"
	// FirstWriter keeps the first value written to a cell.
	FirstWriter WritePolicy = "first_writer"
)

// ParsePolicy converts a configuration value into a WritePolicy.
// The empty string selects LastWriter.
func ParsePolicy(s string) (WritePolicy, error) {
	switch WritePolicy(s) {
	case "", LastWriter:
		return LastWriter, nil
	case FirstWriter:
		return FirstWriter, nil
	default:
		return "", fmt.Errorf("unknown write policy %q (want %s or %s)", s, LastWriter, FirstWriter)
	}
}

// OutOfCanvasWriteError reports a projected pixel whose anchored target lies
// outside the canvas. The compositor drops such writes.
type OutOfCanvasWriteError struct {
	Camera        int
	X, Y          int // anchored canvas coordinates
	Width, Height int
}

func (e *OutOfCanvasWriteError) Error() string {
	return fmt.Sprintf("camera %d: target (%d,%d) outside %dx%d canvas", e.Camera, e.X, e.Y, e.Width, e.Height)
}

// Canvas is the 2H×2W output buffer together with its anchor offset.
// Written cells are opaque; untouched cells stay zero until Flatten.
type Canvas struct {
	img      *image.NRGBA
	covered  []bool
	policy   WritePolicy
	trX, trY int
	anchored bool
}

// NewCanvas allocates a zeroed canvas for sources of srcW×srcH pixels.
// refScale is the focal scale of the reference camera and fixes the
// vertical offset.
func NewCanvas(srcW, srcH int, refScale float64, policy WritePolicy) (*Canvas, error) {
	if srcW <= 0 || srcH <= 0 {
		return nil, fmt.Errorf("invalid source size %dx%d", srcW, srcH)
	}
	if math.IsNaN(refScale) || math.IsInf(refScale, 0) || refScale == 0 {
		return nil, fmt.Errorf("invalid reference scale %g", refScale)
	}
	p, err := ParsePolicy(string(policy))
	if err != nil {
		return nil, err
	}

	w, h := 2*srcW, 2*srcH
	c := &Canvas{
		img:     image.NewNRGBA(image.Rect(0, 0, w, h)),
		covered: make([]bool, w*h),
		policy:  p,
		trY:     int(float64(h)/2 - (float64(srcH)/refScale)/2),
	}
	return c, nil
}

// Anchor fixes the horizontal offset so that newX lands on column 0.
// Only the first call has an effect; it reports whether it did.
func (c *Canvas) Anchor(newX int) bool {
	if c.anchored {
		return false
	}
	c.trX = -newX
	c.anchored = true
	return true
}

// Anchored reports whether the horizontal offset has been fixed.
func (c *Canvas) Anchored() bool { return c.anchored }

// Offset returns the anchor offset (tr_x, tr_y).
func (c *Canvas) Offset() (int, int) { return c.trX, c.trY }

// Bounds returns the canvas rectangle.
func (c *Canvas) Bounds() image.Rectangle { return c.img.Rect }

// Image returns the canvas pixels. The image is shared, not copied.
func (c *Canvas) Image() *image.NRGBA { return c.img }

// Policy returns the canvas write policy.
func (c *Canvas) Policy() WritePolicy { return c.policy }

// ContentBounds returns the smallest rectangle holding every written cell,
// or an empty rectangle if nothing was written.
func (c *Canvas) ContentBounds() image.Rectangle {
	return utils.MaskBounds(c.img.Rect, c.covered)
}

// Flatten makes every cell opaque, so untouched cells become black, and
// returns the canvas image. ContentBounds is unaffected.
func (c *Canvas) Flatten() *image.NRGBA {
	for i := 3; i < len(c.img.Pix); i += 4 {
		c.img.Pix[i] = 0xff
	}
	return c.img
}

// target translates an unanchored projected position into a pixel index,
// or -1 if it falls outside the canvas.
func (c *Canvas) target(newX, newY int) int {
	x, y := newX+c.trX, newY+c.trY
	w, h := c.img.Rect.Dx(), c.img.Rect.Dy()
	if x < 0 || y < 0 || x >= w || y >= h {
		return -1
	}
	return y*w + x
}

// put stores px at pixel index i as an opaque color and reports whether the
// policy allowed it.
func (c *Canvas) put(i int, px []uint8) bool {
	if c.policy == FirstWriter && c.covered[i] {
		return false
	}
	c.covered[i] = true
	copy(c.img.Pix[i*4:i*4+3], px[:3])
	c.img.Pix[i*4+3] = 0xff
	return true
}

// Write stores px (four NRGBA bytes) at the anchored position of the
// projected coordinate (newX, newY). Targets outside the canvas are not
// written and yield an *OutOfCanvasWriteError. The boolean reports whether
// the cell was changed under the canvas policy.
func (c *Canvas) Write(camera, newX, newY int, px []uint8) (bool, error) {
	i := c.target(newX, newY)
	if i < 0 {
		return false, &OutOfCanvasWriteError{
			Camera: camera,
			X:      newX + c.trX,
			Y:      newY + c.trY,
			Width:  c.img.Rect.Dx(),
			Height: c.img.Rect.Dy(),
		}
	}
	return c.put(i, px), nil
}
