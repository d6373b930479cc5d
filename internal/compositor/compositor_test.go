package compositor

import (
	"bytes"
	"context"
	"image"
	"testing"

	"github.com/MeKo-Tech/panostitch/internal/projection"
	"github.com/MeKo-Tech/panostitch/internal/rig"
	"github.com/MeKo-Tech/panostitch/internal/rotation"
	"github.com/MeKo-Tech/panostitch/internal/testutil"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shiftProjector places camera c's pixel (x, y) at (x + c*shift, y).
type shiftProjector struct {
	cameras int
	shift   int
}

func (p shiftProjector) Cameras() int                   { return p.cameras }
func (p shiftProjector) Scale(int) float64              { return 1 }
func (p shiftProjector) Project(c, x, y int) (int, int) { return x + c*p.shift, y }

func images(n, w, h int) []*image.NRGBA {
	out := make([]*image.NRGBA, n)
	for i := range out {
		out[i] = testutil.GradientImage(w, h, uint8(40*(i+1)))
	}
	return out
}

func pixel(img *image.NRGBA, x, y int) []uint8 {
	i := img.PixOffset(x, y)
	return img.Pix[i : i+4]
}

func TestCompositeOverlapPolicies(t *testing.T) {
	src := images(3, 4, 2)

	tests := []struct {
		policy      WritePolicy
		workers     int
		wantCam     int // camera owning canvas column 2
		wantSrcX    int
		wantWritten int64
		wantSkipped int64
	}{
		{LastWriter, 1, 1, 0, 24, 0},
		{LastWriter, 3, 1, 0, 24, 0},
		{FirstWriter, 1, 0, 2, 16, 8},
		{FirstWriter, 3, 0, 2, 16, 8},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			comp, err := New(shiftProjector{cameras: 3, shift: 2}, Config{Workers: tt.workers, Policy: tt.policy})
			require.NoError(t, err)

			canvas, stats, err := comp.Composite(context.Background(), src)
			require.NoError(t, err)

			trX, trY := canvas.Offset()
			assert.Equal(t, 0, trX)
			assert.Equal(t, 1, trY)

			assert.Equal(t, pixel(src[tt.wantCam], tt.wantSrcX, 0), pixel(canvas.Image(), 2, 1))
			assert.Equal(t, tt.wantWritten, stats.Written)
			assert.Equal(t, tt.wantSkipped, stats.Skipped)
			assert.Zero(t, stats.TotalDropped())
		})
	}
}

func TestCompositeDropsOutOfCanvas(t *testing.T) {
	src := images(3, 4, 2)
	for _, workers := range []int{1, 2} {
		comp, err := New(shiftProjector{cameras: 3, shift: 3}, Config{Workers: workers})
		require.NoError(t, err)

		canvas, stats, err := comp.Composite(context.Background(), src)
		require.NoError(t, err)

		// camera 2 spans columns 6..9 of an 8-column canvas
		assert.Equal(t, []int64{0, 0, 4}, stats.Dropped)
		assert.Equal(t, int64(4), stats.TotalDropped())

		// rows 0 and 3 are never written
		for x := range 8 {
			assert.Equal(t, []uint8{0, 0, 0, 0}, pixel(canvas.Image(), x, 0))
			assert.Equal(t, []uint8{0, 0, 0, 0}, pixel(canvas.Image(), x, 3))
		}
		assert.Equal(t, 16, testutil.CountNonZero(canvas.Image()))
	}
}

func TestCompositeSingleCameraCopiesSource(t *testing.T) {
	src := images(1, 5, 3)
	comp, err := New(shiftProjector{cameras: 1}, DefaultConfig())
	require.NoError(t, err)

	canvas, stats, err := comp.Composite(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(15), stats.Written)

	_, trY := canvas.Offset()
	for y := range 3 {
		for x := range 5 {
			assert.Equal(t, pixel(src[0], x, y), pixel(canvas.Image(), x, y+trY))
		}
	}
}

func TestCompositeValidatesImages(t *testing.T) {
	comp, err := New(shiftProjector{cameras: 2}, DefaultConfig())
	require.NoError(t, err)

	_, _, err = comp.Composite(context.Background(), images(1, 4, 4))
	assert.ErrorContains(t, err, "got 1 images for 2 cameras")

	_, _, err = comp.Composite(context.Background(), []*image.NRGBA{
		testutil.GradientImage(4, 4, 1), testutil.GradientImage(4, 5, 2),
	})
	assert.ErrorContains(t, err, "camera 1")
}

func TestCompositeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		comp, err := New(shiftProjector{cameras: 3, shift: 1}, Config{Workers: workers})
		require.NoError(t, err)
		_, _, err = comp.Composite(ctx, images(3, 4, 4))
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestCompositeProgress(t *testing.T) {
	var seen []int
	comp, err := New(shiftProjector{cameras: 3, shift: 1}, Config{
		Workers:  2,
		Progress: func(done, total int) { seen = append(seen, done*10+total) },
	})
	require.NoError(t, err)

	_, _, err = comp.Composite(context.Background(), images(3, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, []int{13, 23, 33}, seen)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.Error(t, err)
	_, err = New(shiftProjector{cameras: 1}, Config{Policy: "blend"})
	assert.Error(t, err)
}

func cylinderProjector(t *testing.T, yaws []float64, w, h int) *projection.Projector {
	t.Helper()
	n := len(yaws)
	cams := make([]projection.CameraParams, n)
	for i, y := range yaws {
		cams[i] = projection.CameraParams{
			Name:     rig.NormalType,
			Focal:    float64(w),
			Scale:    1,
			Rotation: rotation.Chain{rotation.YawMatrix(y)}.Flat(0),
		}
	}
	p, err := projection.New(projection.Params{
		Cx: float64(w) / 2, Cy: float64(h) / 2, Radius: float64(w), Cameras: cams,
	})
	require.NoError(t, err)
	return p
}

// TestCompositeDeterministic checks that sequential and parallel composites
// of a cylindrical rig are byte-identical under both policies.
func TestCompositeDeterministic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("parallel equals sequential", prop.ForAll(
		func(step float64, workers int, first bool) bool {
			const n, w, h = 4, 24, 16
			yaws := make([]float64, n)
			for i := range yaws {
				yaws[i] = float64(i) * step
			}
			proj := cylinderProjector(t, yaws, w, h)
			policy := LastWriter
			if first {
				policy = FirstWriter
			}
			src := images(n, w, h)

			seq, err := New(proj, Config{Workers: 1, Policy: policy})
			if err != nil {
				return false
			}
			par, err := New(proj, Config{Workers: workers, Policy: policy})
			if err != nil {
				return false
			}
			a, sa, err := seq.Composite(context.Background(), src)
			if err != nil {
				return false
			}
			b, sb, err := par.Composite(context.Background(), src)
			if err != nil {
				return false
			}
			return bytes.Equal(a.Image().Pix, b.Image().Pix) &&
				sa.Written == sb.Written && sa.TotalDropped() == sb.TotalDropped()
		},
		gen.Float64Range(0.1, 0.9),
		gen.IntRange(2, 8),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestCompositeAnchorsReferenceCorner(t *testing.T) {
	// cx = cy = 50, f = 100, identity rotations: pixel (0,0) projects to x = 4
	src := images(2, 100, 100)
	proj, err := projection.New(projection.Params{Cx: 50, Cy: 50, Radius: 100, Cameras: []projection.CameraParams{
		{Name: "normal", Focal: 100, Scale: 1, Rotation: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}},
		{Name: "normal", Focal: 100, Scale: 1, Rotation: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}},
	}})
	require.NoError(t, err)

	comp, err := New(proj, DefaultConfig())
	require.NoError(t, err)
	canvas, _, err := comp.Composite(context.Background(), src)
	require.NoError(t, err)

	trX, trY := canvas.Offset()
	assert.Equal(t, -4, trX)
	assert.Equal(t, 50, trY)

	// identical cameras: camera 1 wins every cell under last-writer
	assert.Equal(t, pixel(src[1], 50, 50), pixel(canvas.Image(), 46, 100))

	// source pixels (0,0) and (1,0) round to the same cell (0,55); the later one wins
	x0, y0 := proj.Project(1, 0, 0)
	x1, y1 := proj.Project(1, 1, 0)
	assert.Equal(t, image.Pt(0, 55), image.Pt(x0+trX, y0+trY))
	assert.Equal(t, image.Pt(x0, y0), image.Pt(x1, y1))
	assert.Equal(t, pixel(src[1], 1, 0), pixel(canvas.Image(), 0, 55))
}
