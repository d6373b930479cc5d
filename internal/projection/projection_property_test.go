package projection

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestAngle_ContinuousAcrossSeam checks that non-reference cameras report
// their own yaw at the principal point for yaws on both sides of π, so the
// angle never wraps by 2π at the seam between the last and first camera.
func TestAngle_ContinuousAcrossSeam(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("delta equals yaw for yaws in (-π/2, 3π/2)", prop.ForAll(
		func(theta float64) bool {
			p, err := New(Params{Cx: 50, Cy: 50, Radius: 100, Cameras: []CameraParams{
				{Name: "n", Focal: 100, Scale: 1, Rotation: identity},
				{Name: "n", Focal: 100, Scale: 1, Rotation: yaw(theta)},
			}})
			if err != nil {
				return false
			}
			delta, _ := p.Angle(1, 50, 50)
			return math.Abs(delta-theta) < 1e-9
		},
		gen.Float64Range(-math.Pi/2+0.01, 3*math.Pi/2-0.01),
	))

	properties.TestingRun(t)
}

// TestAngle_SmoothRig sweeps a rig whose cameras step around the cylinder and
// checks the principal-point angles of consecutive cameras differ by the step.
func TestAngle_SmoothRig(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("consecutive cameras are one step apart", prop.ForAll(
		func(step float64) bool {
			n := int((3*math.Pi/2 - 0.05) / step)
			if n < 2 {
				return true
			}
			params := Params{Cx: 50, Cy: 50, Radius: 100}
			for i := range n {
				params.Cameras = append(params.Cameras, CameraParams{
					Name: "n", Focal: 100, Scale: 1, Rotation: yaw(float64(i) * step),
				})
			}
			p, err := New(params)
			if err != nil {
				return false
			}
			prev, _ := p.Angle(0, 50, 50)
			for i := 1; i < n; i++ {
				d, _ := p.Angle(i, 50, 50)
				if math.Abs(d-prev-step) > 1e-9 {
					return false
				}
				prev = d
			}
			return true
		},
		gen.Float64Range(0.2, 0.8),
	))

	properties.TestingRun(t)
}

// TestProject_RoundingTolerance compares Project against the closed form for
// a known camera and pixel.
func TestProject_RoundingTolerance(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("projected pixel within ±1 of closed form", prop.ForAll(
		func(x, y int, theta float64) bool {
			p, err := New(Params{Cx: 50, Cy: 50, Radius: 120, Cameras: []CameraParams{
				{Name: "n", Focal: 100, Scale: 1, Rotation: identity},
				{Name: "n", Focal: 100, Scale: 1, Rotation: yaw(theta)},
			}})
			if err != nil {
				return false
			}
			bx, by := float64(x)-50, float64(y)-50
			wx := math.Cos(theta)*bx + math.Sin(theta)*100
			wz := -math.Sin(theta)*bx + math.Cos(theta)*100
			delta := math.Atan2(wx, wz)
			if wx < 0 && wz < 0 {
				delta = math.Atan2(-wx, -wz) + math.Pi
			}
			h := by / math.Hypot(100, bx)
			wantX := 50 + 120*delta
			wantY := 50 + 120*h

			gx, gy := p.Project(1, x, y)
			return math.Abs(float64(gx)-wantX) <= 1 && math.Abs(float64(gy)-wantY) <= 1
		},
		gen.IntRange(0, 99),
		gen.IntRange(0, 99),
		gen.Float64Range(-1, 1),
	))

	properties.TestingRun(t)
}
