// Package rotation reduces the relative camera rotations of a rig to yaw
// angles and chains them into one orientation per camera.
//
// Only the rotation about the vertical (y) axis is kept. The rig is assumed
// to be planar with yaw dominated relative motion; pitch and roll in the
// calibration output are discarded on purpose and are not estimated.
package rotation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrCameraCount is returned when the number of relative rotations does not
// match the camera count of the rig.
var ErrCameraCount = errors.New("relative rotation count does not match camera count")

// DegenerateRotationError reports a relative rotation whose sine term lies
// outside [-1, 1], which means the matrix is not a rotation.
type DegenerateRotationError struct {
	Index int // position in the relative rotation list
	Value float64
}

func (e *DegenerateRotationError) Error() string {
	return fmt.Sprintf("relative rotation %d is degenerate: sine term %g outside [-1, 1]", e.Index, e.Value)
}

// Calibrated converts a stereo calibration rotation R into the relative
// rotation consumed by the composer, -Rᵀ.
func Calibrated(r mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Scale(-1, r.T())
	return &out
}

// ExtractYaw returns asin(R[2][0]).
func ExtractYaw(r mat.Matrix) (float64, error) {
	v := r.At(2, 0)
	if math.IsNaN(v) || v < -1 || v > 1 {
		return 0, &DegenerateRotationError{Value: v}
	}
	return math.Asin(v), nil
}

// YawMatrix builds the right-handed rotation by theta about the y axis.
func YawMatrix(theta float64) *mat.Dense {
	s, c := math.Sincos(theta)
	return mat.NewDense(3, 3, []float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	})
}

// RelativeCount returns how many relative rotations a rig of n cameras needs.
func RelativeCount(cameras int) int {
	if cameras < 1 {
		return 0
	}
	return 2 * (cameras - 1)
}

// Compose turns the pairwise relative rotations into one orientation per
// camera. Cameras 0 and 1 take the yaw matrices of the first two relatives;
// each later camera i is rotated by Ry[2i-1]·Ry[2i-2]⁻¹ relative to camera i-1.
// A single camera rig gets the identity.
func Compose(relatives []*mat.Dense, cameras int) (Chain, error) {
	if cameras < 1 {
		return nil, fmt.Errorf("%w: %d cameras", ErrCameraCount, cameras)
	}
	if want := RelativeCount(cameras); len(relatives) != want {
		return nil, fmt.Errorf("%w: %d cameras need %d rotations, got %d",
			ErrCameraCount, cameras, want, len(relatives))
	}
	if cameras == 1 {
		return Chain{identity()}, nil
	}

	yaws := make([]*mat.Dense, len(relatives))
	for i, r := range relatives {
		theta, err := ExtractYaw(r)
		if err != nil {
			var derr *DegenerateRotationError
			if errors.As(err, &derr) {
				derr.Index = i
			}
			return nil, err
		}
		yaws[i] = YawMatrix(theta)
	}

	chain := make(Chain, cameras)
	chain[0] = yaws[0]
	chain[1] = yaws[1]
	for i := 2; i < cameras; i++ {
		var inv mat.Dense
		if err := inv.Inverse(yaws[2*i-2]); err != nil {
			return nil, &DegenerateRotationError{Index: 2*i - 2, Value: relatives[2*i-2].At(2, 0)}
		}
		var step mat.Dense
		step.Mul(yaws[2*i-1], &inv)

		var next mat.Dense
		next.Mul(&step, chain[i-1])
		chain[i] = &next
	}
	return chain, nil
}

func identity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}
