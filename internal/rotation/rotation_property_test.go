package rotation

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gonum.org/v1/gonum/mat"
)

// genRelatives generates the relative rotations of a small rig as pure yaw
// matrices in calibration form.
func genRelatives(cameras int) gopter.Gen {
	return gen.SliceOfN(RelativeCount(cameras), gen.Float64Range(-0.6, 0.6)).
		Map(func(angles []float64) []*mat.Dense {
			out := make([]*mat.Dense, len(angles))
			for i, a := range angles {
				out[i] = Calibrated(YawMatrix(a))
			}
			return out
		})
}

// TestCompose_Orthonormal verifies every composed rotation stays a proper rotation.
func TestCompose_Orthonormal(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("composed rotations are orthonormal with det 1", prop.ForAll(
		func(rel []*mat.Dense) bool {
			chain, err := Compose(rel, 5)
			if err != nil {
				return false
			}
			for _, r := range chain {
				var prod mat.Dense
				prod.Mul(r, r.T())
				if !mat.EqualApprox(&prod, identity(), 1e-9) {
					return false
				}
				if d := mat.Det(r); d < 1-1e-9 || d > 1+1e-9 {
					return false
				}
			}
			return true
		},
		genRelatives(5),
	))

	properties.TestingRun(t)
}

// TestCompose_PureYaw verifies composed rotations never pick up pitch or roll.
func TestCompose_PureYaw(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("y axis is preserved", prop.ForAll(
		func(rel []*mat.Dense) bool {
			chain, err := Compose(rel, 4)
			if err != nil {
				return false
			}
			for _, r := range chain {
				if abs(r.At(1, 1)-1) > 1e-9 || abs(r.At(0, 1)) > 1e-9 || abs(r.At(1, 0)) > 1e-9 {
					return false
				}
			}
			return true
		},
		genRelatives(4),
	))

	properties.TestingRun(t)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
