package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/panostitch/internal/params"
	"github.com/MeKo-Tech/panostitch/internal/rig"
	"github.com/MeKo-Tech/panostitch/internal/rotation"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// RigOptions describes a synthetic rig written to disk by WriteRig.
type RigOptions struct {
	Cameras int
	Width   int
	Height  int
	Focal   float64
	Cx, Cy  float64 // zero means image centre

	// Yaws holds the 2(N-1) relative yaw angles in radians; nil means identity.
	Yaws []float64

	// FisheyeCamera is the 0-based index of a camera using a second lens type,
	// -1 for none.
	FisheyeCamera int
	FisheyeFocal  float64
	ImageBase     string // "cam" when empty
	ImageExt      string

	// Invert loads the rotations through rotation.Calibrated. It keeps the
	// R[2][0] element of a yaw matrix, so both settings place cameras alike.
	Invert bool
}

// DefaultRigOptions returns a 3 camera, single type rig with identity rotations.
func DefaultRigOptions() RigOptions {
	return RigOptions{
		Cameras:       3,
		Width:         40,
		Height:        30,
		Focal:         50,
		FisheyeCamera: -1,
		ImageExt:      "png",
	}
}

// Intrinsic builds a 3x3 camera matrix.
func Intrinsic(f, cx, cy float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{f, 0, cx, 0, f, cy, 0, 0, 1})
}

// WriteRig writes intrinsics, rotations and gradient images for opts into a
// temporary directory and returns the matching spec.
func WriteRig(t *testing.T, opts RigOptions) rig.Spec {
	t.Helper()

	spec, err := WriteRigFiles(t.TempDir(), opts)
	require.NoError(t, err)
	return spec
}

// WriteRigFiles writes the rig described by opts into dir using the numbered
// layout <base><i>.<ext>, K1.txt, K2.txt and R<i>.txt, so the result also
// loads through rig.Pattern.
func WriteRigFiles(dir string, opts RigOptions) (rig.Spec, error) {
	cx, cy := opts.Cx, opts.Cy
	if cx == 0 && cy == 0 {
		cx, cy = float64(opts.Width)/2, float64(opts.Height)/2
	}
	base := opts.ImageBase
	if base == "" {
		base = "cam"
	}
	ext := opts.ImageExt
	if ext == "" {
		ext = "png"
	}

	spec := rig.Spec{BaseDir: dir, InvertRotations: opts.Invert, ScaleMode: rig.ScaleGlobal}

	if err := params.WriteMatrix(filepath.Join(dir, "K1.txt"), Intrinsic(opts.Focal, cx, cy), "Intrinsic matrix"); err != nil {
		return rig.Spec{}, err
	}
	spec.Types = append(spec.Types, rig.TypeSpec{Name: rig.NormalType, Intrinsic: "K1.txt"})
	if opts.FisheyeCamera >= 0 {
		if err := params.WriteMatrix(filepath.Join(dir, "K2.txt"), Intrinsic(opts.FisheyeFocal, cx, cy), "Intrinsic matrix"); err != nil {
			return rig.Spec{}, err
		}
		spec.Types = append(spec.Types, rig.TypeSpec{Name: rig.FisheyeType, Intrinsic: "K2.txt"})
	}

	for i := range opts.Cameras {
		name := fmt.Sprintf("%s%d.%s", base, i+1, ext)
		if err := imaging.Save(GradientImage(opts.Width, opts.Height, uint8(40*(i+1))), filepath.Join(dir, name)); err != nil {
			return rig.Spec{}, err
		}
		typ := rig.NormalType
		if i == opts.FisheyeCamera {
			typ = rig.FisheyeType
		}
		spec.Cameras = append(spec.Cameras, rig.CameraSpec{Image: name, Type: typ})
	}

	for i := range rotation.RelativeCount(opts.Cameras) {
		yaw := 0.0
		if opts.Yaws != nil {
			yaw = opts.Yaws[i]
		}
		name := fmt.Sprintf("R%d.txt", i+1)
		if err := params.WriteMatrix(filepath.Join(dir, name), rotation.YawMatrix(yaw), ""); err != nil {
			return rig.Spec{}, err
		}
		spec.Rotations = append(spec.Rotations, name)
	}
	return spec, nil
}
