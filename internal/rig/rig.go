// Package rig describes a fixed multi-camera arrangement: the camera types
// (lens intrinsics), the ordered cameras and the relative rotations between
// neighbours.
package rig

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/panostitch/internal/rotation"
	"gonum.org/v1/gonum/mat"
)

// ScaleMode selects how the per-type focal scale table is built.
type ScaleMode string

const (
	// ScaleGlobal applies f[reference]/f[scale type] to every camera type.
	ScaleGlobal ScaleMode = "global"
	// ScalePerType gives each type its own f[reference]/f[type].
	ScalePerType ScaleMode = "per_type"
)

// InvalidFocalLengthError reports a camera type whose focal length is zero
// or not finite.
type InvalidFocalLengthError struct {
	Type  string
	Value float64
}

func (e *InvalidFocalLengthError) Error() string {
	return fmt.Sprintf("camera type %q has invalid focal length %g", e.Type, e.Value)
}

// CameraType is a lens model shared by one or more cameras.
type CameraType struct {
	Name      string
	Intrinsic *mat.Dense // 3x3
}

// FocalLength returns the mean of the two diagonal scale terms of the
// intrinsic matrix.
func (t CameraType) FocalLength() (float64, error) {
	if t.Intrinsic == nil {
		return 0, &InvalidFocalLengthError{Type: t.Name, Value: math.NaN()}
	}
	f := (t.Intrinsic.At(0, 0) + t.Intrinsic.At(1, 1)) / 2
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &InvalidFocalLengthError{Type: t.Name, Value: f}
	}
	return f, nil
}

// PrincipalPoint returns (cx, cy) from the third column of the intrinsic matrix.
func (t CameraType) PrincipalPoint() (float64, float64) {
	return t.Intrinsic.At(0, 2), t.Intrinsic.At(1, 2)
}

// Camera is one physical camera of the rig.
type Camera struct {
	Index int
	Type  string
	Image string
}

// Rig is the immutable description of a stitching run's geometry.
type Rig struct {
	Types        []CameraType // Types[0] is the reference type
	Cameras      []Camera     // processing order; Cameras[0] is the reference camera
	Rotations    []*mat.Dense // relative rotations, already in composer form
	Translations []*mat.Dense // parsed but not applied
	ScaleType    string       // denominator of the focal scale; "" means the last type
	ScaleMode    ScaleMode
}

// Validate checks the structural invariants of the rig.
func (r *Rig) Validate() error {
	if len(r.Types) == 0 {
		return errors.New("rig has no camera types")
	}
	if len(r.Cameras) == 0 {
		return errors.New("rig has no cameras")
	}
	if len(r.Types) > len(r.Cameras) {
		return fmt.Errorf("rig has %d camera types but only %d cameras", len(r.Types), len(r.Cameras))
	}

	seen := make(map[string]bool, len(r.Types))
	for _, t := range r.Types {
		if t.Name == "" {
			return errors.New("camera type without a name")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate camera type %q", t.Name)
		}
		seen[t.Name] = true
		if t.Intrinsic == nil {
			return fmt.Errorf("camera type %q has no intrinsic matrix", t.Name)
		}
		if _, err := t.FocalLength(); err != nil {
			return err
		}
	}
	for _, c := range r.Cameras {
		if !seen[c.Type] {
			return fmt.Errorf("camera %d uses unknown type %q", c.Index, c.Type)
		}
	}
	if r.ScaleType != "" && !seen[r.ScaleType] {
		return fmt.Errorf("scale type %q is not a camera type", r.ScaleType)
	}
	switch r.ScaleMode {
	case "", ScaleGlobal, ScalePerType:
	default:
		return fmt.Errorf("unknown scale mode %q", r.ScaleMode)
	}

	if want := rotation.RelativeCount(len(r.Cameras)); len(r.Rotations) != want {
		return fmt.Errorf("%w: %d cameras need %d rotations, got %d",
			rotation.ErrCameraCount, len(r.Cameras), want, len(r.Rotations))
	}
	return nil
}

// Type returns the camera type with the given name.
func (r *Rig) Type(name string) (CameraType, bool) {
	for _, t := range r.Types {
		if t.Name == name {
			return t, true
		}
	}
	return CameraType{}, false
}

// ReferenceType returns the first camera type.
func (r *Rig) ReferenceType() CameraType {
	return r.Types[0]
}

// FocalLengths returns the focal length of every camera type by name.
func (r *Rig) FocalLengths() (map[string]float64, error) {
	out := make(map[string]float64, len(r.Types))
	for _, t := range r.Types {
		f, err := t.FocalLength()
		if err != nil {
			return nil, err
		}
		out[t.Name] = f
	}
	return out, nil
}

// MaxFocalLength returns the largest focal length over all types, used as
// the cylinder radius of the output.
func (r *Rig) MaxFocalLength() (float64, error) {
	fl, err := r.FocalLengths()
	if err != nil {
		return 0, err
	}
	s := math.Inf(-1)
	for _, f := range fl {
		s = math.Max(s, f)
	}
	return s, nil
}

// ScaleTable returns the output scale divisor for every camera type.
func (r *Rig) ScaleTable() (map[string]float64, error) {
	fl, err := r.FocalLengths()
	if err != nil {
		return nil, err
	}
	ref := fl[r.Types[0].Name]

	scaleType := r.ScaleType
	if scaleType == "" {
		scaleType = r.Types[len(r.Types)-1].Name
	}

	out := make(map[string]float64, len(fl))
	for name, f := range fl {
		if r.ScaleMode == ScalePerType {
			out[name] = ref / f
		} else {
			out[name] = ref / fl[scaleType]
		}
	}
	return out, nil
}
