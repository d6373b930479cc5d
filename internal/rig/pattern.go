package rig

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Default type names used by pattern rigs.
const (
	NormalType  = "normal"
	FisheyeType = "fisheye"
)

// Pattern builds a rig from numbered file names: images <base>1.<ext> ...
// <base>N.<ext>, intrinsics K1.txt (normal) and K2.txt (fisheye), and
// rotations R1.txt ... R<2(N-1)>.txt. OddCamera is the 1-based index of the
// camera with the fisheye lens; 0 means every camera is normal.
type Pattern struct {
	Dir       string
	Cameras   int
	ImageBase string
	ImageExt  string
	ParamsDir string
	OddCamera int
	Invert    bool
}

// Spec expands the pattern into a rig spec.
func (p Pattern) Spec() (Spec, error) {
	if p.Cameras < 1 {
		return Spec{}, fmt.Errorf("pattern needs at least one camera, got %d", p.Cameras)
	}
	if p.ImageBase == "" {
		return Spec{}, errors.New("pattern needs an image base name")
	}
	if p.OddCamera < 0 || p.OddCamera > p.Cameras {
		return Spec{}, fmt.Errorf("odd camera %d outside 1..%d", p.OddCamera, p.Cameras)
	}
	ext := strings.TrimPrefix(p.ImageExt, ".")
	if ext == "" {
		ext = "jpg"
	}
	param := func(name string) string {
		return filepath.Join(p.ParamsDir, name)
	}

	s := Spec{
		BaseDir:         p.Dir,
		Types:           []TypeSpec{{Name: NormalType, Intrinsic: param("K1.txt")}},
		InvertRotations: p.Invert,
		ScaleMode:       ScaleGlobal,
	}
	// a second type needs a second camera to keep types <= cameras
	if p.OddCamera > 0 && p.Cameras > 1 {
		s.Types = append(s.Types, TypeSpec{Name: FisheyeType, Intrinsic: param("K2.txt")})
	}

	for i := 1; i <= p.Cameras; i++ {
		typ := NormalType
		if i == p.OddCamera && len(s.Types) > 1 {
			typ = FisheyeType
		}
		s.Cameras = append(s.Cameras, CameraSpec{Image: fmt.Sprintf("%s%d.%s", p.ImageBase, i, ext), Type: typ})
	}
	for i := 1; i <= 2*(p.Cameras-1); i++ {
		s.Rotations = append(s.Rotations, param(fmt.Sprintf("R%d.txt", i)))
	}
	return s, nil
}
