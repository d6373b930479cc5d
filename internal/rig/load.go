package rig

import (
	"fmt"
	"path/filepath"

	"github.com/MeKo-Tech/panostitch/internal/params"
	"github.com/MeKo-Tech/panostitch/internal/rotation"
)

// TypeSpec names a camera type and its intrinsic parameter file.
type TypeSpec struct {
	Name      string
	Intrinsic string
}

// CameraSpec names a camera's image file and type.
type CameraSpec struct {
	Image string
	Type  string
}

// Spec is the file-level description of a rig, before any file is read.
type Spec struct {
	BaseDir         string
	Types           []TypeSpec
	Cameras         []CameraSpec
	Rotations       []string
	Translations    []string
	InvertRotations bool
	ScaleType       string
	ScaleMode       ScaleMode
}

// Resolve joins a relative path onto the spec's base directory.
func (s Spec) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || s.BaseDir == "" {
		return path
	}
	return filepath.Join(s.BaseDir, path)
}

// Load reads every parameter file named by the spec and returns a validated rig.
// Image paths are resolved but not opened.
func Load(s Spec) (*Rig, error) {
	r := &Rig{
		Types:     make([]CameraType, 0, len(s.Types)),
		Cameras:   make([]Camera, 0, len(s.Cameras)),
		ScaleType: s.ScaleType,
		ScaleMode: s.ScaleMode,
	}

	for _, ts := range s.Types {
		k, err := params.LoadIntrinsic(s.Resolve(ts.Intrinsic))
		if err != nil {
			return nil, fmt.Errorf("camera type %q: %w", ts.Name, err)
		}
		r.Types = append(r.Types, CameraType{Name: ts.Name, Intrinsic: k})
	}

	for i, cs := range s.Cameras {
		r.Cameras = append(r.Cameras, Camera{Index: i, Type: cs.Type, Image: s.Resolve(cs.Image)})
	}

	for _, p := range s.Rotations {
		m, err := params.LoadRotation(s.Resolve(p))
		if err != nil {
			return nil, err
		}
		if s.InvertRotations {
			m = rotation.Calibrated(m)
		}
		r.Rotations = append(r.Rotations, m)
	}

	for _, p := range s.Translations {
		t, err := params.LoadTranslation(s.Resolve(p))
		if err != nil {
			return nil, err
		}
		r.Translations = append(r.Translations, t)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
