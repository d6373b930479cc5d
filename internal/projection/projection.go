// Package projection maps source pixels of a rig's cameras onto a shared
// vertical cylinder.
package projection

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/panostitch/internal/rig"
	"github.com/MeKo-Tech/panostitch/internal/rotation"
)

// CameraParams holds what the projector needs to know about one camera.
type CameraParams struct {
	Name     string     // camera type, used in errors
	Focal    float64    // focal length of the camera's type
	Scale    float64    // output divisor (f_scale) for the camera's type
	Rotation [9]float64 // composed rotation, row-major
}

// Params configures a Projector.
type Params struct {
	Cx, Cy  float64 // principal point of the reference type
	Radius  float64 // s, the largest focal length of the rig
	Cameras []CameraParams
}

// Projector holds the per-camera constants of the cylindrical projection.
// It is immutable and safe for concurrent use.
type Projector struct {
	cx, cy float64
	s      float64
	cams   []CameraParams
}

// New validates p and returns a projector.
func New(p Params) (*Projector, error) {
	if len(p.Cameras) == 0 {
		return nil, fmt.Errorf("projector needs at least one camera")
	}
	if !finite(p.Radius) || p.Radius == 0 {
		return nil, &rig.InvalidFocalLengthError{Type: "max", Value: p.Radius}
	}
	for i, c := range p.Cameras {
		if !finite(c.Focal) || c.Focal == 0 {
			return nil, &rig.InvalidFocalLengthError{Type: c.Name, Value: c.Focal}
		}
		if !finite(c.Scale) || c.Scale == 0 {
			return nil, fmt.Errorf("camera %d: invalid focal scale %g", i, c.Scale)
		}
	}
	cams := make([]CameraParams, len(p.Cameras))
	copy(cams, p.Cameras)
	return &Projector{cx: p.Cx, cy: p.Cy, s: p.Radius, cams: cams}, nil
}

// FromRig builds a projector from a validated rig and its composed chain.
func FromRig(r *rig.Rig, chain rotation.Chain) (*Projector, error) {
	if chain.Len() != len(r.Cameras) {
		return nil, fmt.Errorf("rotation chain has %d entries for %d cameras", chain.Len(), len(r.Cameras))
	}
	focals, err := r.FocalLengths()
	if err != nil {
		return nil, err
	}
	scales, err := r.ScaleTable()
	if err != nil {
		return nil, err
	}
	s, err := r.MaxFocalLength()
	if err != nil {
		return nil, err
	}
	cx, cy := r.ReferenceType().PrincipalPoint()

	p := Params{Cx: cx, Cy: cy, Radius: s, Cameras: make([]CameraParams, len(r.Cameras))}
	for i, c := range r.Cameras {
		p.Cameras[i] = CameraParams{
			Name:     c.Type,
			Focal:    focals[c.Type],
			Scale:    scales[c.Type],
			Rotation: chain.Flat(i),
		}
	}
	return New(p)
}

// Cameras returns the number of cameras the projector knows.
func (p *Projector) Cameras() int { return len(p.cams) }

// Scale returns the output divisor of camera i.
func (p *Projector) Scale(i int) float64 { return p.cams[i].Scale }

// Angle returns the cylinder coordinates of pixel (x, y) of camera cam:
// the angle delta around the cylinder axis and the height h.
func (p *Projector) Angle(cam int, x, y float64) (delta, h float64) {
	c := &p.cams[cam]
	bx, by, bz := x-p.cx, y-p.cy, c.Focal

	r := &c.Rotation
	wx := r[0]*bx + r[1]*by + r[2]*bz
	wz := r[6]*bx + r[7]*by + r[8]*bz

	h = by / math.Sqrt(c.Focal*c.Focal+bx*bx)

	// atan2 jumps by 2π behind the camera; mirror the ray and add π so the
	// angle keeps growing across the seam between the last and first camera.
	if cam != 0 && wx < 0 && wz < 0 {
		return math.Atan2(-wx, -wz) + math.Pi, h
	}
	return math.Atan2(wx, wz), h
}

// Project maps pixel (x, y) of camera cam to an unanchored output position.
func (p *Projector) Project(cam, x, y int) (int, int) {
	delta, h := p.Angle(cam, float64(x), float64(y))
	scale := p.cams[cam].Scale
	nx := math.Round((p.cx + p.s*delta) / scale)
	ny := math.Round((p.cy + p.s*h) / scale)
	return int(nx), int(ny)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
