package rotation

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Chain holds the composed orientation of every camera, indexed like the
// rig's camera list. Camera 0 is the reference.
type Chain []*mat.Dense

// Len returns the number of cameras in the chain.
func (c Chain) Len() int { return len(c) }

// Flat returns camera i's rotation as a row-major [9]float64.
func (c Chain) Flat(i int) [9]float64 {
	var out [9]float64
	m := c[i]
	for r := range 3 {
		for col := range 3 {
			out[r*3+col] = m.At(r, col)
		}
	}
	return out
}

// Yaw returns the angle about the y axis encoded by camera i's rotation.
func (c Chain) Yaw(i int) float64 {
	m := c[i]
	return math.Atan2(m.At(0, 2), m.At(0, 0))
}
