package geom

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a matrix cannot be inverted.
var ErrSingular = errors.New("geom: singular matrix")

// Homography is a 3x3 projective transform between two image planes.
// Indices are [row][column].
type Homography [3][3]float64

// Identity returns the identity homography.
func Identity() Homography {
	return Homography{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// Mul composes two homographies. The product h·g applies g first,
// then h, matching matrix multiplication.
func (h Homography) Mul(g Homography) Homography {
	var out Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = h[i][0]*g[0][j] + h[i][1]*g[1][j] + h[i][2]*g[2][j]
		}
	}
	return out
}

// Apply transforms a homogeneous point without normalizing it.
func (h Homography) Apply(v Vec) Vec {
	return Vec{
		X: h[0][0]*v.X + h[0][1]*v.Y + h[0][2]*v.Z,
		Y: h[1][0]*v.X + h[1][1]*v.Y + h[1][2]*v.Z,
		Z: h[2][0]*v.X + h[2][1]*v.Y + h[2][2]*v.Z,
	}
}

// Trans2D maps the 2D point (x, y) and performs the perspective divide.
func (h Homography) Trans2D(x, y float64) r2.Point {
	return h.Apply(Vec{X: x, Y: y, Z: 1}).Normalize()
}

// TransPoint is Trans2D on an r2.Point.
func (h Homography) TransPoint(p r2.Point) r2.Point {
	return h.Trans2D(p.X, p.Y)
}

// Inverse returns h⁻¹, or ErrSingular when h is not invertible.
func (h Homography) Inverse() (Homography, error) {
	m := mat.NewDense(3, 3, []float64{
		h[0][0], h[0][1], h[0][2],
		h[1][0], h[1][1], h[1][2],
		h[2][0], h[2][1], h[2][2],
	})
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	var out Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = inv.At(i, j)
		}
	}
	return out, nil
}

// Cells flattens the matrix row-major, the layout transform records are
// persisted in.
func (h Homography) Cells() [9]float64 {
	return [9]float64{
		h[0][0], h[0][1], h[0][2],
		h[1][0], h[1][1], h[1][2],
		h[2][0], h[2][1], h[2][2],
	}
}

// FromCells rebuilds a homography from its row-major cells.
func FromCells(c [9]float64) Homography {
	return Homography{
		{c[0], c[1], c[2]},
		{c[3], c[4], c[5]},
		{c[6], c[7], c[8]},
	}
}
