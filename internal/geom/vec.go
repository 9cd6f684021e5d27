// Package geom provides the small set of geometric primitives the
// stitcher is built on: homogeneous 2D points, 3x3 homographies and
// axis-aligned rectangles.
package geom

import (
	"math"

	"github.com/golang/geo/r2"
)

// Vec is a point in homogeneous 2D coordinates.
type Vec struct {
	X, Y, Z float64
}

// Normalize performs the perspective divide. Points at infinity come
// back as the NaN sentinel.
func (v Vec) Normalize() r2.Point {
	if math.Abs(v.Z) < 1e-12 {
		return NaNPoint()
	}
	return r2.Point{X: v.X / v.Z, Y: v.Y / v.Z}
}

// NaNPoint returns the sentinel marking an invalid 2D coordinate.
// The blender skips map entries carrying it.
func NaNPoint() r2.Point {
	return r2.Point{X: math.NaN(), Y: math.NaN()}
}

// IsNaN reports whether p is the invalid-coordinate sentinel.
func IsNaN(p r2.Point) bool {
	return math.IsNaN(p.X) || math.IsNaN(p.Y)
}
