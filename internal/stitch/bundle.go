package stitch

import (
	"math"

	"github.com/golang/geo/r2"

	"panstitch/internal/geom"
)

// Projection selects how chained coordinates map onto the output
// canvas.
type Projection int

const (
	// ProjectionFlat renders the plane directly.
	ProjectionFlat Projection = iota
	// ProjectionCylindrical wraps the chained plane around a cylinder.
	ProjectionCylindrical
)

func (p Projection) String() string {
	if p == ProjectionFlat {
		return "flat"
	}
	return "cylindrical"
}

// Component is the per-image record of the assembled panorama. Homo
// maps centered coordinates of this image into the identity image's
// frame, HomoInv is its inverse, and Range is the bounding box of the
// image's corners after the full projection pipeline, in canvas
// projection units.
type Component struct {
	Homo    geom.Homography
	HomoInv geom.Homography
	Range   geom.Rect
}

// Bundle is the set of components for the current assembly plus the
// projection metadata the renderer needs. It holds image indices, not
// image data; the stitcher owns the rasters.
type Bundle struct {
	Components  []Component
	IdentityIdx int
	Proj        Projection
	ProjRange   geom.Rect
}

// calcInverse refreshes every component's HomoInv.
func (b *Bundle) calcInverse() error {
	for i := range b.Components {
		inv, err := b.Components[i].Homo.Inverse()
		if err != nil {
			return err
		}
		b.Components[i].HomoInv = inv
	}
	return nil
}

// homo2proj maps a chained homogeneous coordinate into projection
// space.
func (b *Bundle) homo2proj(v geom.Vec) r2.Point {
	if b.Proj == ProjectionFlat {
		return r2.Point{X: v.X / v.Z, Y: v.Y / v.Z}
	}
	return r2.Point{X: math.Atan2(v.X, v.Z), Y: v.Y / math.Hypot(v.X, v.Z)}
}

// proj2homo inverts homo2proj up to scale.
func (b *Bundle) proj2homo(p r2.Point) geom.Vec {
	if b.Proj == ProjectionFlat {
		return geom.Vec{X: p.X, Y: p.Y, Z: 1}
	}
	return geom.Vec{X: math.Sin(p.X), Y: p.Y, Z: math.Cos(p.X)}
}
