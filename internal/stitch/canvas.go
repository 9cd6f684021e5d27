package stitch

import (
	"github.com/golang/geo/r2"

	"panstitch/internal/geom"
)

// updateProjRange projects every image's four corners through its chain
// transform and the bundle projection, records the per-component
// bounding boxes and their union. Range units are projection
// coordinates scaled by the identity image's dimensions, the same frame
// the renderer inverts.
func (s *Stitcher) updateProjRange() {
	id := s.imgs[s.bundle.IdentityIdx]
	refw, refh := float64(id.Width), float64(id.Height)

	union := geom.EmptyRect()
	for i := range s.bundle.Components {
		comp := &s.bundle.Components[i]
		img := s.imgs[i]
		cx, cy := float64(img.Width)/2, float64(img.Height)/2

		rect := geom.EmptyRect()
		for _, corner := range [4]r2.Point{
			{X: -cx, Y: -cy}, {X: cx, Y: -cy},
			{X: -cx, Y: cy}, {X: cx, Y: cy},
		} {
			rect = rect.ExtendPoint(s.projectCorner(comp.Homo, corner, refw, refh))
		}
		comp.Range = rect
		union = union.Union(rect)
	}
	s.bundle.ProjRange = union
}

// projectCorner runs one centered image coordinate through the full
// forward pipeline: chain homography, shift into the identity image's
// unit square, projection, scale to projection units.
func (s *Stitcher) projectCorner(h geom.Homography, corner r2.Point, refw, refh float64) r2.Point {
	v := h.Apply(geom.Vec{X: corner.X, Y: corner.Y, Z: 1})
	shifted := geom.Vec{
		X: v.X/refw + 0.5*v.Z,
		Y: v.Y/refh + 0.5*v.Z,
		Z: v.Z,
	}
	p := s.bundle.homo2proj(shifted)
	return r2.Point{X: p.X * refw, Y: p.Y * refh}
}
