package stitch

import (
	"fmt"
	"math"

	"panstitch/internal/geom"
)

// straightenSimple shears the chain so the first and last image centers
// share a y coordinate. Only meaningful for the planar chain.
func (s *Stitcher) straightenSimple() error {
	n := len(s.bundle.Components)
	first := s.bundle.Components[0].Homo.Trans2D(0, 0)
	last := s.bundle.Components[n-1].Homo.Trans2D(0, 0)
	if geom.IsNaN(first) || geom.IsNaN(last) {
		return fmt.Errorf("stitch: straighten: chain centers are invalid")
	}
	dx := last.X - first.X
	if math.Abs(dx) < 1e-9 {
		return fmt.Errorf("stitch: straighten: %w: first and last centers share x", geom.ErrSingular)
	}
	dydx := (last.Y - first.Y) / dx

	shear := geom.Identity()
	shear[1][0] = dydx
	inv, err := shear.Inverse()
	if err != nil {
		return fmt.Errorf("stitch: straighten: %w", err)
	}
	for i := range s.bundle.Components {
		s.bundle.Components[i].Homo = inv.Mul(s.bundle.Components[i].Homo)
	}
	return s.bundle.calcInverse()
}
