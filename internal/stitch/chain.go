package stitch

import (
	"panstitch/internal/geom"
)

// buildLinearSimple composes the consecutive pairwise homographies into
// per-image transforms anchored at the middle image. homo[k] maps
// centered coordinates of image k into the identity image's frame.
func (s *Stitcher) buildLinearSimple() error {
	n := len(s.imgs)
	mid := n / 2
	s.bundle.IdentityIdx = mid
	s.bundle.Components = make([]Component, n)
	for i := range s.bundle.Components {
		s.bundle.Components[i].Homo = geom.Identity()
	}

	comp := s.bundle.Components
	for k := mid + 1; k < n; k++ {
		info, ok := s.graph.Match(k-1, k)
		if !ok {
			return &MatchError{A: k - 1, B: k}
		}
		comp[k].Homo = comp[k-1].Homo.Mul(info.Homo)
	}
	for k := mid - 1; k >= 0; k-- {
		info, ok := s.graph.Match(k+1, k)
		if !ok {
			return &MatchError{A: k, B: k + 1}
		}
		comp[k].Homo = comp[k+1].Homo.Mul(info.Homo)
	}
	return s.bundle.calcInverse()
}
