package stitch

import (
	"math"

	"panstitch/internal/feature"
	"panstitch/internal/geom"
	"panstitch/internal/warp"
)

// orderEpsilon guards the step-direction sign: when the first two
// chained images share an x coordinate the sweep is vertical and the
// search direction is undefined, so the search keeps f = 1.
const orderEpsilon = 1e-6

// buildBundleWarp assembles the bundle in panorama mode: search for the
// focal factor that flattens the horizon, warp every image onto the
// cylinder and chain the warped pairs around the middle image.
func (s *Stitcher) buildBundleWarp() error {
	n := len(s.imgs)
	mid := n / 2
	s.bundle.IdentityIdx = mid
	s.bundle.Components = make([]Component, n)
	for i := range s.bundle.Components {
		s.bundle.Components[i].Homo = geom.Identity()
	}

	// Match every consecutive pair once on the unwarped features. The
	// pairs stay valid after warping because warping preserves feature
	// identity; only the coordinates move, so each candidate factor
	// just re-fits.
	matches := make([][][2]int, 0, n-1)
	for k := 0; k+1 < n; k++ {
		matches = append(matches, s.opts.Matcher.Match(s.feats[k], s.feats[k+1]))
	}

	bestFactor := 1.0
	var bestChain []geom.Homography
	minSlope := math.Inf(1)

	if n-mid > 1 {
		factor := 1.0
		slope, chain, err := s.evalHFactor(factor, matches)
		if err != nil {
			return err
		}
		minSlope, bestFactor, bestChain = math.Abs(slope), factor, chain

		// Step direction follows the sweep direction of the first
		// chained image.
		centerX := chain[0].Trans2D(0, 0).X
		if math.Abs(centerX) >= orderEpsilon {
			order := 1.0
			if centerX < 0 {
				order = -1
			}
			for k := 0; k < 3 && math.Abs(slope) >= s.cfg.SlopePlain; k++ {
				step := -order
				if slope < 0 {
					step = order
				}
				factor += step / (5 * math.Pow(2, float64(k)))
				var chainK []geom.Homography
				slope, chainK, err = s.evalHFactor(factor, matches)
				if err != nil {
					return err
				}
				if math.Abs(slope) < minSlope {
					minSlope, bestFactor, bestChain = math.Abs(slope), factor, chainK
				}
			}
		}
		if len(bestChain) == 0 {
			return ErrFactorSearch
		}
		s.log.Debug("focal factor chosen", "factor", bestFactor, "slope", minSlope)
	}
	s.hfactor = bestFactor

	// Warp all images and features with the winner. The warped rasters
	// replace the stitcher's references; caller images stay pristine.
	warper := warp.NewCylinder(bestFactor)
	s.parallelEach(n, func(k int) {
		width := s.imgs[k].Width
		s.imgs[k] = warper.Image(s.imgs[k])
		warper.Features(s.feats[k], width)
	})

	comp := s.bundle.Components
	for j, h := range bestChain {
		comp[mid+1+j].Homo = h
	}

	// Left half: re-fit each (i+1, i) pair on the warped features and
	// chain leftward from the identity image.
	for i := mid - 1; i >= 0; i-- {
		info, ok := s.opts.Fitter.Fit(s.feats[i+1], s.feats[i], reversePairs(matches[i]))
		if !ok {
			return &MatchError{A: i, B: i + 1}
		}
		comp[i].Homo = info.Homo
	}
	for i := mid - 2; i >= 0; i-- {
		comp[i].Homo = comp[i+1].Homo.Mul(comp[i].Homo)
	}
	return s.bundle.calcInverse()
}

// evalHFactor scores one candidate focal factor: warp copies of the
// right-half features, re-fit the consecutive pairs, chain them onto
// the middle image and report the slope of the last image's origin in
// that frame. The returned chain holds the accumulated homographies for
// images mid+1 … n-1.
func (s *Stitcher) evalHFactor(factor float64, matches [][][2]int) (float64, []geom.Homography, error) {
	n := len(s.imgs)
	mid := s.bundle.IdentityIdx
	length := n - mid

	warper := warp.NewCylinder(factor)
	feats := make([][]feature.Feature, length)
	s.parallelEach(length, func(j int) {
		feats[j] = cloneFeatures(s.feats[mid+j])
		warper.Features(feats[j], s.imgs[mid+j].Width)
	})

	chain := make([]geom.Homography, 0, length-1)
	for j := 1; j < length; j++ {
		info, ok := s.opts.Fitter.Fit(feats[j-1], feats[j], matches[mid+j-1])
		if !ok {
			return 0, nil, &MatchError{A: mid + j - 1, B: mid + j}
		}
		chain = append(chain, info.Homo)
	}
	for j := 1; j < len(chain); j++ {
		chain[j] = chain[j-1].Mul(chain[j])
	}

	origin := chain[len(chain)-1].Trans2D(0, 0)
	slope := origin.Y / origin.X
	s.log.Debug("factor evaluated", "factor", factor, "slope", slope)
	return slope, chain, nil
}

func cloneFeatures(src []feature.Feature) []feature.Feature {
	out := make([]feature.Feature, len(src))
	copy(out, src)
	return out
}

func reversePairs(pairs [][2]int) [][2]int {
	out := make([][2]int, len(pairs))
	for i, p := range pairs {
		out[i] = [2]int{p[1], p[0]}
	}
	return out
}
