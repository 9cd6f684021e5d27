package transform

import (
	"math/rand"

	"github.com/golang/geo/r2"

	"panstitch/internal/feature"
	"panstitch/internal/geom"
)

// RANSACFitter fits a homography with RANSAC over minimal 4-point DLT
// samples, then refits on the consensus set. The random source is
// seeded per call, so identical inputs produce identical models.
type RANSACFitter struct {
	// Iterations bounds the number of random samples.
	Iterations int
	// Threshold is the inlier reprojection distance in pixels.
	Threshold float64
	// MinInliers rejects models with fewer consensus matches.
	MinInliers int
	// MinConfidence rejects weakly supported models.
	MinConfidence float64
	// Seed feeds the sampling source.
	Seed int64
}

// NewRANSACFitter returns a fitter with the default tuning.
func NewRANSACFitter() *RANSACFitter {
	return &RANSACFitter{
		Iterations:    1500,
		Threshold:     3.0,
		MinInliers:    8,
		MinConfidence: 0.06,
		Seed:          1,
	}
}

// Fit implements Fitter. The returned homography maps b coordinates
// into a coordinates.
func (f *RANSACFitter) Fit(a, b []feature.Feature, pairs [][2]int) (MatchInfo, bool) {
	if len(pairs) < f.MinInliers || len(pairs) < 4 {
		return MatchInfo{}, false
	}

	src := make([]r2.Point, len(pairs)) // in b
	dst := make([]r2.Point, len(pairs)) // in a
	for i, p := range pairs {
		dst[i] = a[p[0]].Pos
		src[i] = b[p[1]].Pos
	}

	rng := rand.New(rand.NewSource(f.Seed))
	thresholdSq := f.Threshold * f.Threshold

	var bestInliers []int
	for iter := 0; iter < f.Iterations; iter++ {
		sample := sample4(rng, len(pairs))
		if sample == nil {
			break
		}
		h, err := estimateDLT(pick(src, sample), pick(dst, sample))
		if err != nil {
			continue
		}
		inliers := consensus(h, src, dst, thresholdSq)
		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
		}
	}

	if len(bestInliers) < f.MinInliers {
		return MatchInfo{}, false
	}

	h, err := estimateDLT(pick(src, bestInliers), pick(dst, bestInliers))
	if err != nil {
		return MatchInfo{}, false
	}
	// The refit can shift the consensus set; count against the final model.
	inliers := consensus(h, src, dst, thresholdSq)
	if len(inliers) < f.MinInliers {
		return MatchInfo{}, false
	}

	confidence := float64(len(inliers)) / (8 + 0.3*float64(len(pairs)))
	if confidence < f.MinConfidence {
		return MatchInfo{}, false
	}
	return MatchInfo{Homo: h, Inliers: len(inliers), Confidence: confidence}, true
}

func consensus(h geom.Homography, src, dst []r2.Point, thresholdSq float64) []int {
	var inliers []int
	for i := range src {
		p := h.TransPoint(src[i])
		if geom.IsNaN(p) {
			continue
		}
		dx, dy := p.X-dst[i].X, p.Y-dst[i].Y
		if dx*dx+dy*dy < thresholdSq {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

func sample4(rng *rand.Rand, n int) []int {
	if n < 4 {
		return nil
	}
	seen := make(map[int]struct{}, 4)
	out := make([]int, 0, 4)
	for len(out) < 4 {
		i := rng.Intn(n)
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	return out
}

func pick(pts []r2.Point, idx []int) []r2.Point {
	out := make([]r2.Point, len(idx))
	for i, j := range idx {
		out[i] = pts[j]
	}
	return out
}
