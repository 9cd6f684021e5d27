// Package transform estimates pairwise homographies from matched
// features. The stitcher consumes the Fitter interface; RANSACFitter is
// the production implementation.
package transform

import (
	"panstitch/internal/feature"
	"panstitch/internal/geom"
)

// MatchInfo describes the fitted relation of an ordered image pair
// (a, b): Homo maps image-b coordinates into image-a coordinates.
type MatchInfo struct {
	Homo       geom.Homography
	Inliers    int
	Confidence float64
}

// Fitter estimates a homography from matched feature pairs. pairs holds
// (index into a, index into b) tuples. ok is false when no acceptable
// model exists.
type Fitter interface {
	Fit(a, b []feature.Feature, pairs [][2]int) (MatchInfo, bool)
}
