// Package feature provides keypoint detection, descriptors and
// descriptor matching for the stitcher. The stitcher only depends on
// the Detector and Matcher interfaces, so both stages can be swapped
// out (tests inject synthetic implementations).
package feature

import (
	"github.com/golang/geo/r2"

	"panstitch/internal/imgio"
)

// Feature is a keypoint with a descriptor vector. Pos is in the
// coordinate frame of the image the feature was detected in; the
// stitcher re-centers it around the image center before fitting.
type Feature struct {
	Pos      r2.Point
	Response float64
	Desc     []float32
}

// Detector extracts features from one image. Implementations are pure
// with respect to their input and safe to call concurrently on
// distinct images.
type Detector interface {
	Detect(img *imgio.Image) []Feature
}

// Matcher pairs features between two images. Each returned pair is
// (index into a, index into b).
type Matcher interface {
	Match(a, b []Feature) [][2]int
}
