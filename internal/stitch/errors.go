package stitch

import (
	"errors"
	"fmt"
)

// ErrDegenerateInput is returned when there is nothing to stitch: no
// images, or no features anywhere.
var ErrDegenerateInput = errors.New("stitch: degenerate input")

// ErrFactorSearch is returned when no focal factor candidate produced a
// consistent chain.
var ErrFactorSearch = errors.New("stitch: focal factor search failed")

// MatchError reports a required image pair that produced no acceptable
// homography. Fatal for the whole stitch.
type MatchError struct {
	A, B int
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("stitch: image %d and %d do not match", e.A, e.B)
}
