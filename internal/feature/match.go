package feature

import "math"

// BruteForceMatcher pairs descriptors by nearest neighbor with a Lowe
// ratio test and a cross check. Deterministic for fixed inputs.
type BruteForceMatcher struct {
	// Ratio is the maximum best/second-best distance ratio.
	Ratio float64
}

// NewBruteForceMatcher returns a matcher with the usual 0.8 ratio.
func NewBruteForceMatcher() *BruteForceMatcher {
	return &BruteForceMatcher{Ratio: 0.8}
}

// Match implements Matcher.
func (m *BruteForceMatcher) Match(a, b []Feature) [][2]int {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	fwd := nearest(a, b, m.Ratio)
	rev := nearest(b, a, m.Ratio)

	var out [][2]int
	for ia, ib := range fwd {
		if ib >= 0 && rev[ib] == ia {
			out = append(out, [2]int{ia, ib})
		}
	}
	return out
}

// nearest returns, for each feature in a, the index of its ratio-test
// accepted nearest neighbor in b, or -1.
func nearest(a, b []Feature, ratio float64) []int {
	out := make([]int, len(a))
	for i := range a {
		out[i] = -1
		best, second := math.Inf(1), math.Inf(1)
		bestIdx := -1
		for j := range b {
			d := sqDist(a[i].Desc, b[j].Desc)
			if d < best {
				second = best
				best = d
				bestIdx = j
			} else if d < second {
				second = d
			}
		}
		if bestIdx < 0 {
			continue
		}
		if second < math.Inf(1) && best > ratio*ratio*second {
			continue
		}
		out[i] = bestIdx
	}
	return out
}

func sqDist(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}
