package feature

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"

	"panstitch/internal/imgio"
)

// HarrisDetector finds corners on the luminance plane using the Harris
// response, suppresses non-maxima and describes each corner with a
// normalized intensity patch.
type HarrisDetector struct {
	// MaxFeatures caps the number of corners kept, strongest first.
	MaxFeatures int
	// K is the Harris trace weight.
	K float64
	// MinResponse rejects weak corners relative to the strongest one.
	MinResponse float64
	// NMSRadius is the non-maximum suppression window radius in pixels.
	NMSRadius int
	// PatchRadius controls descriptor footprint: the descriptor samples
	// a (2r+1)² neighborhood downsampled to 8x8.
	PatchRadius int
}

// NewHarrisDetector returns a detector with the default tuning.
func NewHarrisDetector(maxFeatures int) *HarrisDetector {
	if maxFeatures <= 0 {
		maxFeatures = 1500
	}
	return &HarrisDetector{
		MaxFeatures: maxFeatures,
		K:           0.04,
		MinResponse: 0.01,
		NMSRadius:   4,
		PatchRadius: 8,
	}
}

// Detect implements Detector.
func (d *HarrisDetector) Detect(img *imgio.Image) []Feature {
	w, h := img.Width, img.Height
	if w < 16 || h < 16 {
		return nil
	}
	lum := img.Luminance()

	ix := make([]float32, w*h)
	iy := make([]float32, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			ix[i] = (lum[i+1-w] + 2*lum[i+1] + lum[i+1+w]) - (lum[i-1-w] + 2*lum[i-1] + lum[i-1+w])
			iy[i] = (lum[i+w-1] + 2*lum[i+w] + lum[i+w+1]) - (lum[i-w-1] + 2*lum[i-w] + lum[i-w+1])
		}
	}

	// Harris response with a 3x3 structure-tensor window.
	resp := make([]float64, w*h)
	var maxResp float64
	for y := 2; y < h-2; y++ {
		for x := 2; x < w-2; x++ {
			var sxx, syy, sxy float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					i := (y+dy)*w + x + dx
					gx, gy := float64(ix[i]), float64(iy[i])
					sxx += gx * gx
					syy += gy * gy
					sxy += gx * gy
				}
			}
			det := sxx*syy - sxy*sxy
			tr := sxx + syy
			r := det - d.K*tr*tr
			resp[y*w+x] = r
			if r > maxResp {
				maxResp = r
			}
		}
	}
	if maxResp <= 0 {
		return nil
	}

	threshold := maxResp * d.MinResponse
	margin := d.PatchRadius + 1
	var corners []Feature
	for y := margin; y < h-margin; y++ {
		for x := margin; x < w-margin; x++ {
			r := resp[y*w+x]
			if r < threshold {
				continue
			}
			if !isLocalMax(resp, w, h, x, y, d.NMSRadius) {
				continue
			}
			corners = append(corners, Feature{
				Pos:      r2.Point{X: float64(x), Y: float64(y)},
				Response: r,
			})
		}
	}

	// Strongest first; ties break on scan order so runs are reproducible.
	sort.SliceStable(corners, func(i, j int) bool { return corners[i].Response > corners[j].Response })
	if len(corners) > d.MaxFeatures {
		corners = corners[:d.MaxFeatures]
	}
	for i := range corners {
		corners[i].Desc = d.describe(lum, w, corners[i].Pos)
	}
	return corners
}

func isLocalMax(resp []float64, w, h, x, y, radius int) bool {
	r := resp[y*w+x]
	for dy := -radius; dy <= radius; dy++ {
		yy := y + dy
		if yy < 0 || yy >= h {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			xx := x + dx
			if xx < 0 || xx >= w {
				continue
			}
			if dx == 0 && dy == 0 {
				continue
			}
			o := resp[yy*w+xx]
			if o > r {
				return false
			}
			// Plateau: keep only the first pixel in scan order.
			if o == r && (dy < 0 || (dy == 0 && dx < 0)) {
				return false
			}
		}
	}
	return true
}

// describe samples an 8x8 grid over the patch and normalizes it to
// zero mean, unit variance.
func (d *HarrisDetector) describe(lum []float32, w int, pos r2.Point) []float32 {
	const grid = 8
	desc := make([]float32, grid*grid)
	step := float64(2*d.PatchRadius) / float64(grid-1)
	x0 := pos.X - float64(d.PatchRadius)
	y0 := pos.Y - float64(d.PatchRadius)
	for gy := 0; gy < grid; gy++ {
		for gx := 0; gx < grid; gx++ {
			sx := int(math.Round(x0 + float64(gx)*step))
			sy := int(math.Round(y0 + float64(gy)*step))
			desc[gy*grid+gx] = lum[sy*w+sx]
		}
	}

	var mean float64
	for _, v := range desc {
		mean += float64(v)
	}
	mean /= float64(len(desc))
	var variance float64
	for _, v := range desc {
		dv := float64(v) - mean
		variance += dv * dv
	}
	std := math.Sqrt(variance / float64(len(desc)))
	if std < 1e-6 {
		std = 1e-6
	}
	for i := range desc {
		desc[i] = float32((float64(desc[i]) - mean) / std)
	}
	return desc
}
