// Package blend combines rendered source contributions into the output
// canvas using distance-weighted linear blending.
package blend

import (
	"image"

	"github.com/golang/geo/r2"

	"panstitch/internal/geom"
	"panstitch/internal/imgio"
)

// CoordMap is a dense per-output-pixel map of source coordinates for
// one blended image. Entries carrying the NaN sentinel are skipped.
type CoordMap struct {
	W, H int
	Pts  []r2.Point
}

// NewCoordMap allocates a map initialized to the NaN sentinel.
func NewCoordMap(w, h int) *CoordMap {
	pts := make([]r2.Point, w*h)
	for i := range pts {
		pts[i] = geom.NaNPoint()
	}
	return &CoordMap{W: w, H: h, Pts: pts}
}

// Set writes the source coordinate for output pixel (x, y).
func (m *CoordMap) Set(x, y int, p r2.Point) { m.Pts[y*m.W+x] = p }

// At reads the source coordinate for output pixel (x, y).
func (m *CoordMap) At(x, y int) r2.Point { return m.Pts[y*m.W+x] }

// Blender accumulates mapped source images, then produces the canvas.
type Blender interface {
	Add(topLeft image.Point, m *CoordMap, src *imgio.Image)
	Run(canvas *imgio.Image)
}

type mappedImage struct {
	topLeft image.Point
	coords  *CoordMap
	src     *imgio.Image
}

// Linear is a feathering blender: each contribution is weighted by the
// product of its per-axis distances from the source-image borders
// (normalized by the image size), so seams fade out toward image borders.
type Linear struct {
	images []mappedImage
}

// NewLinear returns an empty linear blender.
func NewLinear() *Linear {
	return &Linear{}
}

// Add implements Blender.
func (l *Linear) Add(topLeft image.Point, m *CoordMap, src *imgio.Image) {
	l.images = append(l.images, mappedImage{topLeft: topLeft, coords: m, src: src})
}

// Run implements Blender. Canvas pixels no contribution reaches keep
// their prior value (the no-color sentinel).
func (l *Linear) Run(canvas *imgio.Image) {
	acc := make([]float64, canvas.Width*canvas.Height*3)
	wsum := make([]float64, canvas.Width*canvas.Height)

	for _, mi := range l.images {
		srcW, srcH := float64(mi.src.Width), float64(mi.src.Height)
		for y := 0; y < mi.coords.H; y++ {
			cy := y + mi.topLeft.Y
			if cy < 0 || cy >= canvas.Height {
				continue
			}
			for x := 0; x < mi.coords.W; x++ {
				cx := x + mi.topLeft.X
				if cx < 0 || cx >= canvas.Width {
					continue
				}
				p := mi.coords.At(x, y)
				if geom.IsNaN(p) {
					continue
				}
				r, g, b, ok := mi.src.Bilinear(p.X, p.Y)
				if !ok {
					continue
				}
				w := edgeWeight(p.X, srcW) * edgeWeight(p.Y, srcH)
				if w < 1e-6 {
					w = 1e-6
				}
				i := cy*canvas.Width + cx
				acc[i*3] += w * float64(r)
				acc[i*3+1] += w * float64(g)
				acc[i*3+2] += w * float64(b)
				wsum[i] += w
			}
		}
	}

	for i, w := range wsum {
		if w <= 0 {
			continue
		}
		canvas.Pix[i*3] = float32(acc[i*3] / w)
		canvas.Pix[i*3+1] = float32(acc[i*3+1] / w)
		canvas.Pix[i*3+2] = float32(acc[i*3+2] / w)
	}
}

// edgeWeight falls off linearly from 0.5 at the image center to 0 at
// the borders.
func edgeWeight(v, extent float64) float64 {
	w := 0.5 - abs(v/extent-0.5)
	if w < 0 {
		return 0
	}
	return w
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
