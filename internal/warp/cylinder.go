// Package warp remaps images and feature coordinates from the image
// plane onto a cylinder.
package warp

import (
	"math"

	"github.com/golang/geo/r2"

	"panstitch/internal/feature"
	"panstitch/internal/imgio"
)

// Cylinder projects onto a cylinder of focal length Factor times the
// image width. The projection is anchored at the image center.
type Cylinder struct {
	Factor float64
}

// NewCylinder returns a warper for the given focal factor.
func NewCylinder(factor float64) Cylinder {
	return Cylinder{Factor: factor}
}

// Image resamples src onto the cylinder and returns the warped raster.
// src is left untouched.
func (c Cylinder) Image(src *imgio.Image) *imgio.Image {
	w, h := src.Width, src.Height
	f := c.Factor * float64(w)
	cx, cy := float64(w)/2, float64(h)/2

	outW := int(math.Ceil(2 * f * math.Atan2(cx, f)))
	if outW < 1 {
		outW = 1
	}
	out := imgio.New(outW, h)
	ocx, ocy := float64(outW)/2, float64(h)/2

	for oy := 0; oy < h; oy++ {
		dv := float64(oy) - ocy
		for ox := 0; ox < outW; ox++ {
			du := float64(ox) - ocx
			theta := du / f
			dx := f * math.Tan(theta)
			dy := dv * math.Hypot(dx, f) / f
			r, g, b, ok := src.Bilinear(cx+dx, cy+dy)
			if ok {
				out.Set(ox, oy, r, g, b)
			}
		}
	}
	return out
}

// Point maps one centered plane coordinate onto the cylinder. Both the
// input and the result are relative to the image center.
func (c Cylinder) Point(p r2.Point, width int) r2.Point {
	f := c.Factor * float64(width)
	return r2.Point{
		X: f * math.Atan2(p.X, f),
		Y: f * p.Y / math.Hypot(p.X, f),
	}
}

// Features rewrites centered feature coordinates in place. width is the
// width of the unwarped image the features came from.
func (c Cylinder) Features(feats []feature.Feature, width int) {
	for i := range feats {
		feats[i].Pos = c.Point(feats[i].Pos, width)
	}
}
