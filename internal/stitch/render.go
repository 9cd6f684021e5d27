package stitch

import (
	"fmt"
	"image"

	"github.com/golang/geo/r2"

	"panstitch/internal/blend"
	"panstitch/internal/geom"
	"panstitch/internal/imgio"
)

// render builds a dense inverse map from output pixels to source
// pixels for every component and hands them to the blender.
func (s *Stitcher) render() (*imgio.Image, error) {
	b := &s.bundle
	id := s.imgs[b.IdentityIdx]
	refw, refh := float64(id.Width), float64(id.Height)

	// Per-pixel extents come from projecting the identity image's unit
	// cell, so the identity image renders at its native resolution.
	one := b.homo2proj(geom.Vec{X: 1, Y: 1, Z: 1})
	zero := b.homo2proj(geom.Vec{X: 0, Y: 0, Z: 1})
	xPerPixel := one.X - zero.X
	yPerPixel := one.Y - zero.Y

	projMin := b.ProjRange.Min
	outW := int(b.ProjRange.Width()/xPerPixel + 0.5)
	outH := int(b.ProjRange.Height()/yPerPixel + 0.5)
	if outW <= 0 || outH <= 0 {
		return nil, fmt.Errorf("stitch: empty canvas %dx%d", outW, outH)
	}
	s.log.Debug("canvas planned", "width", outW, "height", outH,
		"x_per_pixel", xPerPixel, "y_per_pixel", yPerPixel)

	canvas := imgio.New(outW, outH)
	canvas.Fill(imgio.NoColor)

	toCanvas := func(p r2.Point) image.Point {
		return image.Pt(int((p.X-projMin.X)/xPerPixel), int((p.Y-projMin.Y)/yPerPixel))
	}

	for idx := range b.Components {
		comp := &b.Components[idx]
		img := s.imgs[idx]
		topLeft := toCanvas(comp.Range.Min)
		bottomRight := toCanvas(comp.Range.Max)
		w, h := bottomRight.X-topLeft.X, bottomRight.Y-topLeft.Y
		if w <= 0 || h <= 0 {
			continue
		}

		m := blend.NewCoordMap(w, h)
		halfW, halfH := float64(img.Width)/2, float64(img.Height)/2
		srcW, srcH := float64(img.Width), float64(img.Height)

		s.parallelEach(h, func(i int) {
			for j := 0; j < w; j++ {
				c := r2.Point{
					X: float64(j+topLeft.X)*xPerPixel + projMin.X,
					Y: float64(i+topLeft.Y)*yPerPixel + projMin.Y,
				}
				hv := b.proj2homo(r2.Point{X: c.X / refw, Y: c.Y / refh})
				hv.X -= 0.5 * hv.Z
				hv.Y -= 0.5 * hv.Z
				hv.X *= refw
				hv.Y *= refh
				p := comp.HomoInv.Apply(hv).Normalize()
				if geom.IsNaN(p) {
					continue
				}
				p = r2.Point{X: p.X + halfW, Y: p.Y + halfH}
				if p.X < 0 || p.X >= srcW || p.Y < 0 || p.Y >= srcH {
					continue
				}
				m.Set(j, i, p)
			}
		})
		s.opts.Blender.Add(topLeft, m, img)
	}

	s.opts.Blender.Run(canvas)
	return canvas, nil
}
