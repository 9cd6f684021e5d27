// Package imgio holds the floating-point RGB raster the stitcher works
// on, plus decoding and encoding between that raster and image files.
package imgio

import (
	"image"
	"image/color"
	"math"
)

// NoColor marks canvas pixels no source image painted.
const NoColor = -1

// Image is an RGB raster with float32 channels normalized to [0, 1].
// Pixels are stored row-major, three floats per pixel.
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

// New allocates a zeroed raster.
func New(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]float32, width*height*3)}
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	out := &Image{Width: m.Width, Height: m.Height, Pix: make([]float32, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// Fill sets every channel of every pixel to v.
func (m *Image) Fill(v float32) {
	for i := range m.Pix {
		m.Pix[i] = v
	}
}

// At returns the pixel at (x, y). The caller keeps coordinates in range.
func (m *Image) At(x, y int) (r, g, b float32) {
	i := (y*m.Width + x) * 3
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// Set writes the pixel at (x, y).
func (m *Image) Set(x, y int, r, g, b float32) {
	i := (y*m.Width + x) * 3
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = r, g, b
}

// Bilinear samples the raster at a fractional coordinate. ok is false
// when (x, y) falls outside the image.
func (m *Image) Bilinear(x, y float64) (r, g, b float32, ok bool) {
	if x < 0 || y < 0 || x > float64(m.Width-1) || y > float64(m.Height-1) {
		return 0, 0, 0, false
	}
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	x1, y1 := x0+1, y0+1
	if x1 > m.Width-1 {
		x1 = m.Width - 1
	}
	if y1 > m.Height-1 {
		y1 = m.Height - 1
	}
	fx, fy := float32(x-float64(x0)), float32(y-float64(y0))

	r00, g00, b00 := m.At(x0, y0)
	r10, g10, b10 := m.At(x1, y0)
	r01, g01, b01 := m.At(x0, y1)
	r11, g11, b11 := m.At(x1, y1)

	lerp := func(a, b, t float32) float32 { return a + (b-a)*t }
	r = lerp(lerp(r00, r10, fx), lerp(r01, r11, fx), fy)
	g = lerp(lerp(g00, g10, fx), lerp(g01, g11, fx), fy)
	b = lerp(lerp(b00, b10, fx), lerp(b01, b11, fx), fy)
	return r, g, b, true
}

// Luminance returns a single-channel view of the raster, used by the
// feature detector.
func (m *Image) Luminance() []float32 {
	out := make([]float32, m.Width*m.Height)
	for i := 0; i < len(out); i++ {
		out[i] = 0.299*m.Pix[i*3] + 0.587*m.Pix[i*3+1] + 0.114*m.Pix[i*3+2]
	}
	return out
}

// FromGoImage converts a decoded image.Image into a float raster.
func FromGoImage(src image.Image) *Image {
	b := src.Bounds()
	out := New(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bb, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.Set(x, y, float32(r)/65535, float32(g)/65535, float32(bb)/65535)
		}
	}
	return out
}

// ToGoImage converts the raster back to an 8-bit RGBA image. NoColor
// pixels come out black.
func (m *Image) ToGoImage() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			r, g, b := m.At(x, y)
			out.SetRGBA(x, y, color.RGBA{R: clamp8(r), G: clamp8(g), B: clamp8(b), A: 255})
		}
	}
	return out
}

func clamp8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
