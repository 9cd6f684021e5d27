package imgio

import (
	"fmt"

	"gopkg.in/gographics/imagick.v3/imagick"
)

func loadMagick(path string) (*Image, error) {
	imagick.Initialize()
	defer imagick.Terminate()

	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	if err := mw.ReadImage(path); err != nil {
		return nil, fmt.Errorf("magick read: %w", err)
	}
	w := int(mw.GetImageWidth())
	h := int(mw.GetImageHeight())
	raw, err := mw.ExportImagePixels(0, 0, uint(w), uint(h), "RGB", imagick.PIXEL_FLOAT)
	if err != nil {
		return nil, fmt.Errorf("magick export: %w", err)
	}
	pix, ok := raw.([]float32)
	if !ok || len(pix) != w*h*3 {
		return nil, fmt.Errorf("magick export: unexpected pixel buffer for %s", path)
	}
	out := &Image{Width: w, Height: h, Pix: pix}
	return out, nil
}

func saveMagick(path string, m *Image, quality int) error {
	imagick.Initialize()
	defer imagick.Terminate()

	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	if err := mw.ConstituteImage(uint(m.Width), uint(m.Height), "RGB", imagick.PIXEL_FLOAT, m.Pix); err != nil {
		return fmt.Errorf("magick constitute: %w", err)
	}
	if quality > 0 {
		if err := mw.SetImageCompressionQuality(uint(quality)); err != nil {
			return fmt.Errorf("magick quality: %w", err)
		}
	}
	if err := mw.WriteImage(path); err != nil {
		return fmt.Errorf("magick write: %w", err)
	}
	return nil
}
