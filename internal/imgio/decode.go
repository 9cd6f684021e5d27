package imgio

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Load decodes an image file into a float raster. JPEG, PNG, GIF, BMP,
// TIFF and WebP decode natively; anything else (RAW formats, exotic
// TIFF variants) goes through the ImageMagick bindings.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	src, _, derr := image.Decode(f)
	f.Close()
	if derr == nil {
		return FromGoImage(src), nil
	}
	img, merr := loadMagick(path)
	if merr != nil {
		return nil, fmt.Errorf("decode %s: %v (magick fallback: %v)", path, derr, merr)
	}
	return img, nil
}

// Save encodes the raster to path, picking the codec from the
// extension. PNG and JPEG encode natively; other extensions go through
// ImageMagick.
func Save(path string, m *Image, quality int) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return png.Encode(f, m.ToGoImage())
	case ".jpg", ".jpeg":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if quality <= 0 {
			quality = 92
		}
		return jpeg.Encode(f, m.ToGoImage(), &jpeg.Options{Quality: quality})
	default:
		return saveMagick(path, m, quality)
	}
}
