// Command test-integration exercises the full stitch path end to end:
// it renders a synthetic sweep of overlapping images, stitches them
// through the task layer and reports the resulting canvas.
package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"panstitch/internal/config"
	"panstitch/internal/imgio"
	"panstitch/internal/storage"
	"panstitch/internal/tasks"
)

func main() {
	fmt.Println("Testing synthetic sweep stitching")

	workDir, err := os.MkdirTemp("", "panstitch-integration")
	if err != nil {
		log.Fatal("failed to create work directory:", err)
	}
	defer os.RemoveAll(workDir)

	store, err := storage.New(filepath.Join(workDir, "test_integration.db"))
	if err != nil {
		log.Fatal("failed to create storage:", err)
	}
	defer store.Close()

	// Three overlapping views of one synthetic scene.
	const (
		width   = 320
		height  = 240
		overlap = 200
	)
	var paths []string
	for i := 0; i < 3; i++ {
		img := renderView(i*(width-overlap), width, height)
		p := filepath.Join(workDir, fmt.Sprintf("view_%02d.png", i))
		if err := imgio.Save(p, img, 0); err != nil {
			log.Fatal("failed to write synthetic view:", err)
		}
		paths = append(paths, p)
	}
	fmt.Printf("rendered %d synthetic views in %s\n", len(paths), workDir)

	cfg := config.Default()
	pano := false
	res, err := tasks.Stitch(context.Background(), cfg, tasks.StitchRequest{
		Images:     paths,
		Output:     filepath.Join(workDir, "panorama.png"),
		Pano:       &pano,
		Projection: "flat",
	})
	if err != nil {
		log.Fatal("stitch failed:", err)
	}

	fmt.Printf("panorama: %dx%d (%s projection, hfactor %.3f)\n",
		res.CanvasWidth, res.CanvasHeight, res.Projection, res.HFactor)
	for _, tr := range res.Transforms {
		fmt.Printf("  image %d: tx=%.1f ty=%.1f\n", tr.Index, tr.Homography[2], tr.Homography[5])
	}
	fmt.Println("integration test completed")
}

// renderView samples a fixed procedural scene starting at world
// offset x0. Neighboring views overlap and carry enough texture for
// the detector to latch onto.
func renderView(x0, w, h int) *imgio.Image {
	img := imgio.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			wx, wy := float64(x0+x), float64(y)
			v := math.Sin(wx*0.11) + math.Sin(wy*0.13) + math.Sin((wx+wy)*0.07) + math.Sin(wx*wy*0.0021)
			v = (v + 4) / 8
			img.Set(x, y, float32(v), float32(v*0.8+0.1), float32(1-v))
		}
	}
	return img
}
