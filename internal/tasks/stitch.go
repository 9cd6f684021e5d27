package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"panstitch/internal/config"
	"panstitch/internal/feature"
	"panstitch/internal/fsutil"
	"panstitch/internal/imgio"
	"panstitch/internal/stitch"
	"panstitch/internal/transform"
)

// StitchRequest defines inputs for one stitch.
type StitchRequest struct {
	// Images lists the inputs in sweep order. When empty, InputDir is
	// scanned and its images are taken in lexicographic order.
	Images   []string
	InputDir string
	Output   string

	// Pano/Projection/SlopePlain/Straighten override the config when
	// set; see config.Stitch.
	Pano       *bool
	Projection string
	SlopePlain float64
	Straighten bool
}

// TransformRecord reports one image's chained homography.
type TransformRecord struct {
	ImagePath  string
	Index      int
	Homography [9]float64
}

// StitchResult captures output metadata.
type StitchResult struct {
	OutputFile     string
	ImageCount     int
	CanvasWidth    int
	CanvasHeight   int
	Projection     string
	HFactor        float64
	IdentityIndex  int
	Transforms     []TransformRecord
	ProcessingTime time.Duration
}

// Stitch loads the inputs, runs the stitcher core and encodes the
// blended canvas.
func Stitch(ctx context.Context, cfg *config.Config, req StitchRequest) (StitchResult, error) {
	logger := slog.Default()
	start := time.Now()

	paths := req.Images
	if len(paths) == 0 {
		var err error
		paths, err = fsutil.ListImages(req.InputDir)
		if err != nil {
			return StitchResult{}, fmt.Errorf("list images in %s: %w", req.InputDir, err)
		}
		sort.Strings(paths)
	}
	if len(paths) == 0 {
		return StitchResult{}, fmt.Errorf("no images found in %s", req.InputDir)
	}

	output := req.Output
	if output == "" || strings.HasSuffix(output, string(filepath.Separator)) || isDirectory(output) {
		if output == "" {
			output = cfg.Paths.DefaultOutput
		}
		if err := os.MkdirAll(output, 0o755); err != nil {
			return StitchResult{}, fmt.Errorf("failed to create output directory: %v", err)
		}
		output = filepath.Join(output, "panorama.jpg")
	} else if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return StitchResult{}, fmt.Errorf("failed to create output directory: %v", err)
	}

	logger.Info("starting stitch",
		"images", len(paths),
		"output", output,
		"pano", resolvePano(cfg, req),
	)

	imgs := make([]*imgio.Image, len(paths))
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return StitchResult{}, err
		}
		img, err := imgio.Load(p)
		if err != nil {
			return StitchResult{}, err
		}
		imgs[i] = img
		logger.Debug("image loaded", "path", p, "width", img.Width, "height", img.Height)
	}

	stitchCfg, opts := buildStitcher(cfg, req, logger)
	s := stitch.New(imgs, stitchCfg, opts)
	canvas, err := s.Build()
	if err != nil {
		return StitchResult{}, fmt.Errorf("stitch %d images: %w", len(paths), err)
	}
	if err := ctx.Err(); err != nil {
		return StitchResult{}, err
	}

	if err := imgio.Save(output, canvas, cfg.Stitch.OutputQuality); err != nil {
		return StitchResult{}, fmt.Errorf("write %s: %w", output, err)
	}

	bundle := s.Bundle()
	result := StitchResult{
		OutputFile:     output,
		ImageCount:     len(paths),
		CanvasWidth:    canvas.Width,
		CanvasHeight:   canvas.Height,
		Projection:     bundle.Proj.String(),
		HFactor:        s.HFactor(),
		IdentityIndex:  bundle.IdentityIdx,
		ProcessingTime: time.Since(start),
	}
	for i := range bundle.Components {
		result.Transforms = append(result.Transforms, TransformRecord{
			ImagePath:  paths[i],
			Index:      i,
			Homography: bundle.Components[i].Homo.Cells(),
		})
	}

	logger.Info("stitch completed",
		"output", output,
		"canvas", fmt.Sprintf("%dx%d", canvas.Width, canvas.Height),
		"projection", result.Projection,
		"hfactor", result.HFactor,
		"duration_ms", result.ProcessingTime.Milliseconds(),
	)
	return result, nil
}

func resolvePano(cfg *config.Config, req StitchRequest) bool {
	if req.Pano != nil {
		return *req.Pano
	}
	return cfg.Stitch.Pano
}

func buildStitcher(cfg *config.Config, req StitchRequest, logger *slog.Logger) (stitch.Config, stitch.Options) {
	sc := stitch.DefaultConfig()
	sc.Pano = resolvePano(cfg, req)
	sc.Straighten = cfg.Stitch.Straighten || req.Straighten
	sc.AllPairs = cfg.Stitch.AllPairs
	sc.Workers = cfg.Processing.Workers

	projection := cfg.Stitch.Projection
	if req.Projection != "" {
		projection = req.Projection
	}
	switch projection {
	case "flat":
		sc.Projection = stitch.ProjectionChoiceFlat
	case "cylindrical":
		sc.Projection = stitch.ProjectionChoiceCylin
	default:
		sc.Projection = stitch.ProjectionAuto
	}

	if req.SlopePlain > 0 {
		sc.SlopePlain = req.SlopePlain
	} else if cfg.Stitch.SlopePlain > 0 {
		sc.SlopePlain = cfg.Stitch.SlopePlain
	}

	detector := feature.NewHarrisDetector(cfg.Stitch.Detector.MaxFeatures)
	matcher := feature.NewBruteForceMatcher()
	if cfg.Stitch.Detector.MatchRatio > 0 {
		matcher.Ratio = cfg.Stitch.Detector.MatchRatio
	}
	fitter := transform.NewRANSACFitter()
	if cfg.Stitch.Fitter.Iterations > 0 {
		fitter.Iterations = cfg.Stitch.Fitter.Iterations
	}
	if cfg.Stitch.Fitter.Threshold > 0 {
		fitter.Threshold = cfg.Stitch.Fitter.Threshold
	}
	if cfg.Stitch.Fitter.MinInliers > 0 {
		fitter.MinInliers = cfg.Stitch.Fitter.MinInliers
	}
	if cfg.Stitch.Fitter.MinConfidence > 0 {
		fitter.MinConfidence = cfg.Stitch.Fitter.MinConfidence
	}

	return sc, stitch.Options{
		Detector: detector,
		Matcher:  matcher,
		Fitter:   fitter,
		Log:      logger,
	}
}

// isDirectory checks if a path is an existing directory
func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
