// Package stitch assembles an ordered sequence of overlapping images
// into one panorama: it chains pairwise homographies into per-image
// transforms anchored at a reference image, searches for the
// cylindrical focal factor in panorama mode, and renders the blended
// canvas.
package stitch

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/golang/geo/r2"

	"panstitch/internal/blend"
	"panstitch/internal/feature"
	"panstitch/internal/imgio"
	"panstitch/internal/transform"
)

// ProjectionChoice configures the output projection. Auto keeps the
// historical behavior: flat for panorama mode (images are already
// cylinder-warped) and cylindrical for the planar chain.
type ProjectionChoice string

const (
	ProjectionAuto        ProjectionChoice = "auto"
	ProjectionChoiceFlat  ProjectionChoice = "flat"
	ProjectionChoiceCylin ProjectionChoice = "cylindrical"
)

// Config carries the stitcher tuning knobs.
type Config struct {
	// Pano enables cylindrical panorama mode with the focal-factor
	// search. Off means a planar chain over consecutive pairs.
	Pano bool
	// Projection overrides the output projection; ProjectionAuto keeps
	// the per-mode default.
	Projection ProjectionChoice
	// SlopePlain is the early-exit threshold for the factor search.
	SlopePlain float64
	// Straighten shears the planar chain so the first and last image
	// centers share a y coordinate.
	Straighten bool
	// AllPairs additionally matches every image pair before the
	// consecutive alignment in planar mode; every consecutive pair is
	// still required and the chain uses only those. Panorama mode
	// ignores it. Not part of the core contract; off by default.
	AllPairs bool
	// Workers bounds parallel loops; zero means GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the usual tuning.
func DefaultConfig() Config {
	return Config{
		Projection: ProjectionAuto,
		SlopePlain: 1e-2,
	}
}

// Options holds the collaborators the core consumes.
type Options struct {
	Detector feature.Detector
	Matcher  feature.Matcher
	Fitter   transform.Fitter
	Blender  blend.Blender
	Log      *slog.Logger
}

// Stitcher runs one assembly over a fixed image list. It works on its
// own slice of image references; in panorama mode warped copies replace
// them and the caller's images stay untouched.
type Stitcher struct {
	cfg  Config
	opts Options
	log  *slog.Logger

	imgs    []*imgio.Image
	feats   [][]feature.Feature
	graph   *Graph
	bundle  Bundle
	hfactor float64
}

// New prepares a stitcher over imgs. Collaborators left nil in opts get
// the production defaults.
func New(imgs []*imgio.Image, cfg Config, opts Options) *Stitcher {
	if opts.Detector == nil {
		opts.Detector = feature.NewHarrisDetector(0)
	}
	if opts.Matcher == nil {
		opts.Matcher = feature.NewBruteForceMatcher()
	}
	if opts.Fitter == nil {
		opts.Fitter = transform.NewRANSACFitter()
	}
	if opts.Blender == nil {
		opts.Blender = blend.NewLinear()
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.DiscardHandler)
	}
	if cfg.SlopePlain <= 0 {
		cfg.SlopePlain = 1e-2
	}
	own := make([]*imgio.Image, len(imgs))
	copy(own, imgs)
	return &Stitcher{
		cfg:   cfg,
		opts:  opts,
		log:   opts.Log,
		imgs:  own,
		feats: make([][]feature.Feature, len(imgs)),
		graph: NewGraph(len(imgs)),
	}
}

// Build runs the full pipeline and returns the blended canvas.
func (s *Stitcher) Build() (*imgio.Image, error) {
	if len(s.imgs) == 0 {
		return nil, ErrDegenerateInput
	}
	s.calcFeatures()
	if len(s.imgs) > 1 && s.allFeaturesEmpty() {
		return nil, ErrDegenerateInput
	}

	if s.cfg.Pano {
		if err := s.buildBundleWarp(); err != nil {
			return nil, err
		}
		s.bundle.Proj = ProjectionFlat
	} else {
		if len(s.imgs) > 1 {
			if s.cfg.AllPairs {
				if err := s.pairwiseMatch(); err != nil {
					return nil, err
				}
			}
			if err := s.assumePanoPairwise(); err != nil {
				return nil, err
			}
		}
		if err := s.buildLinearSimple(); err != nil {
			return nil, err
		}
		s.bundle.Proj = ProjectionCylindrical
		if s.cfg.Straighten && len(s.imgs) > 1 {
			if err := s.straightenSimple(); err != nil {
				return nil, err
			}
		}
	}

	switch s.cfg.Projection {
	case ProjectionChoiceFlat:
		s.bundle.Proj = ProjectionFlat
	case ProjectionChoiceCylin:
		s.bundle.Proj = ProjectionCylindrical
	}
	s.log.Debug("projection selected", "method", s.bundle.Proj.String())

	s.updateProjRange()
	return s.render()
}

// Bundle exposes the assembled transforms after Build.
func (s *Stitcher) Bundle() *Bundle { return &s.bundle }

// HFactor returns the chosen focal factor (1 outside panorama mode).
func (s *Stitcher) HFactor() float64 {
	if s.hfactor == 0 {
		return 1
	}
	return s.hfactor
}

// calcFeatures detects features for every image in parallel and
// re-centers their coordinates around the image center, the frame all
// homographies act in.
func (s *Stitcher) calcFeatures() {
	s.parallelEach(len(s.imgs), func(k int) {
		img := s.imgs[k]
		feats := s.opts.Detector.Detect(img)
		half := r2.Point{X: float64(img.Width) / 2, Y: float64(img.Height) / 2}
		for i := range feats {
			feats[i].Pos = feats[i].Pos.Sub(half)
		}
		s.feats[k] = feats
	})
	for k := range s.feats {
		s.log.Debug("features detected", "image", k, "count", len(s.feats[k]))
	}
}

func (s *Stitcher) allFeaturesEmpty() bool {
	for _, f := range s.feats {
		if len(f) > 0 {
			return false
		}
	}
	return true
}

// assumePanoPairwise aligns every consecutive pair (including the
// wrap-around pair) under the assumption that the inputs are an ordered
// sweep. Any failure is fatal: a missing adjacency means the input is
// not a panorama.
func (s *Stitcher) assumePanoPairwise() error {
	n := len(s.imgs)
	for i := 0; i < n; i++ {
		next := (i + 1) % n
		if next == i || s.graph.Has(i, next) {
			continue
		}
		pairs := s.opts.Matcher.Match(s.feats[i], s.feats[next])
		info, ok := s.opts.Fitter.Fit(s.feats[i], s.feats[next], pairs)
		if !ok {
			return &MatchError{A: i, B: next}
		}
		s.log.Debug("pair aligned", "a", i, "b", next,
			"inliers", info.Inliers, "confidence", info.Confidence)
		if err := s.graph.AddEdge(i, next, info); err != nil {
			return err
		}
	}
	return nil
}

// pairwiseMatch tries every unordered pair and records the edges that
// fit. Failures only omit the edge.
func (s *Stitcher) pairwiseMatch() error {
	n := len(s.imgs)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs := s.opts.Matcher.Match(s.feats[i], s.feats[j])
			info, ok := s.opts.Fitter.Fit(s.feats[i], s.feats[j], pairs)
			if !ok {
				continue
			}
			s.log.Debug("connection found", "a", i, "b", j,
				"inliers", info.Inliers, "confidence", info.Confidence)
			if err := s.graph.AddEdge(i, j, info); err != nil {
				return err
			}
		}
	}
	return nil
}

// parallelEach runs fn over [0, n) with scatter-write discipline: each
// index owns its output slot, so no locking and a deterministic result.
func (s *Stitcher) parallelEach(n int, fn func(i int)) {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(start int) {
			defer wg.Done()
			for i := start; i < n; i += workers {
				fn(i)
			}
		}(w)
	}
	wg.Wait()
}
