package stitch

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r2"

	"panstitch/internal/feature"
	"panstitch/internal/geom"
	"panstitch/internal/imgio"
	"panstitch/internal/transform"
)

// solidIndexed fills an image with a flat color and encodes idx in the
// green channel so the stub collaborators can tell images apart.
func solidIndexed(idx, w, h int, r, b float32) *imgio.Image {
	img := imgio.New(w, h)
	g := float32(idx) / 16
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, r, g, b)
		}
	}
	return img
}

// centerDetector emits one feature at the image center carrying the
// image index (decoded from the green channel) in Response.
type centerDetector struct{}

func (centerDetector) Detect(img *imgio.Image) []feature.Feature {
	_, g, _ := img.At(0, 0)
	idx := math.Round(float64(g) * 16)
	return []feature.Feature{{
		Pos:      r2.Point{X: float64(img.Width) / 2, Y: float64(img.Height) / 2},
		Response: idx,
	}}
}

type trivialMatcher struct{}

func (trivialMatcher) Match(a, b []feature.Feature) [][2]int {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	return [][2]int{{0, 0}}
}

// indexFitter returns H_{a←b} as a pure translation proportional to
// the index distance of the two images. fail lists unordered pairs
// that produce no model.
type indexFitter struct {
	dx, dy float64
	fail   map[[2]int]bool
}

func (f *indexFitter) Fit(a, b []feature.Feature, _ [][2]int) (transform.MatchInfo, bool) {
	ia := int(a[0].Response)
	ib := int(b[0].Response)
	if f.fail[[2]int{ia, ib}] || f.fail[[2]int{ib, ia}] {
		return transform.MatchInfo{}, false
	}
	h := geom.Identity()
	h[0][2] = float64(ib-ia) * f.dx
	h[1][2] = float64(ib-ia) * f.dy
	return transform.MatchInfo{Homo: h, Inliers: 20, Confidence: 1}, true
}

func planarOptions(f transform.Fitter) Options {
	return Options{
		Detector: centerDetector{},
		Matcher:  trivialMatcher{},
		Fitter:   f,
	}
}

func TestTrivialSingleImage(t *testing.T) {
	img := solidIndexed(0, 100, 100, 1, 0)
	s := New([]*imgio.Image{img}, DefaultConfig(), planarOptions(&indexFitter{}))
	out, err := s.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// Width matches the input; the cylindrical projection stretches the
	// canvas vertically, with uncovered bow-tie wings left as sentinel.
	if out.Width != 100 {
		t.Fatalf("expected width 100, got %d", out.Width)
	}
	if out.Height < 100 || out.Height > 142 {
		t.Fatalf("unexpected canvas height %d", out.Height)
	}
	b := s.Bundle()
	if b.IdentityIdx != 0 {
		t.Fatalf("expected identity index 0, got %d", b.IdentityIdx)
	}
	if b.Proj != ProjectionCylindrical {
		t.Fatalf("expected cylindrical projection, got %s", b.Proj)
	}
	if b.Components[0].Homo != geom.Identity() {
		t.Fatalf("expected identity homography, got %v", b.Components[0].Homo)
	}

	covered := 0
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			r, _, _ := out.At(x, y)
			if r == imgio.NoColor {
				continue
			}
			covered++
			if math.Abs(float64(r)-1) > 1e-6 {
				t.Fatalf("pixel (%d,%d) not red: %f", x, y, r)
			}
		}
	}
	if covered < out.Width*out.Height/2 {
		t.Fatalf("expected most of the canvas painted, got %d of %d", covered, out.Width*out.Height)
	}
	if r, _, _ := out.At(out.Width/2, out.Height/3); r != 1 {
		t.Fatalf("expected red at the canvas core")
	}
}

func TestNoImages(t *testing.T) {
	s := New(nil, DefaultConfig(), planarOptions(&indexFitter{}))
	if _, err := s.Build(); !errors.Is(err, ErrDegenerateInput) {
		t.Fatalf("expected ErrDegenerateInput, got %v", err)
	}
}

func buildTwoImagePlanar(t *testing.T) (*Stitcher, *imgio.Image, []*imgio.Image) {
	t.Helper()
	left := solidIndexed(0, 200, 200, 1, 0)  // red
	right := solidIndexed(1, 200, 200, 0, 1) // blue
	imgs := []*imgio.Image{left, right}

	cfg := DefaultConfig()
	cfg.Projection = ProjectionChoiceFlat
	s := New(imgs, cfg, planarOptions(&indexFitter{dx: 150}))
	out, err := s.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return s, out, imgs
}

func TestTwoImagePlanarTranslation(t *testing.T) {
	s, out, imgs := buildTwoImagePlanar(t)

	if out.Width != 350 || out.Height != 200 {
		t.Fatalf("expected 350x200 canvas, got %dx%d", out.Width, out.Height)
	}
	if s.Bundle().IdentityIdx != 1 {
		t.Fatalf("expected identity index 1, got %d", s.Bundle().IdentityIdx)
	}

	// Far left of the canvas is painted exclusively by the left image;
	// far right exclusively by the right image.
	wantLeftR, wantLeftG, wantLeftB := imgs[0].At(25, 100)
	r, g, b := out.At(25, 100)
	if r != wantLeftR || g != wantLeftG || b != wantLeftB {
		t.Fatalf("canvas (25,100) = (%f,%f,%f), want left image pixel (%f,%f,%f)", r, g, b, wantLeftR, wantLeftG, wantLeftB)
	}

	wantRightR, wantRightG, wantRightB := imgs[1].At(125, 100)
	r, g, b = out.At(275, 100)
	if r != wantRightR || g != wantRightG || b != wantRightB {
		t.Fatalf("canvas (275,100) = (%f,%f,%f), want right image pixel (%f,%f,%f)", r, g, b, wantRightR, wantRightG, wantRightB)
	}
}

func TestGraphSymmetry(t *testing.T) {
	imgs := []*imgio.Image{
		solidIndexed(0, 100, 100, 1, 0),
		solidIndexed(1, 100, 100, 0, 1),
		solidIndexed(2, 100, 100, 0.5, 0.5),
	}
	cfg := DefaultConfig()
	cfg.Projection = ProjectionChoiceFlat
	s := New(imgs, cfg, planarOptions(&indexFitter{dx: 60, dy: 2}))
	if _, err := s.Build(); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	for a := 0; a < 3; a++ {
		for _, b := range s.graph.Neighbors(a) {
			found := false
			for _, back := range s.graph.Neighbors(b) {
				if back == a {
					found = true
				}
			}
			if !found {
				t.Fatalf("adjacency asymmetric between %d and %d", a, b)
			}
			fwd, ok1 := s.graph.Match(a, b)
			rev, ok2 := s.graph.Match(b, a)
			if !ok1 || !ok2 {
				t.Fatalf("pairwise table missing (%d,%d)", a, b)
			}
			prod := fwd.Homo.Mul(rev.Homo)
			if frobeniusDistance(prod, geom.Identity()) > 1e-6 {
				t.Fatalf("H(%d,%d)·H(%d,%d) is not identity: %v", a, b, b, a, prod)
			}
			if fwd.Inliers != rev.Inliers || fwd.Confidence != rev.Confidence {
				t.Fatalf("scalars differ across edge directions")
			}
		}
	}
}

func TestIdentityAnchorAndChainConsistency(t *testing.T) {
	n := 5
	imgs := make([]*imgio.Image, n)
	for i := range imgs {
		imgs[i] = solidIndexed(i, 100, 100, 0.3, 0.7)
	}
	cfg := DefaultConfig()
	cfg.Projection = ProjectionChoiceFlat
	s := New(imgs, cfg, planarOptions(&indexFitter{dx: 60, dy: 3}))
	if _, err := s.Build(); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	b := s.Bundle()
	if b.IdentityIdx != n/2 {
		t.Fatalf("expected identity at %d, got %d", n/2, b.IdentityIdx)
	}
	if b.Components[b.IdentityIdx].Homo != geom.Identity() {
		t.Fatalf("identity component is not the identity matrix")
	}

	for k := range b.Components {
		prod := b.Components[k].HomoInv.Mul(b.Components[k].Homo)
		if frobeniusDistance(prod, geom.Identity()) > 1e-9 {
			t.Fatalf("homo_inv·homo not identity for component %d", k)
		}
	}

	// homo[k+1] · H_{k+1←k} ≈ homo[k] for all interior k.
	for k := 0; k+1 < n; k++ {
		info, ok := s.graph.Match(k+1, k)
		if !ok {
			t.Fatalf("missing pairwise match (%d,%d)", k+1, k)
		}
		got := b.Components[k+1].Homo.Mul(info.Homo)
		if frobeniusDistance(got, b.Components[k].Homo) > 1e-9 {
			t.Fatalf("chain inconsistent at %d", k)
		}
	}
}

func TestRangeContainment(t *testing.T) {
	s, _, imgs := buildTwoImagePlanar(t)
	b := s.Bundle()

	id := imgs[b.IdentityIdx]
	refw, refh := float64(id.Width), float64(id.Height)
	for i := range b.Components {
		comp := b.Components[i]
		cx, cy := float64(imgs[i].Width)/2, float64(imgs[i].Height)/2
		for _, corner := range []r2.Point{
			{X: -cx, Y: -cy}, {X: cx, Y: -cy}, {X: -cx, Y: cy}, {X: cx, Y: cy},
		} {
			p := s.projectCorner(comp.Homo, corner, refw, refh)
			if !containsWithSlack(comp.Range, p) {
				t.Fatalf("component %d range %+v misses corner %v", i, comp.Range, p)
			}
		}
		if !containsWithSlack(b.ProjRange, comp.Range.Min) || !containsWithSlack(b.ProjRange, comp.Range.Max) {
			t.Fatalf("proj range does not contain component %d range", i)
		}
	}
}

func TestOutputSizeMonotonic(t *testing.T) {
	width := func(dx float64) int {
		imgs := []*imgio.Image{
			solidIndexed(0, 200, 200, 1, 0),
			solidIndexed(1, 200, 200, 0, 1),
		}
		cfg := DefaultConfig()
		cfg.Projection = ProjectionChoiceFlat
		s := New(imgs, cfg, planarOptions(&indexFitter{dx: dx}))
		out, err := s.Build()
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		return out.Width
	}

	if w100, w150 := width(100), width(150); w150 <= w100 {
		t.Fatalf("wider chain should widen the canvas: %d vs %d", w100, w150)
	}
}

func TestFailingPairIsFatal(t *testing.T) {
	imgs := []*imgio.Image{
		solidIndexed(0, 100, 100, 1, 0),
		solidIndexed(1, 100, 100, 0, 1),
	}
	cfg := DefaultConfig()
	cfg.Pano = true
	fitter := &indexFitter{dx: 60, fail: map[[2]int]bool{{0, 1}: true}}
	s := New(imgs, cfg, planarOptions(fitter))

	_, err := s.Build()
	var matchErr *MatchError
	if !errors.As(err, &matchErr) {
		t.Fatalf("expected MatchError, got %v", err)
	}
	if matchErr.A != 0 || matchErr.B != 1 {
		t.Fatalf("expected failure naming pair (0,1), got (%d,%d)", matchErr.A, matchErr.B)
	}
}

func TestStraightenLevelsChain(t *testing.T) {
	n := 5
	imgs := make([]*imgio.Image, n)
	for i := range imgs {
		imgs[i] = solidIndexed(i, 100, 100, 0.5, 0.5)
	}
	cfg := DefaultConfig()
	cfg.Projection = ProjectionChoiceFlat
	cfg.Straighten = true
	s := New(imgs, cfg, planarOptions(&indexFitter{dx: 80, dy: 5}))
	if _, err := s.Build(); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	b := s.Bundle()
	first := b.Components[0].Homo.Trans2D(0, 0)
	last := b.Components[n-1].Homo.Trans2D(0, 0)
	if math.Abs(first.Y-last.Y) >= 1 {
		t.Fatalf("straighten left %f pixels of vertical drift", math.Abs(first.Y-last.Y))
	}
}

func TestDeterministicOutput(t *testing.T) {
	build := func() *imgio.Image {
		imgs := []*imgio.Image{
			solidIndexed(0, 200, 200, 1, 0),
			solidIndexed(1, 200, 200, 0, 1),
			solidIndexed(2, 200, 200, 0.2, 0.9),
		}
		cfg := DefaultConfig()
		cfg.Projection = ProjectionChoiceFlat
		s := New(imgs, cfg, planarOptions(&indexFitter{dx: 120, dy: 4}))
		out, err := s.Build()
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		return out
	}

	a, b := build(), build()
	if a.Width != b.Width || a.Height != b.Height {
		t.Fatalf("canvas dimensions differ")
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("pixel buffer differs at %d", i)
		}
	}
}

func TestUncoveredPixelsKeepSentinel(t *testing.T) {
	imgs := []*imgio.Image{
		solidIndexed(0, 200, 200, 1, 0),
		solidIndexed(1, 200, 200, 0, 1),
	}
	cfg := DefaultConfig()
	cfg.Projection = ProjectionChoiceFlat
	s := New(imgs, cfg, planarOptions(&indexFitter{dx: 150, dy: 100}))
	out, err := s.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// With a diagonal offset the canvas has corners no image reaches.
	if r, _, _ := out.At(0, out.Height-1); r != imgio.NoColor {
		t.Fatalf("expected no-color sentinel in uncovered corner, got %f", r)
	}
	if r, _, _ := out.At(out.Width-1, 0); r != imgio.NoColor {
		t.Fatalf("expected no-color sentinel in uncovered corner, got %f", r)
	}
}

func frobeniusDistance(a, b geom.Homography) float64 {
	var sum float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := a[i][j] - b[i][j]
			sum += d * d
		}
	}
	return math.Sqrt(sum)
}

func containsWithSlack(r geom.Rect, p r2.Point) bool {
	const eps = 1e-6
	return p.X >= r.Min.X-eps && p.X <= r.Max.X+eps && p.Y >= r.Min.Y-eps && p.Y <= r.Max.Y+eps
}
