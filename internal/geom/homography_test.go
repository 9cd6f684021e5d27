package geom

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r2"
)

func TestHomographyApplyTranslation(t *testing.T) {
	h := Identity()
	h[0][2] = 10
	h[1][2] = -4

	p := h.Trans2D(3, 5)
	if p.X != 13 || p.Y != 1 {
		t.Fatalf("expected (13, 1), got %v", p)
	}
}

func TestHomographyComposeOrder(t *testing.T) {
	// scale then translate: (h·g) applies g first.
	scale := Identity()
	scale[0][0], scale[1][1] = 2, 2
	trans := Identity()
	trans[0][2] = 10

	p := trans.Mul(scale).Trans2D(1, 1)
	if p.X != 12 || p.Y != 2 {
		t.Fatalf("expected (12, 2), got %v", p)
	}
	p = scale.Mul(trans).Trans2D(1, 1)
	if p.X != 22 || p.Y != 2 {
		t.Fatalf("expected (22, 2), got %v", p)
	}
}

func TestHomographyInverseRoundTrip(t *testing.T) {
	h := Homography{
		{1.02, 0.013, 35},
		{-0.008, 0.985, -12},
		{1e-5, -3e-5, 1},
	}
	inv, err := h.Inverse()
	if err != nil {
		t.Fatalf("inverse failed: %v", err)
	}

	for _, prod := range []Homography{h.Mul(inv), inv.Mul(h)} {
		id := Identity()
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				if math.Abs(prod[i][j]-id[i][j]) > 1e-9 {
					t.Fatalf("product not identity at (%d,%d): %v", i, j, prod)
				}
			}
		}
	}
}

func TestHomographyInverseSingular(t *testing.T) {
	var zero Homography
	if _, err := zero.Inverse(); !errors.Is(err, ErrSingular) {
		t.Fatalf("expected ErrSingular, got %v", err)
	}
}

func TestHomographyCellsRoundTrip(t *testing.T) {
	h := Homography{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	if got := FromCells(h.Cells()); got != h {
		t.Fatalf("cells round trip mismatch: %v", got)
	}
}

func TestVecNormalize(t *testing.T) {
	p := Vec{X: 10, Y: 20, Z: 2}.Normalize()
	if p.X != 5 || p.Y != 10 {
		t.Fatalf("expected (5, 10), got %v", p)
	}
	if !IsNaN(Vec{X: 1, Y: 1, Z: 0}.Normalize()) {
		t.Fatalf("expected NaN sentinel for point at infinity")
	}
}

func TestRectExtendAndUnion(t *testing.T) {
	r := EmptyRect()
	if !r.IsEmpty() {
		t.Fatalf("fresh rect should be empty")
	}
	r = r.ExtendPoint(r2.Point{X: 1, Y: 2}).ExtendPoint(r2.Point{X: -3, Y: 5})
	if r.Min.X != -3 || r.Min.Y != 2 || r.Max.X != 1 || r.Max.Y != 5 {
		t.Fatalf("unexpected bounds: %+v", r)
	}

	o := EmptyRect().ExtendPoint(r2.Point{X: 10, Y: -1})
	u := r.Union(o)
	if u.Min.Y != -1 || u.Max.X != 10 {
		t.Fatalf("unexpected union: %+v", u)
	}
	if u.Min.X > u.Max.X || u.Min.Y > u.Max.Y {
		t.Fatalf("union min exceeds max: %+v", u)
	}

	if !u.Contains(r2.Point{X: 0, Y: 0}) || u.Contains(r2.Point{X: 100, Y: 0}) {
		t.Fatalf("contains misbehaves: %+v", u)
	}
}
