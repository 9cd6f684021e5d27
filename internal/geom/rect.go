package geom

import (
	"math"

	"github.com/golang/geo/r2"
)

// Rect is an axis-aligned bounding box. Start from EmptyRect to
// accumulate points; the zero Rect is not empty but the degenerate box
// at the origin.
type Rect struct {
	Min, Max r2.Point
	empty    bool
}

// EmptyRect returns a rect that extends to the first point added.
func EmptyRect() Rect {
	return Rect{
		Min:   r2.Point{X: math.Inf(1), Y: math.Inf(1)},
		Max:   r2.Point{X: math.Inf(-1), Y: math.Inf(-1)},
		empty: true,
	}
}

// IsEmpty reports whether the rect has absorbed no points.
func (r Rect) IsEmpty() bool { return r.empty }

// ExtendPoint grows the rect to contain p.
func (r Rect) ExtendPoint(p r2.Point) Rect {
	return Rect{
		Min:   r2.Point{X: math.Min(r.Min.X, p.X), Y: math.Min(r.Min.Y, p.Y)},
		Max:   r2.Point{X: math.Max(r.Max.X, p.X), Y: math.Max(r.Max.Y, p.Y)},
		empty: false,
	}
}

// Union grows the rect to contain o.
func (r Rect) Union(o Rect) Rect {
	if o.empty {
		return r
	}
	return r.ExtendPoint(o.Min).ExtendPoint(o.Max)
}

// Contains reports whether p lies inside the rect, inclusive of edges.
func (r Rect) Contains(p r2.Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }
