package transform

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"panstitch/internal/geom"
)

// estimateDLT computes the homography mapping src[i] onto dst[i] using
// the normalized direct linear transform. Works for the minimal 4-point
// sample and for overdetermined inlier sets alike.
func estimateDLT(src, dst []r2.Point) (geom.Homography, error) {
	n := len(src)
	if n < 4 || len(dst) != n {
		return geom.Homography{}, fmt.Errorf("transform: need at least 4 point pairs, got %d", n)
	}

	tSrc, nSrc := normalize(src)
	tDst, nDst := normalize(dst)

	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y := nSrc[i].X, nSrc[i].Y
		u, v := nDst[i].X, nDst[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return geom.Homography{}, fmt.Errorf("transform: SVD failed")
	}
	var vt mat.Dense
	svd.VTo(&vt)

	var hn geom.Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			hn[i][j] = vt.At(3*i+j, 8)
		}
	}

	// Undo the normalization: H = Tdst⁻¹ · Hn · Tsrc.
	tDstInv, err := tDst.Inverse()
	if err != nil {
		return geom.Homography{}, err
	}
	h := tDstInv.Mul(hn).Mul(tSrc)
	if math.Abs(h[2][2]) < 1e-12 {
		return geom.Homography{}, fmt.Errorf("transform: degenerate homography")
	}
	scale := h[2][2]
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h[i][j] /= scale
		}
	}
	return h, nil
}

// normalize translates the centroid to the origin and scales the mean
// distance to sqrt(2), the usual Hartley conditioning.
func normalize(pts []r2.Point) (geom.Homography, []r2.Point) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	var meanDist float64
	for _, p := range pts {
		meanDist += math.Hypot(p.X-cx, p.Y-cy)
	}
	meanDist /= float64(len(pts))
	scale := 1.0
	if meanDist > 1e-12 {
		scale = math.Sqrt2 / meanDist
	}

	t := geom.Homography{
		{scale, 0, -scale * cx},
		{0, scale, -scale * cy},
		{0, 0, 1},
	}
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = r2.Point{X: scale * (p.X - cx), Y: scale * (p.Y - cy)}
	}
	return t, out
}
