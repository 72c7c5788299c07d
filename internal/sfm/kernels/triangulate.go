package kernels

import "gonum.org/v1/gonum/mat"

// DLTTriangulator triangulates a homogeneous 3D point from N pixel
// observations via the direct linear transform: each view contributes
// two rows (x*P[2,:]-P[0,:], y*P[2,:]-P[1,:]) to a 2N x 4 system whose
// null vector is the point, extracted via SVD.
type DLTTriangulator struct{}

// NewDLTTriangulator returns a DLTTriangulator.
func NewDLTTriangulator() *DLTTriangulator { return &DLTTriangulator{} }

// Triangulate implements Triangulator.
func (t *DLTTriangulator) Triangulate(pixels []Vec2, cameras []CameraMatrix) (Point4, bool) {
	n := len(pixels)
	if n != len(cameras) || n < 2 {
		return nil, false
	}

	a := mat.NewDense(2*n, 4, nil)
	for i, px := range pixels {
		p := cameras[i]
		for col := 0; col < 4; col++ {
			row2 := p.At(2, col)
			a.Set(2*i, col, px.X*row2-p.At(0, col))
			a.Set(2*i+1, col, px.Y*row2-p.At(1, col))
		}
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return nil, false
	}
	var v mat.Dense
	svd.VTo(&v)
	sv := svd.Values(nil)

	// Null vector is the right-singular vector for the smallest
	// singular value, i.e. the last column of V (gonum's SVD orders
	// singular values descending).
	last := len(sv) - 1
	x := mat.NewVecDense(4, nil)
	for r := 0; r < 4; r++ {
		x.SetVec(r, v.At(r, last))
	}

	if x.AtVec(3) == 0 {
		// Point at infinity: a valid (if degenerate) homogeneous point,
		// not a failure by itself; caller decides whether that's usable.
		return x, true
	}

	return x, true
}
