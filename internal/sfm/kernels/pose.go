package kernels

import "gonum.org/v1/gonum/mat"

// LinearPoseSolver estimates a 3x4 projective camera matrix from known
// homogeneous 3D points and their 2D pixel observations via the direct
// linear transform (the "linear pose from homogeneous points" kernel of
// spec.md §6).
type LinearPoseSolver struct {
	p CameraMatrix
}

// NewLinearPoseSolver returns a LinearPoseSolver.
func NewLinearPoseSolver() *LinearPoseSolver { return &LinearPoseSolver{} }

// ProcessHomogeneous implements PoseSolver. Each correspondence
// contributes two rows to a 2N x 12 system in the camera matrix's 12
// entries (row-major); the solution is the matrix's null vector reshaped
// into 3x4.
func (s *LinearPoseSolver) ProcessHomogeneous(pixels []Vec2, points []Point4) bool {
	n := len(pixels)
	if n != len(points) || n < 6 {
		return false
	}

	a := mat.NewDense(2*n, 12, nil)
	for i, px := range pixels {
		X := points[i]
		x0, x1, x2, x3 := X.AtVec(0), X.AtVec(1), X.AtVec(2), X.AtVec(3)

		// Row for x: x3*p0j... Standard DLT resectioning equations:
		//   [ X^T  0^T  -x*X^T ] p = 0
		//   [ 0^T  X^T  -y*X^T ] p = 0
		// with p the row-major-flattened 3x4 camera matrix.
		row0 := 2 * i
		row1 := 2*i + 1
		a.Set(row0, 0, x0)
		a.Set(row0, 1, x1)
		a.Set(row0, 2, x2)
		a.Set(row0, 3, x3)
		a.Set(row0, 8, -px.X*x0)
		a.Set(row0, 9, -px.X*x1)
		a.Set(row0, 10, -px.X*x2)
		a.Set(row0, 11, -px.X*x3)

		a.Set(row1, 4, x0)
		a.Set(row1, 5, x1)
		a.Set(row1, 6, x2)
		a.Set(row1, 7, x3)
		a.Set(row1, 8, -px.Y*x0)
		a.Set(row1, 9, -px.Y*x1)
		a.Set(row1, 10, -px.Y*x2)
		a.Set(row1, 11, -px.Y*x3)
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return false
	}
	var v mat.Dense
	svd.VTo(&v)
	sv := svd.Values(nil)
	last := len(sv) - 1

	p := mat.NewDense(3, 4, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			p.Set(r, c, v.At(r*4+c, last))
		}
	}
	s.p = p

	return true
}

// Projective implements PoseSolver.
func (s *LinearPoseSolver) Projective() CameraMatrix {
	return s.p
}
