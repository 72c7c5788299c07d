package kernels

import "gonum.org/v1/gonum/mat"

// HZCameraExtractor recovers P2 and P3 from a trifocal tensor via the
// Hartley-Zisserman compatibility construction, with P1 = I implied
// (spec.md §4.3).
//
// Each slice T_i has a left null vector u_i and a right null vector v_i.
// The epipole e' is perpendicular to all three u_i, so stacking the u_i
// as rows of a 3x3 matrix, e' is (up to scale) that matrix's null
// vector; for a noisy tensor it is taken as the right-singular vector
// of the smallest singular value (the least-squares common
// perpendicular). The same construction over the v_i gives e''.
type HZCameraExtractor struct{}

// NewHZCameraExtractor returns an HZCameraExtractor.
func NewHZCameraExtractor() *HZCameraExtractor { return &HZCameraExtractor{} }

// Extract implements CameraExtractor.
func (HZCameraExtractor) Extract(t Tensor) (p2, p3 CameraMatrix, ok bool) {
	u := make([]*mat.VecDense, 3)
	v := make([]*mat.VecDense, 3)
	for i := 0; i < 3; i++ {
		slice := mat.NewDense(3, 3, nil)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				slice.Set(r, c, t[i][r][c])
			}
		}

		ui, ok1 := leftNullVector(slice)
		vi, ok2 := rightNullVector(slice)
		if !ok1 || !ok2 {
			return nil, nil, false
		}
		u[i] = ui
		v[i] = vi
	}

	eSrc := stackEpipoleDirection(u)
	eDst := stackEpipoleDirection(v)
	if eSrc == nil || eDst == nil {
		return nil, nil, false
	}

	p2 = buildP2(t, eSrc, eDst)
	p3 = buildP3(t, eSrc, eDst)

	return p2, p3, true
}

// stackEpipoleDirection stacks three 3-vectors as rows of a 3x3 matrix
// and returns the right-singular vector of the smallest singular value,
// the direction most nearly perpendicular to all three rows.
func stackEpipoleDirection(rows []*mat.VecDense) *mat.VecDense {
	m := mat.NewDense(3, 3, nil)
	for i, r := range rows {
		for c := 0; c < 3; c++ {
			m.Set(i, c, r.AtVec(c))
		}
	}

	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDFull) {
		return nil
	}
	var vmat mat.Dense
	svd.VTo(&vmat)

	e := mat.NewVecDense(3, nil)
	for r := 0; r < 3; r++ {
		e.SetVec(r, vmat.At(r, 2))
	}
	return e
}

// leftNullVector returns the left null vector of m (the null vector of
// m^T), via SVD.
func leftNullVector(m *mat.Dense) (*mat.VecDense, bool) {
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDFull) {
		return nil, false
	}
	var u mat.Dense
	svd.UTo(&u)
	sv := svd.Values(nil)
	last := len(sv) - 1

	out := mat.NewVecDense(3, nil)
	for r := 0; r < 3; r++ {
		out.SetVec(r, u.At(r, last))
	}
	return out, true
}

// rightNullVector returns the right null vector of m, via SVD.
func rightNullVector(m *mat.Dense) (*mat.VecDense, bool) {
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDFull) {
		return nil, false
	}
	var v mat.Dense
	svd.VTo(&v)
	sv := svd.Values(nil)
	last := len(sv) - 1

	out := mat.NewVecDense(3, nil)
	for r := 0; r < 3; r++ {
		out.SetVec(r, v.At(r, last))
	}
	return out, true
}

// buildP2 assembles P2 = [ [T1 e'', T2 e'', T3 e''] | e' ]: the left 3x3
// block is each slice applied to the second epipole, and the last
// column is the first epipole.
func buildP2(t Tensor, eSrc, eDst *mat.VecDense) CameraMatrix {
	p := mat.NewDense(3, 4, nil)
	for i := 0; i < 3; i++ {
		slice := mat.NewDense(3, 3, nil)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				slice.Set(r, c, t[i][r][c])
			}
		}
		var col mat.VecDense
		col.MulVec(slice, eDst)
		for r := 0; r < 3; r++ {
			p.Set(r, i, col.AtVec(r))
		}
	}
	for r := 0; r < 3; r++ {
		p.Set(r, 3, eSrc.AtVec(r))
	}
	return p
}

// buildP3 assembles P3 = [ (e''e''^T - I) [T1^T e', T2^T e', T3^T e'] | e'' ].
func buildP3(t Tensor, eSrc, eDst *mat.VecDense) CameraMatrix {
	var outer mat.Dense
	outer.Outer(1, eDst, eDst)
	var bracket mat.Dense
	bracket.CloneFrom(&outer)
	for i := 0; i < 3; i++ {
		bracket.Set(i, i, bracket.At(i, i)-1)
	}

	p := mat.NewDense(3, 4, nil)
	for i := 0; i < 3; i++ {
		slice := mat.NewDense(3, 3, nil)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				slice.Set(r, c, t[i][r][c])
			}
		}
		var tTe mat.VecDense
		tTe.MulVec(slice.T(), eSrc)

		var col mat.VecDense
		col.MulVec(&bracket, &tTe)
		for r := 0; r < 3; r++ {
			p.Set(r, i, col.AtVec(r))
		}
	}
	for r := 0; r < 3; r++ {
		p.Set(r, 3, eDst.AtVec(r))
	}

	return p
}
