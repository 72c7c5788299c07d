package kernels

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// LMBundleAdjuster refines a BAProblem's free camera matrices and 3D
// points by minimizing total reprojection error with a damped
// Gauss-Newton (Levenberg-Marquardt) iteration, per spec.md §6's
// projective bundle adjustment kernel.
//
// Parameters are the free (non-Fixed) views' 12 camera entries followed
// by every point's 4 homogeneous entries, concatenated into one vector.
// Views marked Fixed contribute no parameters and are held constant
// (in this pipeline only the seed view's identity camera, slot 0, is
// marked Fixed).
type LMBundleAdjuster struct {
	ftol, gtol    float64
	maxIterations int
}

// NewLMBundleAdjuster returns an LMBundleAdjuster with spec.md §6
// defaults; call Configure to override.
func NewLMBundleAdjuster() *LMBundleAdjuster {
	return &LMBundleAdjuster{ftol: 1e-8, gtol: 1e-8, maxIterations: 200}
}

// SetParameters implements BundleAdjuster. Present to satisfy the
// interface contract; LMBundleAdjuster takes its problem directly via
// Optimize and keeps no cross-call state, so this is a no-op.
func (a *LMBundleAdjuster) SetParameters(p *BAProblem) {}

// Configure implements BundleAdjuster.
func (a *LMBundleAdjuster) Configure(ftol, gtol float64, maxIterations int) {
	a.ftol = ftol
	a.gtol = gtol
	a.maxIterations = maxIterations
}

// Optimize implements BundleAdjuster.
func (a *LMBundleAdjuster) Optimize(p *BAProblem) bool {
	freeViews := make([]int, 0, len(p.Views))
	for i, v := range p.Views {
		if !v.Fixed {
			freeViews = append(freeViews, i)
		}
	}
	if len(freeViews) == 0 && len(p.Points) == 0 {
		return true
	}

	x := packParameters(p, freeViews)
	if x.Len() == 0 {
		return true
	}

	lambda := 1e-3
	prevCost := residualCost(p, residuals(p))
	converged := false

	for iter := 0; iter < a.maxIterations; iter++ {
		r := residuals(p)
		cost := residualCost(p, r)

		j := numericJacobian(p, freeViews, x)

		var jt mat.Dense
		jt.CloneFrom(j.T())

		var jtj mat.Dense
		jtj.Mul(&jt, j)

		var jtr mat.VecDense
		jtr.MulVec(&jt, r)

		n := x.Len()
		damped := mat.NewDense(n, n, nil)
		damped.CloneFrom(&jtj)
		for i := 0; i < n; i++ {
			damped.Set(i, i, damped.At(i, i)*(1+lambda))
		}

		var delta mat.VecDense
		if err := delta.SolveVec(damped, &jtr); err != nil {
			lambda *= 10
			if lambda > 1e12 {
				break
			}
			continue
		}

		trial := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			trial.SetVec(i, x.AtVec(i)-delta.AtVec(i))
		}

		trialProblem := cloneProblem(p)
		unpackParameters(trialProblem, freeViews, trial)
		trialCost := residualCost(trialProblem, residuals(trialProblem))

		if trialCost < cost {
			x = trial
			unpackParameters(p, freeViews, x)
			lambda = math.Max(lambda/10, 1e-12)

			if math.Abs(prevCost-trialCost) < a.ftol*math.Max(prevCost, 1) {
				prevCost = trialCost
				converged = true
				break
			}
			prevCost = trialCost

			if gtol(&jtr) < a.gtol {
				converged = true
				break
			}
		} else {
			lambda *= 10
			if lambda > 1e12 {
				break
			}
		}
	}

	// converged is only set on an explicit ftol/gtol break; running out
	// of iterations or hitting the lambda ceiling both leave it false, so
	// both non-convergent exits report failure to the caller.
	return converged
}

func gtol(jtr *mat.VecDense) float64 {
	var maxAbs float64
	for i := 0; i < jtr.Len(); i++ {
		v := math.Abs(jtr.AtVec(i))
		if v > maxAbs {
			maxAbs = v
		}
	}
	return maxAbs
}

// packParameters flattens the free views' camera entries and every
// point's homogeneous entries into one vector.
func packParameters(p *BAProblem, freeViews []int) *mat.VecDense {
	n := len(freeViews)*12 + len(p.Points)*4
	x := mat.NewVecDense(n, nil)

	idx := 0
	for _, vi := range freeViews {
		cam := p.Views[vi].Camera
		for r := 0; r < 3; r++ {
			for c := 0; c < 4; c++ {
				x.SetVec(idx, cam.At(r, c))
				idx++
			}
		}
	}
	for _, pt := range p.Points {
		for k := 0; k < 4; k++ {
			x.SetVec(idx, pt.AtVec(k))
			idx++
		}
	}

	return x
}

// unpackParameters writes x back into p's free views and points.
func unpackParameters(p *BAProblem, freeViews []int, x *mat.VecDense) {
	idx := 0
	for _, vi := range freeViews {
		cam := mat.NewDense(3, 4, nil)
		for r := 0; r < 3; r++ {
			for c := 0; c < 4; c++ {
				cam.Set(r, c, x.AtVec(idx))
				idx++
			}
		}
		p.Views[vi].Camera = cam
	}
	for i := range p.Points {
		pt := mat.NewVecDense(4, nil)
		for k := 0; k < 4; k++ {
			pt.SetVec(k, x.AtVec(idx))
			idx++
		}
		p.Points[i] = pt
	}
}

// residuals computes the stacked (x - x_hat, y - y_hat) reprojection
// residual vector over every observation.
func residuals(p *BAProblem) *mat.VecDense {
	r := mat.NewVecDense(2*len(p.Observations), nil)
	for i, o := range p.Observations {
		cam := p.Views[o.ViewSlot].Camera
		pt := p.Points[o.PointIndex]

		var proj mat.VecDense
		proj.MulVec(cam, pt)
		w := proj.AtVec(2)
		if w == 0 {
			w = 1e-9
		}
		u := proj.AtVec(0) / w
		v := proj.AtVec(1) / w

		r.SetVec(2*i, o.X-u)
		r.SetVec(2*i+1, o.Y-v)
	}
	return r
}

func residualCost(p *BAProblem, r *mat.VecDense) float64 {
	return mat.Dot(r, r)
}

// numericJacobian computes the Jacobian of residuals with respect to x
// via central differences. Bundle problems in this pipeline are small
// (a handful of views, hundreds of points at most) so a finite
// difference Jacobian trades some speed for not needing analytic
// derivatives of the projective reprojection w.r.t. every parameter.
func numericJacobian(p *BAProblem, freeViews []int, x *mat.VecDense) *mat.Dense {
	const eps = 1e-6

	m := 2 * len(p.Observations)
	n := x.Len()
	j := mat.NewDense(m, n, nil)

	base := residuals(p)
	_ = base

	for col := 0; col < n; col++ {
		orig := x.AtVec(col)

		xPlus := mat.NewVecDense(n, nil)
		xPlus.CopyVec(x)
		xPlus.SetVec(col, orig+eps)
		pPlus := cloneProblem(p)
		unpackParameters(pPlus, freeViews, xPlus)
		rPlus := residuals(pPlus)

		xMinus := mat.NewVecDense(n, nil)
		xMinus.CopyVec(x)
		xMinus.SetVec(col, orig-eps)
		pMinus := cloneProblem(p)
		unpackParameters(pMinus, freeViews, xMinus)
		rMinus := residuals(pMinus)

		for row := 0; row < m; row++ {
			j.Set(row, col, (rPlus.AtVec(row)-rMinus.AtVec(row))/(2*eps))
		}
	}

	return j
}

// cloneProblem makes a deep-enough copy for trial parameter evaluation:
// camera matrices and points are cloned, observations are shared
// read-only.
func cloneProblem(p *BAProblem) *BAProblem {
	out := &BAProblem{
		Views:        make([]BAView, len(p.Views)),
		Points:       make([]Point4, len(p.Points)),
		Observations: p.Observations,
	}
	for i, v := range p.Views {
		out.Views[i] = v
		if v.Camera != nil {
			var clone mat.Dense
			clone.CloneFrom(v.Camera)
			out.Views[i].Camera = &clone
		}
	}
	for i, pt := range p.Points {
		var clone mat.VecDense
		clone.CloneFromVec(pt)
		out.Points[i] = &clone
	}
	return out
}
