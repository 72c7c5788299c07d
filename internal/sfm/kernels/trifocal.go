package kernels

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// RansacTrifocalConfig configures RansacTrifocalFitter. Maps to spec.md
// §6's ransac.maxIterations / ransac.inlierThreshold knobs.
type RansacTrifocalConfig struct {
	MaxIterations   int
	InlierThreshold float64 // pixels
	Seed            int64
}

// DefaultRansacTrifocalConfig returns spec.md §6's documented defaults.
func DefaultRansacTrifocalConfig() RansacTrifocalConfig {
	return RansacTrifocalConfig{MaxIterations: 500, InlierThreshold: 1}
}

const trifocalMinSample = 7

// RansacTrifocalFitter robustly fits a trifocal tensor by repeatedly
// drawing minimal samples, solving the linear trifocal equations, and
// keeping the model with the most inliers under a pixel reprojection
// threshold (approximated here via the algebraic trilinearity residual
// of the fitted tensor, since full reprojection requires camera
// extraction).
type RansacTrifocalFitter struct {
	cfg RansacTrifocalConfig
	rng *rand.Rand

	model   Tensor
	inliers []TripleObs
	inIdx   []int
	ok      bool
}

// NewRansacTrifocalFitter returns a RansacTrifocalFitter.
func NewRansacTrifocalFitter(cfg RansacTrifocalConfig) *RansacTrifocalFitter {
	return &RansacTrifocalFitter{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Process implements TrifocalFitter.
func (f *RansacTrifocalFitter) Process(obs []TripleObs) bool {
	f.ok = false
	if len(obs) < trifocalMinSample {
		return false
	}

	bestScore := -1
	var bestModel Tensor
	var bestInliers []TripleObs
	var bestIdx []int

	iters := f.cfg.MaxIterations
	if iters <= 0 {
		iters = 1
	}

	for iter := 0; iter < iters; iter++ {
		sampleIdx := f.sample(len(obs))
		sample := make([]TripleObs, len(sampleIdx))
		for i, idx := range sampleIdx {
			sample[i] = obs[idx]
		}

		model, ok := fitLinearTrifocal(sample)
		if !ok {
			continue
		}

		inliers, idx := scoreInliers(model, obs, f.cfg.InlierThreshold)
		if len(inliers) > bestScore {
			bestScore = len(inliers)
			bestModel = model
			bestInliers = inliers
			bestIdx = idx
		}
	}

	if bestScore < trifocalMinSample {
		return false
	}

	f.model = bestModel
	f.inliers = bestInliers
	f.inIdx = bestIdx
	f.ok = true

	return true
}

// ModelParameters implements TrifocalFitter.
func (f *RansacTrifocalFitter) ModelParameters() Tensor { return f.model }

// MatchSet implements TrifocalFitter.
func (f *RansacTrifocalFitter) MatchSet() []TripleObs { return f.inliers }

// InputIndex implements TrifocalFitter.
func (f *RansacTrifocalFitter) InputIndex(pos int) int { return f.inIdx[pos] }

// sample draws trifocalMinSample distinct indices in [0, n).
func (f *RansacTrifocalFitter) sample(n int) []int {
	if n <= trifocalMinSample {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	seen := make(map[int]bool, trifocalMinSample)
	out := make([]int, 0, trifocalMinSample)
	for len(out) < trifocalMinSample {
		i := f.rng.Intn(n)
		if seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out
}

// fitLinearTrifocal solves the linear trifocal tensor equations from a
// minimal (or over-determined) set of triple correspondences.
//
// For each correspondence (x, x', x''), the tensor T satisfies the
// trilinearity [x']_x (sum_i x_i T_i) [x'']_x = 0 (a 3x3 zero matrix,
// only 4 of the 9 entries independent; all 9 are used here as rows of
// the design matrix — the extra rows are linear combinations of the
// independent ones and do not change the null space). T is recovered as
// the null vector of the stacked design matrix, flattened in (i, row,
// col) order and reshaped back into the 3x3x3 tensor.
func fitLinearTrifocal(obs []TripleObs) (Tensor, bool) {
	var zero Tensor
	if len(obs) < 7 {
		return zero, false
	}

	rows := len(obs) * 9
	a := mat.NewDense(rows, 27, nil)

	rowN := 0
	for _, o := range obs {
		x := [3]float64{o.P1.X, o.P1.Y, 1}
		xp := skew([3]float64{o.P2.X, o.P2.Y, 1})
		xpp := skew([3]float64{o.P3.X, o.P3.Y, 1})

		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				for i := 0; i < 3; i++ {
					for ta := 0; ta < 3; ta++ {
						for tb := 0; tb < 3; tb++ {
							coeff := x[i] * xp[r][ta] * xpp[tb][c]
							col := i*9 + ta*3 + tb
							a.Set(rowN, col, a.At(rowN, col)+coeff)
						}
					}
				}
				rowN++
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return zero, false
	}
	var v mat.Dense
	svd.VTo(&v)
	sv := svd.Values(nil)
	last := len(sv) - 1

	var t Tensor
	for i := 0; i < 3; i++ {
		for ta := 0; ta < 3; ta++ {
			for tb := 0; tb < 3; tb++ {
				t[i][ta][tb] = v.At(i*9+ta*3+tb, last)
			}
		}
	}

	return t, true
}

// skew returns the 3x3 skew-symmetric cross-product matrix of v.
func skew(v [3]float64) [3][3]float64 {
	return [3][3]float64{
		{0, -v[2], v[1]},
		{v[2], 0, -v[0]},
		{-v[1], v[0], 0},
	}
}

// scoreInliers evaluates the trilinearity residual of every observation
// against model and keeps those under threshold (in pixel-comparable
// units — the residual is a normalized algebraic error, not a true
// reprojection distance, since that requires extracted cameras).
func scoreInliers(model Tensor, obs []TripleObs, threshold float64) ([]TripleObs, []int) {
	inliers := make([]TripleObs, 0, len(obs))
	idx := make([]int, 0, len(obs))

	for i, o := range obs {
		if trilinearResidual(model, o) < threshold {
			inliers = append(inliers, o)
			idx = append(idx, i)
		}
	}

	return inliers, idx
}

// trilinearResidual computes the Frobenius norm of [x']_x (sum x_i T_i) [x'']_x.
func trilinearResidual(t Tensor, o TripleObs) float64 {
	x := [3]float64{o.P1.X, o.P1.Y, 1}
	xp := skew([3]float64{o.P2.X, o.P2.Y, 1})
	xpp := skew([3]float64{o.P3.X, o.P3.Y, 1})

	var m [3][3]float64
	for i := 0; i < 3; i++ {
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				m[a][b] += x[i] * t[i][a][b]
			}
		}
	}

	var sumSq float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			var v float64
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					v += xp[r][a] * m[a][b] * xpp[b][c]
				}
			}
			sumSq += v * v
		}
	}

	return math.Sqrt(sumSq)
}
