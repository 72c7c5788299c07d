package kernels

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestLinearPoseRecoversKnownCamera(t *testing.T) {
	trueP := mat.NewDense(3, 4, []float64{
		1, 0.1, 0, 0.5,
		0, 1, 0.05, -0.2,
		0, 0, 1, 0,
	})

	points := [][4]float64{
		{0, 0, 5, 1}, {1, 0, 6, 1}, {0, 1, 5.5, 1}, {1, 1, 6.5, 1},
		{-1, 0.5, 7, 1}, {0.5, -1, 4.5, 1}, {2, 1, 8, 1},
	}

	pixels := make([]Vec2, len(points))
	pts4 := make([]Point4, len(points))
	for i, p := range points {
		pixels[i] = projectPoint(trueP, p)
		pts4[i] = mat.NewVecDense(4, []float64{p[0], p[1], p[2], p[3]})
	}

	solver := NewLinearPoseSolver()
	if !solver.ProcessHomogeneous(pixels, pts4) {
		t.Fatalf("pose solve reported failure on a well-conditioned configuration")
	}

	got := solver.Projective()

	// The recovered matrix is defined up to scale; normalize both by the
	// bottom-right-most nonzero convention (here, row 2's first nonzero,
	// P[2][2] = 1 in trueP) before comparing.
	scale := got.At(2, 2)
	if scale == 0 {
		t.Fatalf("degenerate recovered camera: P[2][2] == 0")
	}

	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			gotVal := got.At(r, c) / scale
			if math.Abs(gotVal-trueP.At(r, c)) > 1e-4 {
				t.Fatalf("recovered camera differs at (%d,%d): got %f want %f", r, c, gotVal, trueP.At(r, c))
			}
		}
	}
}

func TestLinearPoseRejectsTooFewCorrespondences(t *testing.T) {
	solver := NewLinearPoseSolver()
	pixels := []Vec2{{X: 0, Y: 0}, {X: 1, Y: 1}}
	points := []Point4{mat.NewVecDense(4, []float64{0, 0, 1, 1}), mat.NewVecDense(4, []float64{1, 1, 1, 1})}
	if solver.ProcessHomogeneous(pixels, points) {
		t.Fatalf("expected failure with fewer than 6 correspondences")
	}
}
