package bundle

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/structure"
)

// recordingScaler tracks call order and scales/unscales by a fixed factor,
// so tests can assert the scale/optimize/unscale protocol runs in order and
// UndoScale always runs when ScaleSBA is set.
type recordingScaler struct {
	calls       []string
	scaleFactor float64
}

func (s *recordingScaler) ApplyScale(p *kernels.BAProblem) {
	s.calls = append(s.calls, "apply")
	for i := range p.Observations {
		p.Observations[i].X *= s.scaleFactor
		p.Observations[i].Y *= s.scaleFactor
	}
}

func (s *recordingScaler) UndoScale(p *kernels.BAProblem) {
	s.calls = append(s.calls, "undo")
	for i := range p.Observations {
		p.Observations[i].X /= s.scaleFactor
		p.Observations[i].Y /= s.scaleFactor
	}
}

func (s *recordingScaler) RemoveViewScale(viewSlot int, pIn kernels.CameraMatrix) kernels.CameraMatrix {
	s.calls = append(s.calls, "removeViewScale")
	return pIn
}

type recordingAdjuster struct {
	configured   bool
	optimizeCall bool
	succeed      bool
	mutatedPoint bool
}

func (a *recordingAdjuster) SetParameters(p *kernels.BAProblem) {}

func (a *recordingAdjuster) Configure(ftol, gtol float64, maxIterations int) {
	a.configured = true
}

func (a *recordingAdjuster) Optimize(p *kernels.BAProblem) bool {
	a.optimizeCall = true
	if len(p.Points) > 0 {
		p.Points[0].SetVec(0, p.Points[0].AtVec(0)+1)
		a.mutatedPoint = true
	}
	for i := range p.Views {
		if p.Views[i].Fixed {
			continue
		}
		// Perturb the free view's camera so fromBAProblem's write-back is observable.
		p.Views[i].Camera = mat.NewDense(3, 4, []float64{
			2, 0, 0, 0,
			0, 2, 0, 0,
			0, 0, 2, 0,
		})
	}
	return a.succeed
}

func newTwoViewStructure() *structure.SceneStructure {
	ss := structure.New(1)
	ss.InitPoints(1)
	ss.Points[0] = mat.NewVecDense(4, []float64{1, 2, 3, 1})
	_ = ss.RecordInlier(0, 0)
	ss.AddViewSlot(mat.NewDense(3, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
	}), 640, 480)
	return ss
}

func TestRunInvokesScaleOptimizeUnscaleInOrder(t *testing.T) {
	ss := newTwoViewStructure()
	obs := []kernels.BAObservation{
		{ViewSlot: 0, PointIndex: 0, X: 1, Y: 1},
		{ViewSlot: 1, PointIndex: 0, X: 2, Y: 2},
	}

	scaler := &recordingScaler{scaleFactor: 2}
	adjuster := &recordingAdjuster{succeed: true}

	err := Run(ss, obs, Config{FTol: 1e-8, GTol: 1e-8, MaxIterations: 10, ScaleSBA: true}, scaler, adjuster)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(scaler.calls) < 2 || scaler.calls[0] != "apply" || scaler.calls[len(scaler.calls)-1] != "undo" {
		t.Fatalf("expected apply first and undo last, got %v", scaler.calls)
	}
	if !adjuster.configured || !adjuster.optimizeCall {
		t.Fatalf("adjuster was not driven through Configure/Optimize")
	}
}

func TestRunSkipsScalerWhenDisabled(t *testing.T) {
	ss := newTwoViewStructure()
	obs := []kernels.BAObservation{{ViewSlot: 0, PointIndex: 0, X: 1, Y: 1}}

	scaler := &recordingScaler{scaleFactor: 2}
	adjuster := &recordingAdjuster{succeed: true}

	if err := Run(ss, obs, Config{MaxIterations: 10, ScaleSBA: false}, scaler, adjuster); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(scaler.calls) != 0 {
		t.Fatalf("expected scaler untouched when ScaleSBA is false, got %v", scaler.calls)
	}
}

func TestRunReturnsNonConvergenceButStillWritesBack(t *testing.T) {
	ss := newTwoViewStructure()
	obs := []kernels.BAObservation{{ViewSlot: 0, PointIndex: 0, X: 1, Y: 1}}

	scaler := &recordingScaler{scaleFactor: 1}
	adjuster := &recordingAdjuster{succeed: false}

	err := Run(ss, obs, Config{MaxIterations: 10, ScaleSBA: true}, scaler, adjuster)
	if err == nil {
		t.Fatalf("expected ErrNonConvergence")
	}
	if !adjuster.mutatedPoint {
		t.Fatalf("adjuster never ran")
	}
	// fromBAProblem must still have copied the (non-converged) point back.
	if ss.Points[0].AtVec(0) != 2 {
		t.Fatalf("expected point written back even on non-convergence, got %v", ss.Points[0].AtVec(0))
	}
}

func TestRunPreservesFixedSeedCamera(t *testing.T) {
	ss := newTwoViewStructure()
	obs := []kernels.BAObservation{{ViewSlot: 0, PointIndex: 0, X: 1, Y: 1}}

	scaler := &recordingScaler{scaleFactor: 1}
	adjuster := &recordingAdjuster{succeed: true}

	if err := Run(ss, obs, Config{MaxIterations: 10, ScaleSBA: false}, scaler, adjuster); err != nil {
		t.Fatalf("Run: %v", err)
	}

	seed := ss.Views[0].Camera
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			want := 0.0
			if r == c {
				want = 1.0
			}
			if seed.At(r, c) != want {
				t.Fatalf("seed camera mutated at (%d,%d): got %f want %f", r, c, seed.At(r, c), want)
			}
		}
	}

	// The free view (slot 1) should reflect the adjuster's write.
	free := ss.Views[1].Camera
	if free.At(0, 0) != 2 {
		t.Fatalf("expected free view camera refined by adjuster, got %v", free.At(0, 0))
	}
}
