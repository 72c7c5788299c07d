package report

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/structure"
)

func TestReprojectionErrorExactPointIsZero(t *testing.T) {
	ss := structure.New(1)
	ss.InitPoints(1)
	ss.Points[0] = mat.NewVecDense(4, []float64{1, 2, 5, 1})
	_ = ss.RecordInlier(0, 0)

	obs := kernels.BAObservation{ViewSlot: 0, PointIndex: 0, X: 1.0 / 5.0, Y: 2.0 / 5.0}

	err, ok := ReprojectionError(ss, obs)
	if !ok {
		t.Fatalf("ReprojectionError reported failure on a well-formed observation")
	}
	if err > 1e-9 {
		t.Fatalf("expected ~zero reprojection error for the identity seed camera, got %g", err)
	}
}

func TestReprojectionErrorNonzeroOffset(t *testing.T) {
	ss := structure.New(1)
	ss.InitPoints(1)
	ss.Points[0] = mat.NewVecDense(4, []float64{1, 2, 5, 1})
	_ = ss.RecordInlier(0, 0)

	obs := kernels.BAObservation{ViewSlot: 0, PointIndex: 0, X: 0, Y: 0}

	err, ok := ReprojectionError(ss, obs)
	if !ok {
		t.Fatalf("ReprojectionError reported failure")
	}
	want := math.Hypot(1.0/5.0, 2.0/5.0)
	if math.Abs(err-want) > 1e-9 {
		t.Fatalf("got %g want %g", err, want)
	}
}

func TestReprojectionErrorRejectsOutOfRangeIndices(t *testing.T) {
	ss := structure.New(1)
	ss.InitPoints(1)
	ss.Points[0] = mat.NewVecDense(4, []float64{1, 2, 5, 1})
	_ = ss.RecordInlier(0, 0)

	if _, ok := ReprojectionError(ss, kernels.BAObservation{ViewSlot: 5, PointIndex: 0}); ok {
		t.Fatalf("expected failure for an out-of-range view slot")
	}
	if _, ok := ReprojectionError(ss, kernels.BAObservation{ViewSlot: 0, PointIndex: 5}); ok {
		t.Fatalf("expected failure for an out-of-range point index")
	}
}

func TestReprojectionHistogramBucketsCounts(t *testing.T) {
	ss := structure.New(2)
	ss.InitPoints(2)
	ss.Points[0] = mat.NewVecDense(4, []float64{1, 2, 5, 1})
	ss.Points[1] = mat.NewVecDense(4, []float64{2, 4, 5, 1})
	_ = ss.RecordInlier(0, 0)
	_ = ss.RecordInlier(1, 1)

	observations := []kernels.BAObservation{
		{ViewSlot: 0, PointIndex: 0, X: 1.0 / 5.0, Y: 2.0 / 5.0}, // ~0 error
		{ViewSlot: 0, PointIndex: 1, X: 0, Y: 0},                 // large error
	}

	bar := ReprojectionHistogram(ss, observations, 0.05)
	if bar == nil {
		t.Fatalf("expected a non-nil chart")
	}
}
