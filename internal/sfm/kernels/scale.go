package kernels

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// IsotropicScalePreconditioner translates each view's pixel observations
// so their centroid is the origin and scales them so their mean distance
// from it is sqrt(2), the classical Hartley normalization, improving the
// conditioning of the bundle-adjustment normal equations (spec.md §4.6).
type IsotropicScalePreconditioner struct {
	centroid map[int][2]float64
	scale    map[int]float64
}

// NewIsotropicScalePreconditioner returns an IsotropicScalePreconditioner.
func NewIsotropicScalePreconditioner() *IsotropicScalePreconditioner {
	return &IsotropicScalePreconditioner{
		centroid: make(map[int][2]float64),
		scale:    make(map[int]float64),
	}
}

// ApplyScale implements ScalePreconditioner.
func (s *IsotropicScalePreconditioner) ApplyScale(p *BAProblem) {
	sums := make(map[int][2]float64)
	counts := make(map[int]int)
	for _, o := range p.Observations {
		c := sums[o.ViewSlot]
		c[0] += o.X
		c[1] += o.Y
		sums[o.ViewSlot] = c
		counts[o.ViewSlot]++
	}

	for slot, c := range sums {
		n := float64(counts[slot])
		if n == 0 {
			continue
		}
		s.centroid[slot] = [2]float64{c[0] / n, c[1] / n}
	}

	meanDist := make(map[int]float64)
	for _, o := range p.Observations {
		ctr := s.centroid[o.ViewSlot]
		dx, dy := o.X-ctr[0], o.Y-ctr[1]
		meanDist[o.ViewSlot] += dist(dx, dy)
	}
	for slot, sum := range meanDist {
		n := float64(counts[slot])
		if n == 0 || sum == 0 {
			s.scale[slot] = 1
			continue
		}
		avg := sum / n
		s.scale[slot] = sqrt2 / avg
	}

	for i, o := range p.Observations {
		ctr := s.centroid[o.ViewSlot]
		sc := s.scaleOf(o.ViewSlot)
		p.Observations[i].X = (o.X - ctr[0]) * sc
		p.Observations[i].Y = (o.Y - ctr[1]) * sc
	}

	for i := range p.Views {
		if p.Views[i].Camera == nil {
			continue
		}
		p.Views[i].Camera = s.applyViewScale(i, p.Views[i].Camera)
	}
}

// UndoScale implements ScalePreconditioner. Camera matrices are not
// touched here: callers that also carry scaled cameras must unscale
// them per view via RemoveViewScale before calling UndoScale, since
// doing both would unscale a camera twice.
func (s *IsotropicScalePreconditioner) UndoScale(p *BAProblem) {
	for i, o := range p.Observations {
		ctr := s.centroid[o.ViewSlot]
		sc := s.scaleOf(o.ViewSlot)
		p.Observations[i].X = o.X/sc + ctr[0]
		p.Observations[i].Y = o.Y/sc + ctr[1]
	}
}

// RemoveViewScale implements ScalePreconditioner.
func (s *IsotropicScalePreconditioner) RemoveViewScale(viewSlot int, pIn CameraMatrix) CameraMatrix {
	sc := s.scaleOf(viewSlot)
	ctr := s.centroid[viewSlot]

	// Inverse of the 3x3 normalizing transform S (x' = sc*(x-ctr)):
	// S^-1 = [[1/sc, 0, ctrX], [0, 1/sc, ctrY], [0, 0, 1]].
	sInv := mat.NewDense(3, 3, []float64{
		1 / sc, 0, ctr[0],
		0, 1 / sc, ctr[1],
		0, 0, 1,
	})

	var out mat.Dense
	out.Mul(sInv, pIn)
	return &out
}

// applyViewScale applies the forward normalizing transform S to pIn.
func (s *IsotropicScalePreconditioner) applyViewScale(viewSlot int, pIn CameraMatrix) CameraMatrix {
	sc := s.scaleOf(viewSlot)
	ctr := s.centroid[viewSlot]

	sMat := mat.NewDense(3, 3, []float64{
		sc, 0, -sc * ctr[0],
		0, sc, -sc * ctr[1],
		0, 0, 1,
	})

	var out mat.Dense
	out.Mul(sMat, pIn)
	return &out
}

func (s *IsotropicScalePreconditioner) scaleOf(slot int) float64 {
	if sc, ok := s.scale[slot]; ok && sc != 0 {
		return sc
	}
	return 1
}

const sqrt2 = 1.4142135623730951

func dist(dx, dy float64) float64 {
	return math.Sqrt(dx*dx + dy*dy)
}
