package report

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/structure"
)

// CameraTopDownPlot renders camera centers and triangulated points
// projected onto the XY plane, a quick sanity check that camera centers
// spread out and points cluster where expected rather than collapsing
// to a degenerate configuration.
func CameraTopDownPlot(ss *structure.SceneStructure) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("reconstruction %s: top-down layout", ss.AttemptID)
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"

	points := make(plotter.XYs, 0, len(ss.Points))
	for _, pt := range ss.Points {
		w := pt.AtVec(3)
		if w == 0 {
			continue
		}
		points = append(points, plotter.XY{X: pt.AtVec(0) / w, Y: pt.AtVec(1) / w})
	}
	pointScatter, err := plotter.NewScatter(points)
	if err != nil {
		return nil, fmt.Errorf("report: point scatter: %w", err)
	}
	pointScatter.Radius = vg.Points(1.5)
	p.Add(pointScatter)
	p.Legend.Add("points", pointScatter)

	cameras := make(plotter.XYs, 0, len(ss.Views))
	for _, v := range ss.Views {
		if v.Camera == nil {
			continue
		}
		c, ok := cameraCenter(v.Camera)
		if !ok {
			continue
		}
		cameras = append(cameras, plotter.XY{X: c[0], Y: c[1]})
	}
	camScatter, err := plotter.NewScatter(cameras)
	if err != nil {
		return nil, fmt.Errorf("report: camera scatter: %w", err)
	}
	camScatter.Radius = vg.Points(4)
	camScatter.Shape = draw.PyramidGlyph{}
	p.Add(camScatter)
	p.Legend.Add("cameras", camScatter)

	return p, nil
}

// cameraCenter returns a projective camera matrix's center, the
// homogeneous right null vector of P, normalized to inhomogeneous XYZ.
func cameraCenter(p mat.Matrix) ([3]float64, bool) {
	dense, ok := p.(*mat.Dense)
	if !ok {
		return [3]float64{}, false
	}

	var svd mat.SVD
	if !svd.Factorize(dense, mat.SVDFull) {
		return [3]float64{}, false
	}
	var v mat.Dense
	svd.VTo(&v)
	// P is 3x4, so V is the full 4x4 right-singular-vector matrix while
	// Values() only reports the 3 nonzero singular values; the camera
	// center is the null vector in V's last column (index 3), not
	// column len(Values())-1=2.
	_, vCols := v.Dims()
	last := vCols - 1

	w := v.At(3, last)
	if w == 0 {
		return [3]float64{}, false
	}

	return [3]float64{v.At(0, last) / w, v.At(1, last) / w, v.At(2, last) / w}, true
}
