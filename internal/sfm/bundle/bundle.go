// Package bundle implements S6: the scale/optimize/unscale protocol
// that drives projective bundle adjustment over a completed scene
// structure, and the observation builder that feeds it.
package bundle

import (
	"fmt"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/structure"
)

// Config configures one bundle-adjustment run (spec.md §6 converge.*
// and scaleSBA knobs).
type Config struct {
	FTol, GTol    float64
	MaxIterations int
	ScaleSBA      bool
}

// ErrNonConvergence is returned when the optimizer fails to converge
// within MaxIterations (spec.md §7 item 6).
var ErrNonConvergence = fmt.Errorf("bundle: optimizer did not converge")

// Run executes the scale/optimize/unscale protocol described in
// spec.md §4.6 against ss, using observations already built by
// BuildObservations. On return, ss.Views' camera matrices are refined
// and expressed in the original (unscaled) pixel coordinate system.
func Run(
	ss *structure.SceneStructure,
	observations []kernels.BAObservation,
	cfg Config,
	scaler kernels.ScalePreconditioner,
	adjuster kernels.BundleAdjuster,
) error {
	problem := toBAProblem(ss, observations)

	if cfg.ScaleSBA {
		scaler.ApplyScale(problem)
	}

	adjuster.Configure(cfg.FTol, cfg.GTol, cfg.MaxIterations)
	adjuster.SetParameters(problem)

	converged := adjuster.Optimize(problem)

	if cfg.ScaleSBA {
		for i := range problem.Views {
			if problem.Views[i].Camera == nil {
				continue
			}
			problem.Views[i].Camera = scaler.RemoveViewScale(i, problem.Views[i].Camera)
		}
		// UndoScale must still run even though observations are
		// discarded after this call, to keep the scaler's per-view
		// state consistent for any subsequent run (spec.md §4.6).
		scaler.UndoScale(problem)
	}

	fromBAProblem(ss, problem)

	if !converged {
		return ErrNonConvergence
	}
	return nil
}

// toBAProblem adapts a SceneStructure into the self-contained shape
// kernels.BundleAdjuster consumes, keeping kernels free of any
// dependency on package structure (avoids an import cycle, since
// structure already depends on kernels for its camera/point types).
func toBAProblem(ss *structure.SceneStructure, observations []kernels.BAObservation) *kernels.BAProblem {
	views := make([]kernels.BAView, len(ss.Views))
	for i, v := range ss.Views {
		views[i] = kernels.BAView{Camera: v.Camera, Width: v.Width, Height: v.Height, Fixed: v.Fixed}
	}

	points := make([]kernels.Point4, len(ss.Points))
	copy(points, ss.Points)

	obsCopy := make([]kernels.BAObservation, len(observations))
	copy(obsCopy, observations)

	return &kernels.BAProblem{Views: views, Points: points, Observations: obsCopy}
}

// fromBAProblem writes a (possibly refined) BAProblem's cameras and
// points back into ss. Fixed views (slot 0, the seed) are left
// untouched regardless of what the adjuster wrote, preserving P1 = I.
func fromBAProblem(ss *structure.SceneStructure, p *kernels.BAProblem) {
	for i, v := range p.Views {
		if ss.Views[i].Fixed {
			continue
		}
		ss.Views[i].Camera = v.Camera
	}
	copy(ss.Points, p.Points)
}
