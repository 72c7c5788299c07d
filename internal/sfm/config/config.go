// Package config collects every tunable knob the reconstruction
// pipeline exposes and materializes the numeric kernels they configure.
package config

import (
	"fmt"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/bundle"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
)

// Config is the builder for one reconstruction attempt's parameters.
// DefaultConfig fills in the defaults; callers override individual
// fields and call Validate before Fixate.
type Config struct {
	// RansacMaxIterations and RansacInlierThreshold configure the
	// robust trifocal fitter (spec.md §6: ransac.maxIterations,
	// ransac.inlierThreshold).
	RansacMaxIterations   int
	RansacInlierThreshold float64

	// TriRansac is a passthrough slot for trifocal RANSAC model
	// configuration beyond the two knobs above (spec.md §6: triRansac).
	TriRansac map[string]float64
	// ErrorModel is a passthrough slot for trifocal reprojection-error
	// configuration (spec.md §6: error).
	ErrorModel map[string]float64
	// SBA is a passthrough slot for bundle adjuster configuration not
	// covered by Converge* below (spec.md §6: sba).
	SBA map[string]float64

	ConvergeFTol          float64
	ConvergeGTol          float64
	ConvergeMaxIterations int

	ScaleSBA bool

	// RandomSeed seeds the RANSAC sampler; zero means deterministic
	// default seed 0, used by the synthetic-scene property tests that
	// need reproducible runs (spec.md §8 P8).
	RandomSeed int64
}

// DefaultConfig returns spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		RansacMaxIterations:   500,
		RansacInlierThreshold: 1,
		ConvergeFTol:          1e-8,
		ConvergeGTol:          1e-8,
		ConvergeMaxIterations: 200,
		ScaleSBA:              true,
	}
}

// Validate checks that every field is in its documented range.
func (c Config) Validate() error {
	if c.RansacMaxIterations <= 0 {
		return fmt.Errorf("config: RansacMaxIterations must be > 0, got %d", c.RansacMaxIterations)
	}
	if c.RansacInlierThreshold <= 0 {
		return fmt.Errorf("config: RansacInlierThreshold must be > 0, got %f", c.RansacInlierThreshold)
	}
	if c.ConvergeFTol <= 0 {
		return fmt.Errorf("config: ConvergeFTol must be > 0, got %g", c.ConvergeFTol)
	}
	if c.ConvergeGTol <= 0 {
		return fmt.Errorf("config: ConvergeGTol must be > 0, got %g", c.ConvergeGTol)
	}
	if c.ConvergeMaxIterations <= 0 {
		return fmt.Errorf("config: ConvergeMaxIterations must be > 0, got %d", c.ConvergeMaxIterations)
	}
	return nil
}

// Fixed holds the materialized kernels a Config produces via Fixate.
// Must be rebuilt (via Fixate) after any Config field changes — it is
// not kept in sync automatically.
type Fixed struct {
	Fitter     kernels.TrifocalFitter
	Extractor  kernels.CameraExtractor
	Triangulator kernels.Triangulator
	PoseSolver func() kernels.PoseSolver
	Scaler     kernels.ScalePreconditioner
	Adjuster   kernels.BundleAdjuster

	BundleConfig bundle.Config
}

// Fixate materializes the robust fitter and bundle adjuster (and the
// rest of the numeric kernel set) from c. Must be re-invoked after any
// configuration change (spec.md §6's fixate() step).
func (c Config) Fixate() (*Fixed, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &Fixed{
		Fitter: kernels.NewRansacTrifocalFitter(kernels.RansacTrifocalConfig{
			MaxIterations:   c.RansacMaxIterations,
			InlierThreshold: c.RansacInlierThreshold,
			Seed:            c.RandomSeed,
		}),
		Extractor:    kernels.NewHZCameraExtractor(),
		Triangulator: kernels.NewDLTTriangulator(),
		PoseSolver:   func() kernels.PoseSolver { return kernels.NewLinearPoseSolver() },
		Scaler:       kernels.NewIsotropicScalePreconditioner(),
		Adjuster:     kernels.NewLMBundleAdjuster(),
		BundleConfig: bundle.Config{
			FTol:          c.ConvergeFTol,
			GTol:          c.ConvergeGTol,
			MaxIterations: c.ConvergeMaxIterations,
			ScaleSBA:      c.ScaleSBA,
		},
	}, nil
}
