// Package kernels defines the numeric-kernel contracts spec.md §6 treats
// as external collaborators (robust trifocal fitter, trifocal camera
// extractor, N-view projective triangulator, linear pose solver, scale
// preconditioner, projective bundle adjuster) and one reference
// implementation of each, built on gonum.org/v1/gonum/mat.
//
// The orchestration in triplet/tracks/trifocal/structure/resection/bundle
// only depends on the interfaces in this file; swapping in a different
// numeric backend (a faster RANSAC, a proper Levenberg-Marquardt library)
// never touches the orchestration packages.
package kernels

import "gonum.org/v1/gonum/mat"

// Vec2 is a pixel coordinate.
type Vec2 struct {
	X, Y float64
}

// CameraMatrix is a 3x4 projective camera matrix.
type CameraMatrix = *mat.Dense

// Point4 is a homogeneous 3D point (X, Y, Z, W), defined up to scale.
type Point4 = *mat.VecDense

// TripleObs is a triple-observation: the pixel coordinates of one
// triple-match in the three views of a triplet, promoted from feature
// indices by the caller (spec.md §3).
type TripleObs struct {
	P1, P2, P3 Vec2
}

// Tensor is a 3x3x3 trifocal tensor. Tensor[i] is the i-th 3x3 slice.
type Tensor [3][3][3]float64

// TrifocalFitter robustly estimates a trifocal tensor from triple
// observations and reports the inlier subset, per spec.md §6.
type TrifocalFitter interface {
	// Process runs the fit. Returns false if no model could be fit.
	Process(obs []TripleObs) bool
	// ModelParameters returns the fitted tensor. Only valid after a
	// successful Process.
	ModelParameters() Tensor
	// MatchSet returns the inlier subset, in the order the fitter found
	// them (this order becomes the 3D point order, spec.md §5).
	MatchSet() []TripleObs
	// InputIndex maps a position in MatchSet() back to its position in
	// the observations slice passed to Process.
	InputIndex(pos int) int
}

// CameraExtractor extracts three compatible projective camera matrices
// from a trifocal tensor, with P1 = I implied (never returned).
type CameraExtractor interface {
	Extract(t Tensor) (p2, p3 CameraMatrix, ok bool)
}

// Triangulator triangulates one 3D point from N pixel observations and N
// camera matrices of equal length.
type Triangulator interface {
	Triangulate(pixels []Vec2, cameras []CameraMatrix) (Point4, bool)
}

// PoseSolver estimates a projective camera matrix from known 3D points
// and their 2D pixel observations via linear pose from homogeneous
// points (spec.md §6).
type PoseSolver interface {
	ProcessHomogeneous(pixels []Vec2, points []Point4) bool
	Projective() CameraMatrix
}

// BAView is one camera slot in a bundle-adjustment problem.
type BAView struct {
	Camera        CameraMatrix
	Width, Height int
	Fixed         bool
}

// BAObservation is one 2D pixel observation of one 3D point from one
// view slot, flattened for the bundle adjuster's consumption.
type BAObservation struct {
	ViewSlot   int
	PointIndex int
	X, Y       float64
}

// BAProblem is the adapter-shaped bundle-adjustment input: camera slots,
// homogeneous points, and flattened observations. Orchestration-level
// types (structure.SceneStructure and bundle's observation list) are converted to
// and from this shape by package bundle; kernels never imports them, to
// keep the dependency direction one-way (orchestration -> kernels).
type BAProblem struct {
	Views        []BAView
	Points       []Point4
	Observations []BAObservation
}

// ScalePreconditioner normalizes pixel coordinates per view to improve
// numerical conditioning before bundle adjustment, and undoes that
// normalization afterward (spec.md §4.6, §6).
type ScalePreconditioner interface {
	// ApplyScale scales observations and (if present) camera matrices in
	// place, recording enough per-view state to undo it later.
	ApplyScale(p *BAProblem)
	// UndoScale restores observation scales. Must be invoked even if the
	// caller discards observations afterward, to keep internal state
	// consistent for reuse (spec.md §4.6).
	UndoScale(p *BAProblem)
	// RemoveViewScale applies the inverse scaling to a single view's
	// camera matrix, returning P <- S^-1 * P. Used to un-scale refined
	// cameras before UndoScale touches the rest of the problem.
	RemoveViewScale(viewSlot int, pIn CameraMatrix) CameraMatrix
}

// BundleAdjuster runs projective bundle adjustment over a BAProblem.
type BundleAdjuster interface {
	SetParameters(p *BAProblem)
	Configure(ftol, gtol float64, maxIterations int)
	Optimize(p *BAProblem) bool
}
