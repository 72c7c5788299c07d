// Package resection implements S5: estimating a projective camera
// matrix for every remaining connected view via linear pose from the
// 3D points already triangulated by package structure.
package resection

import (
	"fmt"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/graph"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/imagestore"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/structure"
)

// ErrIncomplete is returned when an edge's inliers don't cover every
// scene point (spec.md §4.5's completeness invariant) — the upstream
// graph promised every trifocal inlier is visible in this view.
var ErrIncomplete = fmt.Errorf("resection: incomplete point coverage")

// ErrPoseFailed is returned when the linear pose solver could not
// produce a camera matrix.
var ErrPoseFailed = fmt.Errorf("resection: linear pose solve failed")

// Resect estimates a camera matrix for the view connected to seedID by
// edge, using every scene point that edge's inliers resolve to. Returns
// the camera matrix and the view's registered shape.
func Resect(
	ss *structure.SceneStructure,
	seedID string,
	edge *graph.Edge,
	store imagestore.Store,
	solver kernels.PoseSolver,
) (kernels.CameraMatrix, imagestore.Shape, error) {
	otherView := edge.Other(seedID)
	n := len(ss.Points)

	featVByPoint := make(map[int]int, n)
	srcIsSeed := edge.Src == seedID

	for _, inl := range edge.Inliers {
		var featA, featV int
		if srcIsSeed {
			featA, featV = inl.SrcFeat, inl.DstFeat
		} else {
			featA, featV = inl.DstFeat, inl.SrcFeat
		}
		if featA < 0 || featA >= len(ss.SeedToStructure) {
			continue
		}
		pt := ss.SeedToStructure[featA]
		if pt == structure.Unset {
			continue
		}
		featVByPoint[pt] = featV
	}

	if len(featVByPoint) != n {
		return nil, imagestore.Shape{}, fmt.Errorf("%w: view %s covers %d/%d points", ErrIncomplete, otherView, len(featVByPoint), n)
	}

	featureIdx := make([]int, n)
	for pt := 0; pt < n; pt++ {
		v, ok := featVByPoint[pt]
		if !ok {
			return nil, imagestore.Shape{}, fmt.Errorf("%w: view %s missing point %d", ErrIncomplete, otherView, pt)
		}
		featureIdx[pt] = v
	}

	pixelsV, err := store.LookupPixelFeats(otherView, featureIdx)
	if err != nil {
		return nil, imagestore.Shape{}, fmt.Errorf("resection: lookup pixels for %s: %w", otherView, err)
	}

	if !solver.ProcessHomogeneous(pixelsV, ss.Points) {
		return nil, imagestore.Shape{}, fmt.Errorf("%w: view %s", ErrPoseFailed, otherView)
	}

	shape, err := store.LookupShape(otherView)
	if err != nil {
		return nil, imagestore.Shape{}, fmt.Errorf("resection: lookup shape for %s: %w", otherView, err)
	}

	return solver.Projective(), shape, nil
}
