package bundle

import (
	"fmt"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/graph"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/imagestore"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/structure"
)

// BuildObservations produces the bundle-adjustment observation list:
// slot 0 (seed) contributes one observation per inlier from seedPixels,
// and slot k >= 1 contributes observations from connEdges[k-1], the
// view order fixed by seedConnIdx (spec.md §4.6, §5 ordering
// guarantee: "[seed, seedConnIdx[0], seedConnIdx[1], ...]").
func BuildObservations(
	ss *structure.SceneStructure,
	seedID string,
	seedPixels []kernels.Vec2,
	connEdges []*graph.Edge,
	store imagestore.Store,
) ([]kernels.BAObservation, error) {
	if len(seedPixels) != len(ss.Points) {
		return nil, fmt.Errorf("bundle: seed pixel count %d != point count %d", len(seedPixels), len(ss.Points))
	}

	obs := make([]kernels.BAObservation, 0, len(ss.Points)*(1+len(connEdges)))
	for i, px := range seedPixels {
		obs = append(obs, kernels.BAObservation{ViewSlot: 0, PointIndex: i, X: px.X, Y: px.Y})
	}

	for k, edge := range connEdges {
		slot := k + 1
		added, err := edgeObservations(ss, seedID, edge, slot, store)
		if err != nil {
			return nil, err
		}
		obs = append(obs, added...)
	}

	return obs, nil
}

// edgeObservations returns one observation per inlier that edge's
// correspondences resolve to a scene point, skipping any that don't
// (spec.md §4.6 observation builder, slot k >= 1 case). Unlike
// resection, completeness is not required here: a connected view
// legitimately may not see every trifocal inlier.
func edgeObservations(
	ss *structure.SceneStructure,
	seedID string,
	edge *graph.Edge,
	slot int,
	store imagestore.Store,
) ([]kernels.BAObservation, error) {
	srcIsSeed := edge.Src == seedID

	byPoint := make(map[int]int, len(edge.Inliers))
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
		byPoint[pt] = featV
	}

	if len(byPoint) == 0 {
		return nil, nil
	}

	otherView := edge.Other(seedID)
	idx := make([]int, 0, len(byPoint))
	pts := make([]int, 0, len(byPoint))
	for pt, featV := range byPoint {
		idx = append(idx, featV)
		pts = append(pts, pt)
	}

	pixels, err := store.LookupPixelFeats(otherView, idx)
	if err != nil {
		return nil, fmt.Errorf("bundle: lookup pixels for %s: %w", otherView, err)
	}

	out := make([]kernels.BAObservation, len(pixels))
	for i, px := range pixels {
		out[i] = kernels.BAObservation{ViewSlot: slot, PointIndex: pts[i], X: px.X, Y: px.Y}
	}

	return out, nil
}
