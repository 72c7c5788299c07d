// Package tracks implements S2: building three-way feature
// correspondences ("triple-matches") consistent across a triplet's three
// edges.
//
// Each edge carries its own src/dst designation, which may or may not
// put the seed view A on the src side; direction flags are derived once
// per edge and then applied consistently, per spec.md §4.2 and §9.
//
// This implements the *corrected* traversal: spec.md §9 flags the
// reference implementation as only emitting matches when eBC's src is B;
// that silently drops valid matches when B is eBC's destination instead.
// Here both directions are handled.
package tracks

import "github.com/viewgraph-sfm/trifocal-init/internal/sfm/graph"

// Match is one triple-match (a, b, c): feature index a in view A, b in
// view B, c in view C, with (a,b) an eAB inlier, (a,c) an eAC inlier, and
// (b,c) an eBC inlier.
type Match struct {
	A, B, C int
}

const unset = -1

// Find builds all triple-matches for the triplet (A, B, C) given the
// three pairwise edges. A, B, C are the views themselves (their
// TotalFeatures sizes the raw_*_to_A tables). Returns an empty (non-nil)
// slice if no three-way track survives — the caller must handle that
// (spec.md §4.2 edge case).
func Find(a, b, c *graph.View, eAB, eAC, eBC *graph.Edge) []Match {
	rawBtoA := buildRawToSeed(a.ID, eAB, b.TotalFeatures)
	rawCtoA := buildRawToSeed(a.ID, eAC, c.TotalFeatures)

	srcBC := eBC.Src == b.ID

	matches := make([]Match, 0, len(eBC.Inliers))
	for _, inl := range eBC.Inliers {
		var fB, fC int
		if srcBC {
			fB, fC = inl.SrcFeat, inl.DstFeat
		} else {
			fB, fC = inl.DstFeat, inl.SrcFeat
		}

		if fB < 0 || fB >= len(rawBtoA) || fC < 0 || fC >= len(rawCtoA) {
			// Out-of-range feature indices are a precondition violation
			// (spec.md §4.2); skip defensively rather than panic so one
			// malformed edge can't abort the whole triplet.
			continue
		}

		featA := rawBtoA[fB]
		if featA == unset {
			continue
		}
		if rawCtoA[fC] != featA {
			continue
		}

		matches = append(matches, Match{A: featA, B: fB, C: fC})
	}

	return matches
}

// buildRawToSeed builds raw_X_to_A[feat_X] = feat_A for edge e, where A
// is the view with ID seedID. size is the non-seed view's TotalFeatures.
func buildRawToSeed(seedID string, e *graph.Edge, size int) []int {
	out := make([]int, size)
	for i := range out {
		out[i] = unset
	}

	srcIsSeed := e.Src == seedID
	for _, inl := range e.Inliers {
		var featA, featX int
		if srcIsSeed {
			featA, featX = inl.SrcFeat, inl.DstFeat
		} else {
			featA, featX = inl.DstFeat, inl.SrcFeat
		}
		if featX < 0 || featX >= len(out) {
			continue
		}
		out[featX] = featA
	}

	return out
}
