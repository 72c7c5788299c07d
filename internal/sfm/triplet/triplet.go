// Package triplet implements S1 of the reconstruction pipeline: scoring
// every (seed, B, C) triangle reachable from the seed's candidate
// neighbor list and picking the strongest one.
//
// Select considers every pair (i, j), i < j, into the caller-supplied
// candidate index list. For each pair it looks up B = candidates[i]'s
// view, C = candidates[j]'s view, and the third edge eBC via
// graph.FindMotion. Pairs missing eBC are skipped. The surviving pair
// with the highest score(eAB)+score(eAC)+score(eBC) wins; ties go to the
// first-encountered pair (ascending (i, j) order, i.e. i first then j).
//
// Complexity: O(k^2) pairs, each with one graph.FindMotion lookup, which
// is a map lookup (O(1)).
package triplet

import "github.com/viewgraph-sfm/trifocal-init/internal/sfm/graph"

// Result is the outcome of Select: the chosen pair of indices into the
// caller's candidate list, and whether a valid triple was found at all.
type Result struct {
	I, J  int // i < j, indices into the candidates slice
	B, C  string
	Score float64
	Found bool
}

// Select scores every candidate pair and returns the best one whose
// third edge (B-C) exists. seedID is view A; candidates is an ordered
// list of A's edge indices identifying candidate neighbors.
func Select(g *graph.Graph, seedID string, candidates []int) Result {
	var best Result
	bestScore := 0.0

	for i := 0; i < len(candidates); i++ {
		eAB := g.Edge(candidates[i])
		b := eAB.Other(seedID)

		for j := i + 1; j < len(candidates); j++ {
			eAC := g.Edge(candidates[j])
			c := eAC.Other(seedID)

			eBC := g.FindMotion(b, c)
			if eBC == nil {
				continue
			}

			score := eAB.Score + eAC.Score + eBC.Score
			if !best.Found || score > bestScore {
				best = Result{I: i, J: j, B: b, C: c, Score: score, Found: true}
				bestScore = score
			}
		}
	}

	return best
}
