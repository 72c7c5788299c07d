// Package trifocal implements S3: robust trifocal tensor fitting and
// compatible camera matrix extraction, given pixel-promoted
// triple-observations built by package tracks.
package trifocal

import (
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/tracks"
)

// Result is the outcome of a successful three-view solve: the two
// non-seed camera matrices (P1 = I is implied and never stored here)
// and the inlier subset, reordered to match the fitter's inlier order
// (spec.md §5's "point indices assigned in the order the robust fitter
// emits inliers").
type Result struct {
	P2, P3 kernels.CameraMatrix

	// InlierTracks[i] is the original (a,b,c) triple-match for the i-th
	// trifocal inlier; InlierObs[i] is its pixel-promoted counterpart.
	InlierTracks []tracks.Match
	InlierObs    []kernels.TripleObs
}

// Solve runs the robust trifocal fitter over every triple-observation,
// then extracts compatible cameras from the fitted tensor. Returns
// false if the fitter found no model or the extraction failed (spec.md
// §4.3 step 3).
func Solve(
	obs []kernels.TripleObs,
	matches []tracks.Match,
	fitter kernels.TrifocalFitter,
	extractor kernels.CameraExtractor,
) (Result, bool) {
	if len(obs) != len(matches) {
		return Result{}, false
	}

	if !fitter.Process(obs) {
		return Result{}, false
	}

	tensor := fitter.ModelParameters()
	p2, p3, ok := extractor.Extract(tensor)
	if !ok {
		return Result{}, false
	}

	matchSet := fitter.MatchSet()
	inlierTracks := make([]tracks.Match, len(matchSet))
	for pos := range matchSet {
		origIdx := fitter.InputIndex(pos)
		if origIdx < 0 || origIdx >= len(matches) {
			return Result{}, false
		}
		inlierTracks[pos] = matches[origIdx]
	}

	return Result{
		P2:           p2,
		P3:           p3,
		InlierTracks: inlierTracks,
		InlierObs:    matchSet,
	}, true
}
