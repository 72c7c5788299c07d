// Package pipeline is the composition root for one reconstruction
// attempt: it wires S1 through S6 in strict forward order and owns the
// failure taxonomy of spec.md §7. No layer package below it imports
// pipeline; it imports all of them.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/bundle"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/config"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/diag"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/graph"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/imagestore"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/resection"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/structure"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/tracks"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/trifocal"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/triplet"
)

// Sentinel errors, one per spec.md §7 failure taxonomy entry. Each
// surfaces as a non-nil error from Reconstruct; callers distinguish
// recoverable conditions (retry with a different seed/neighborhood)
// from the stereo-case precondition violation via errors.Is.
var (
	ErrDegenerateTopology   = errors.New("pipeline: degenerate topology")
	ErrEmptyTripleSet       = errors.New("pipeline: empty triple set")
	ErrTrifocalFailure      = errors.New("pipeline: robust trifocal fit failed")
	ErrTriangulationFailure = errors.New("pipeline: triangulation failed")
	ErrResectionFailure     = errors.New("pipeline: resection failed")
	ErrBundleNonConvergence = errors.New("pipeline: bundle adjustment did not converge")
	ErrStereoUnsupported    = errors.New("pipeline: stereo (single-neighbor) initialization is unsupported")
)

// Orchestrator runs reconstruction attempts against one graph and one
// image store. Stateless across calls beyond those two collaborators.
type Orchestrator struct {
	Graph *graph.Graph
	Store imagestore.Store
}

// New returns an Orchestrator over g and store.
func New(g *graph.Graph, store imagestore.Store) *Orchestrator {
	return &Orchestrator{Graph: g, Store: store}
}

// Reconstruct runs one full reconstruction attempt anchored at seedID,
// considering seedConnIdx as the ordered set of seed edge indices to
// treat as connected views (spec.md §4.1's candidate list, also the
// view-slot ordering contract of §5 and §9). On success, every entry of
// seedConnIdx maps to view slot k+1 in the returned SceneStructure.
func (o *Orchestrator) Reconstruct(seedID string, seedConnIdx []int, cfg config.Config) (*structure.SceneStructure, error) {
	diag.Opsf("reconstruct: seed=%s candidates=%d", seedID, len(seedConnIdx))

	if len(seedConnIdx) == 1 {
		return nil, ErrStereoUnsupported
	}
	if len(seedConnIdx) < 2 {
		return nil, fmt.Errorf("%w: fewer than two candidate neighbors", ErrDegenerateTopology)
	}

	seed := o.Graph.View(seedID)
	if seed == nil {
		return nil, fmt.Errorf("pipeline: unknown seed view %s", seedID)
	}

	fixed, err := cfg.Fixate()
	if err != nil {
		return nil, fmt.Errorf("pipeline: configuration: %w", err)
	}

	sel := triplet.Select(o.Graph, seedID, seedConnIdx)
	if !sel.Found {
		diag.Opsf("reconstruct: no valid triple among %d candidates", len(seedConnIdx))
		return nil, fmt.Errorf("%w: no candidate pair shares an edge", ErrDegenerateTopology)
	}
	diag.Diagf("reconstruct: triplet selected i=%d j=%d B=%s C=%s score=%.3f", sel.I, sel.J, sel.B, sel.C, sel.Score)

	bView := o.Graph.View(sel.B)
	cView := o.Graph.View(sel.C)
	eAB := o.Graph.Edge(seedConnIdx[sel.I])
	eAC := o.Graph.Edge(seedConnIdx[sel.J])
	eBC := o.Graph.FindMotion(sel.B, sel.C)
	if eBC == nil {
		return nil, fmt.Errorf("%w: chosen triple lost its eBC edge", ErrDegenerateTopology)
	}

	matches := tracks.Find(seed, bView, cView, eAB, eAC, eBC)
	if len(matches) == 0 {
		diag.Opsf("reconstruct: triplet (%s,%s,%s) produced no three-way tracks", seedID, sel.B, sel.C)
		return nil, ErrEmptyTripleSet
	}
	diag.Tracef("reconstruct: %d three-way tracks found", len(matches))

	obsAll, err := promoteToPixels(o.Store, seedID, sel.B, sel.C, matches)
	if err != nil {
		return nil, fmt.Errorf("pipeline: promoting tracks to pixels: %w", err)
	}

	tri, ok := trifocal.Solve(obsAll, matches, fixed.Fitter, fixed.Extractor)
	if !ok {
		diag.Opsf("reconstruct: trifocal fit failed on %d observations", len(obsAll))
		return nil, ErrTrifocalFailure
	}
	diag.Diagf("reconstruct: trifocal fit kept %d/%d inliers", len(tri.InlierTracks), len(obsAll))

	ss := structure.New(seed.TotalFeatures)
	ss.ReserveViewSlots(len(seedConnIdx))

	seedShape, err := o.Store.LookupShape(seedID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: seed shape: %w", err)
	}
	if err := ss.SetViewSlot(0, kernels.Identity3x4(), seedShape.Width, seedShape.Height); err != nil {
		return nil, fmt.Errorf("pipeline: seed view slot: %w", err)
	}

	if err := structure.TriangulateInliers(ss, tri, fixed.Triangulator); err != nil {
		diag.Opsf("reconstruct: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrTriangulationFailure, err)
	}

	bShape, err := o.Store.LookupShape(sel.B)
	if err != nil {
		return nil, fmt.Errorf("pipeline: view %s shape: %w", sel.B, err)
	}
	cShape, err := o.Store.LookupShape(sel.C)
	if err != nil {
		return nil, fmt.Errorf("pipeline: view %s shape: %w", sel.C, err)
	}
	if err := ss.SetViewSlot(sel.I+1, tri.P2, bShape.Width, bShape.Height); err != nil {
		return nil, fmt.Errorf("pipeline: view slot for %s: %w", sel.B, err)
	}
	if err := ss.SetViewSlot(sel.J+1, tri.P3, cShape.Width, cShape.Height); err != nil {
		return nil, fmt.Errorf("pipeline: view slot for %s: %w", sel.C, err)
	}

	connEdges := make([]*graph.Edge, len(seedConnIdx))
	for k, edgeIdx := range seedConnIdx {
		connEdges[k] = o.Graph.Edge(edgeIdx)
	}

	for k, edge := range connEdges {
		if k == sel.I || k == sel.J {
			continue
		}
		cam, shape, err := resection.Resect(ss, seedID, edge, o.Store, fixed.PoseSolver())
		if err != nil {
			diag.Opsf("reconstruct: resection failed at seedConnIdx[%d]: %v", k, err)
			return nil, fmt.Errorf("%w: %v", ErrResectionFailure, err)
		}
		if err := ss.SetViewSlot(k+1, cam, shape.Width, shape.Height); err != nil {
			return nil, fmt.Errorf("pipeline: view slot %d: %w", k+1, err)
		}
	}

	seedPixels, err := o.Store.LookupPixelFeats(seedID, ss.InlierToSeed)
	if err != nil {
		return nil, fmt.Errorf("pipeline: seed pixel lookup: %w", err)
	}
	observations, err := bundle.BuildObservations(ss, seedID, seedPixels, connEdges, o.Store)
	if err != nil {
		return nil, fmt.Errorf("pipeline: building observations: %w", err)
	}
	diag.Tracef("reconstruct: built %d observations across %d view slots", len(observations), len(ss.Views))

	if err := bundle.Run(ss, observations, fixed.BundleConfig, fixed.Scaler, fixed.Adjuster); err != nil {
		diag.Opsf("reconstruct: %v", err)
		return ss, fmt.Errorf("%w: %v", ErrBundleNonConvergence, err)
	}

	diag.Opsf("reconstruct: attempt %s succeeded, %d points, %d views", ss.AttemptID, len(ss.Points), len(ss.Views))
	return ss, nil
}

// promoteToPixels looks up pixel coordinates for every triple-match's
// three feature indices, building the pixel-space observations the
// trifocal fitter consumes (spec.md §3's "triple-observation").
func promoteToPixels(store imagestore.Store, seedID, bID, cID string, matches []tracks.Match) ([]kernels.TripleObs, error) {
	aIdx := make([]int, len(matches))
	bIdx := make([]int, len(matches))
	cIdx := make([]int, len(matches))
	for i, m := range matches {
		aIdx[i] = m.A
		bIdx[i] = m.B
		cIdx[i] = m.C
	}

	aPix, err := store.LookupPixelFeats(seedID, aIdx)
	if err != nil {
		return nil, fmt.Errorf("seed pixels: %w", err)
	}
	bPix, err := store.LookupPixelFeats(bID, bIdx)
	if err != nil {
		return nil, fmt.Errorf("%s pixels: %w", bID, err)
	}
	cPix, err := store.LookupPixelFeats(cID, cIdx)
	if err != nil {
		return nil, fmt.Errorf("%s pixels: %w", cID, err)
	}

	obs := make([]kernels.TripleObs, len(matches))
	for i := range matches {
		obs[i] = kernels.TripleObs{P1: aPix[i], P2: bPix[i], P3: cPix[i]}
	}
	return obs, nil
}
