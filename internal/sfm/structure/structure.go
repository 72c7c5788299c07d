// Package structure holds the scene structure container and the four
// index tables that bridge raw feature indices, trifocal inliers, and
// scene-structure point indices (S4 of the reconstruction pipeline).
//
// The index tables are deliberately plain []int with -1 sentinels, not
// maps: correctness here depends on being able to eyeball the arrays
// side by side.
package structure

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
)

// Unset is the sentinel for "no mapping" in every index table below.
const Unset = -1

// ViewSlot is one camera's slot in the scene structure: its projective
// matrix, image dimensions, and whether bundle adjustment should hold it
// fixed (slot 0, the seed, is always fixed).
type ViewSlot struct {
	Camera        kernels.CameraMatrix
	Width, Height int
	Fixed         bool
}

// SceneStructure is the bundle-adjustment-ready container: one camera
// per view slot and an ordered list of homogeneous 3D points, indexed
// by trifocal inlier order. Slot 0 is the seed view, anchored at the
// 3x4 identity.
type SceneStructure struct {
	// AttemptID tags one reconstruction attempt end to end, useful for
	// correlating logs and diagnostics across stages.
	AttemptID string

	Views  []ViewSlot
	Points []kernels.Point4

	// InlierToSeed[i] is the seed-view feature index of the i-th
	// trifocal inlier.
	InlierToSeed []int
	// SeedToStructure[featA] is the point index for seed feature featA,
	// or Unset if featA is not among the trifocal inliers.
	SeedToStructure []int
}

// New initializes an empty SceneStructure with the seed view (slot 0,
// identity, fixed) and seedTotalFeatures entries in SeedToStructure, all
// Unset. Points and InlierToSeed are allocated by InitPoints once the
// inlier count is known.
func New(seedTotalFeatures int) *SceneStructure {
	seedToStructure := make([]int, seedTotalFeatures)
	for i := range seedToStructure {
		seedToStructure[i] = Unset
	}

	return &SceneStructure{
		AttemptID:       uuid.NewString(),
		Views:           []ViewSlot{{Camera: identity3x4(), Fixed: true}},
		SeedToStructure: seedToStructure,
	}
}

// identity3x4 returns P1 = I, the fixed seed camera (spec.md §3/§8 P1).
func identity3x4() kernels.CameraMatrix {
	return kernels.Identity3x4()
}

// InitPoints allocates Points and InlierToSeed for the given inlier
// count. Must be called once, before any index is written.
func (s *SceneStructure) InitPoints(inlierCount int) {
	s.Points = make([]kernels.Point4, inlierCount)
	s.InlierToSeed = make([]int, inlierCount)
}

// RecordInlier registers that trifocal inlier i corresponds to seed
// feature featA, maintaining the InlierToSeed / SeedToStructure
// invariant (spec.md §8 P3: SeedToStructure[InlierToSeed[i]] == i).
func (s *SceneStructure) RecordInlier(i, featA int) error {
	if i < 0 || i >= len(s.InlierToSeed) {
		return fmt.Errorf("structure: inlier index %d out of range [0,%d)", i, len(s.InlierToSeed))
	}
	if featA < 0 || featA >= len(s.SeedToStructure) {
		return fmt.Errorf("structure: seed feature %d out of range [0,%d)", featA, len(s.SeedToStructure))
	}
	s.InlierToSeed[i] = featA
	s.SeedToStructure[featA] = i
	return nil
}

// AddViewSlot appends a resected or extracted camera to the scene,
// returning its slot index.
func (s *SceneStructure) AddViewSlot(cam kernels.CameraMatrix, width, height int) int {
	s.Views = append(s.Views, ViewSlot{Camera: cam, Width: width, Height: height})
	return len(s.Views) - 1
}

// SetViewSlot overwrites an existing slot's camera and shape in place,
// used when resection must write into a reserved slot index (spec.md
// §4.5's "slot corresponding to this edge's index" rule).
func (s *SceneStructure) SetViewSlot(slot int, cam kernels.CameraMatrix, width, height int) error {
	if slot < 0 || slot >= len(s.Views) {
		return fmt.Errorf("structure: view slot %d out of range [0,%d)", slot, len(s.Views))
	}
	s.Views[slot].Camera = cam
	s.Views[slot].Width = width
	s.Views[slot].Height = height
	return nil
}

// ReserveViewSlots grows Views to n entries (beyond the seed already in
// slot 0), leaving new slots with a nil Camera until SetViewSlot fills
// them. Used so resection can address slots by seedConnIdx position
// before every resection has run.
func (s *SceneStructure) ReserveViewSlots(n int) {
	for len(s.Views) < n+1 {
		s.Views = append(s.Views, ViewSlot{})
	}
}
