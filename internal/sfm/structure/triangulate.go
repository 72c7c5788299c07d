package structure

import (
	"fmt"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/trifocal"
)

// TriangulateInliers fills ss.Points with one homogeneous 4-vector per
// trifocal inlier, in the same order as tri.InlierTracks/InlierObs, and
// populates InlierToSeed / SeedToStructure (spec.md §4.4).
//
// Triangulation failure (a degenerate configuration, e.g. collinear
// camera centers with the observation at infinity) is demoted to a
// recoverable error here rather than the reference implementation's
// hard failure, per spec.md §7 item 4 and §9's recommendation.
func TriangulateInliers(ss *SceneStructure, tri trifocal.Result, triangulator kernels.Triangulator) error {
	ss.InitPoints(len(tri.InlierTracks))

	cameras := []kernels.CameraMatrix{kernels.Identity3x4(), tri.P2, tri.P3}

	for i, obs := range tri.InlierObs {
		pixels := []kernels.Vec2{obs.P1, obs.P2, obs.P3}

		x, ok := triangulator.Triangulate(pixels, cameras)
		if !ok {
			return fmt.Errorf("structure: triangulation failed for inlier %d", i)
		}
		ss.Points[i] = x

		if err := ss.RecordInlier(i, tri.InlierTracks[i].A); err != nil {
			return fmt.Errorf("structure: recording inlier %d: %w", i, err)
		}
	}

	return nil
}
