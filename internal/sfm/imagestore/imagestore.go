// Package imagestore is the lookup surface every reconstruction stage
// uses to turn raw feature indices into pixel coordinates and view
// shapes, without any stage touching SQL directly.
package imagestore

import (
	"fmt"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
)

// Shape is a view's pixel-space dimensions and feature count.
type Shape struct {
	Width, Height, TotalFeatures int
}

// Store resolves raw feature indices to pixel coordinates and view
// shapes. Implementations: SQLiteStore (production), MemStore (tests).
type Store interface {
	// LookupPixelFeats returns the pixel coordinates of the given
	// feature indices in view viewID, in the same order as idx.
	LookupPixelFeats(viewID string, idx []int) ([]kernels.Vec2, error)
	// LookupShape returns a view's registered shape.
	LookupShape(viewID string) (Shape, error)
}

// ErrViewNotFound is returned when a view ID has no registered shape.
var ErrViewNotFound = fmt.Errorf("imagestore: view not found")

// ErrFeatureNotFound is returned when a feature index has no pixel row.
var ErrFeatureNotFound = fmt.Errorf("imagestore: feature not found")
