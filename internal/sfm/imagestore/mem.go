package imagestore

import (
	"fmt"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
)

// MemStore is an in-memory Store, used by tests and by callers that
// already have features resident (no SQLite round trip needed).
type MemStore struct {
	shapes map[string]Shape
	feats  map[string][]kernels.Vec2
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		shapes: make(map[string]Shape),
		feats:  make(map[string][]kernels.Vec2),
	}
}

// AddView registers a view's shape and its dense feature list (index i
// of feats is feature i's pixel coordinate).
func (m *MemStore) AddView(viewID string, shape Shape, feats []kernels.Vec2) {
	m.shapes[viewID] = shape
	m.feats[viewID] = feats
}

// LookupPixelFeats implements Store.
func (m *MemStore) LookupPixelFeats(viewID string, idx []int) ([]kernels.Vec2, error) {
	feats, ok := m.feats[viewID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, viewID)
	}

	out := make([]kernels.Vec2, len(idx))
	for i, fi := range idx {
		if fi < 0 || fi >= len(feats) {
			return nil, fmt.Errorf("%w: view %s feature %d", ErrFeatureNotFound, viewID, fi)
		}
		out[i] = feats[fi]
	}
	return out, nil
}

// LookupShape implements Store.
func (m *MemStore) LookupShape(viewID string) (Shape, error) {
	s, ok := m.shapes[viewID]
	if !ok {
		return Shape{}, fmt.Errorf("%w: %s", ErrViewNotFound, viewID)
	}
	return s, nil
}
