package imagestore

import (
	"errors"
	"testing"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
)

func TestMemStoreLookupRoundTrip(t *testing.T) {
	m := NewMemStore()
	feats := []kernels.Vec2{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}}
	m.AddView("A", Shape{Width: 100, Height: 200, TotalFeatures: 3}, feats)

	got, err := m.LookupPixelFeats("A", []int{2, 0})
	if err != nil {
		t.Fatalf("LookupPixelFeats: %v", err)
	}
	if got[0] != feats[2] || got[1] != feats[0] {
		t.Fatalf("unexpected lookup order: %+v", got)
	}

	shape, err := m.LookupShape("A")
	if err != nil {
		t.Fatalf("LookupShape: %v", err)
	}
	if shape.TotalFeatures != 3 {
		t.Fatalf("unexpected shape: %+v", shape)
	}
}

func TestMemStoreUnknownView(t *testing.T) {
	m := NewMemStore()
	if _, err := m.LookupShape("missing"); !errors.Is(err, ErrViewNotFound) {
		t.Fatalf("expected ErrViewNotFound, got %v", err)
	}
}

func TestMemStoreFeatureOutOfRange(t *testing.T) {
	m := NewMemStore()
	m.AddView("A", Shape{TotalFeatures: 1}, []kernels.Vec2{{X: 0, Y: 0}})
	if _, err := m.LookupPixelFeats("A", []int{5}); !errors.Is(err, ErrFeatureNotFound) {
		t.Fatalf("expected ErrFeatureNotFound, got %v", err)
	}
}
