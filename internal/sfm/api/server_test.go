package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/config"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/graph"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/imagestore"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/pipeline"
)

func newTestServer() *Server {
	g := graph.New()
	g.AddView("A", 2)
	store := imagestore.NewMemStore()
	orch := pipeline.New(g, store)
	return NewServer(orch)
}

func TestHandleReconstructRejectsNonPost(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/reconstruct/A", nil)
	rec := httptest.NewRecorder()

	s.ServeMux().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleReconstructRejectsMissingSeedID(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/reconstruct/", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	s.ServeMux().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing seed view id, got %d", rec.Code)
	}
}

func TestHandleReconstructRejectsInvalidJSON(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/reconstruct/A", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	s.ServeMux().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", rec.Code)
	}
}

func TestHandleReconstructMapsStereoUnsupportedTo400(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(reconstructRequest{SeedConnIdx: []int{0}})
	req := httptest.NewRequest(http.MethodPost, "/reconstruct/A", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ServeMux().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected stereo-unsupported to map to 400, got %d", rec.Code)
	}

	var resp reconstructResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == "" {
		t.Fatalf("expected a non-empty error message in the response body")
	}
}

func TestHandleReconstructMapsDegenerateTopologyTo422(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(reconstructRequest{SeedConnIdx: []int{}})
	req := httptest.NewRequest(http.MethodPost, "/reconstruct/A", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ServeMux().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected degenerate-topology to map to 422, got %d", rec.Code)
	}
}

// threeViewScene builds a small but non-degenerate three-view scene
// (enough triple matches to clear the trifocal fitter's minimal
// sample) directly through graph.Graph and imagestore.MemStore, the
// same collaborators a real deployment wires into pipeline.New.
func threeViewScene() (*graph.Graph, *imagestore.MemStore) {
	points := make([][4]float64, 12)
	for i := range points {
		points[i] = [4]float64{float64(i%4) - 1.5, float64(i/4) - 1, 5 + float64(i%3)*0.5, 1}
	}

	camB := mat.NewDense(3, 4, []float64{
		1, 0, 0, -1,
		0, 1, 0, 0,
		0, 0, 1, 0,
	})
	camC := mat.NewDense(3, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, -1,
		0, 0.1, 1, 0,
	})
	cams := []kernels.CameraMatrix{kernels.Identity3x4(), camB, camC}

	g := graph.New()
	views := []string{"A", "B", "C"}
	for _, v := range views {
		g.AddView(v, len(points))
	}
	corr := make([]graph.Correspondence, len(points))
	for i := range corr {
		corr[i] = graph.Correspondence{SrcFeat: i, DstFeat: i}
	}
	g.AddEdge("A", "B", corr, 1.0)
	g.AddEdge("A", "C", corr, 1.0)
	g.AddEdge("B", "C", corr, 1.0)

	store := imagestore.NewMemStore()
	for i, v := range views {
		feats := make([]kernels.Vec2, len(points))
		cam := cams[i]
		for j, x := range points {
			var proj [3]float64
			for r := 0; r < 3; r++ {
				var sum float64
				for c := 0; c < 4; c++ {
					sum += cam.At(r, c) * x[c]
				}
				proj[r] = sum
			}
			feats[j] = kernels.Vec2{X: proj[0] / proj[2], Y: proj[1] / proj[2]}
		}
		store.AddView(v, imagestore.Shape{Width: 640, Height: 480, TotalFeatures: len(points)}, feats)
	}

	return g, store
}

func TestHandleReconstructWritesTopDownPlotWhenDiagnosticsDirSet(t *testing.T) {
	g, store := threeViewScene()
	orch := pipeline.New(g, store)
	s := NewServer(orch)

	dir := t.TempDir()
	s.SetDiagnosticsDir(dir)

	body, _ := json.Marshal(reconstructRequest{SeedConnIdx: []int{0, 1}})
	req := httptest.NewRequest(http.MethodPost, "/reconstruct/A", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ServeMux().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp reconstructResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TopDownPlot == "" {
		t.Fatalf("expected a non-empty topDownPlot path in the response")
	}
	if filepath.Dir(resp.TopDownPlot) != dir {
		t.Fatalf("expected plot to be written under %s, got %s", dir, resp.TopDownPlot)
	}
	if _, err := os.Stat(resp.TopDownPlot); err != nil {
		t.Fatalf("expected plot file to exist on disk: %v", err)
	}
}

func TestHandleReconstructOmitsTopDownPlotWhenDiagnosticsDirUnset(t *testing.T) {
	g, store := threeViewScene()
	orch := pipeline.New(g, store)
	s := NewServer(orch)

	body, _ := json.Marshal(reconstructRequest{SeedConnIdx: []int{0, 1}})
	req := httptest.NewRequest(http.MethodPost, "/reconstruct/A", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ServeMux().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp reconstructResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TopDownPlot != "" {
		t.Fatalf("expected no topDownPlot path when diagnostics are disabled, got %q", resp.TopDownPlot)
	}
}

func TestApplyConfigOverridesOnlyTouchesSetFields(t *testing.T) {
	cfg := config.DefaultConfig()
	maxIter := 42
	applyConfigOverrides(&cfg, &configRequest{RansacMaxIterations: &maxIter})

	if cfg.RansacMaxIterations != 42 {
		t.Fatalf("expected override to apply, got %d", cfg.RansacMaxIterations)
	}
	if cfg.ConvergeMaxIterations != 200 {
		t.Fatalf("expected untouched field to retain its default, got %d", cfg.ConvergeMaxIterations)
	}
}
