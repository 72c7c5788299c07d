// Package api exposes the reconstruction pipeline over a thin
// net/http trigger endpoint: POST one seed view and a candidate edge
// list, get back a summary of the resulting scene structure.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot/vg"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/config"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/pipeline"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/report"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/structure"
)

// Server serves the reconstruction trigger endpoint over one
// Orchestrator.
type Server struct {
	orch *pipeline.Orchestrator
	mux  *http.ServeMux

	// diagDir, when non-empty, makes every successful reconstruction
	// also render a top-down camera/point plot under this directory
	// (spec.md §4.9's diagnostics surface, always optional and
	// nil-safe: a blank diagDir disables it entirely).
	diagDir string
}

// NewServer returns a Server routing requests to orch.
func NewServer(orch *pipeline.Orchestrator) *Server {
	s := &Server{orch: orch, mux: http.NewServeMux()}
	s.mux.HandleFunc("/reconstruct/", s.handleReconstruct)
	return s
}

// SetDiagnosticsDir enables top-down plot rendering for every
// successful reconstruction, writing PNGs to dir. Passing "" disables
// it (the default).
func (s *Server) SetDiagnosticsDir(dir string) { s.diagDir = dir }

// ServeMux returns the underlying mux, so callers can register
// additional routes before starting the server.
func (s *Server) ServeMux() *http.ServeMux { return s.mux }

type reconstructRequest struct {
	SeedConnIdx []int          `json:"seedConnIdx"`
	Config      *configRequest `json:"config,omitempty"`
}

// configRequest mirrors config.Config's overridable fields; omitted
// fields fall back to config.DefaultConfig(), while a field sent
// explicitly (even as zero) is applied as given.
type configRequest struct {
	RansacMaxIterations   *int     `json:"ransacMaxIterations,omitempty"`
	RansacInlierThreshold *float64 `json:"ransacInlierThreshold,omitempty"`
	ConvergeFTol          *float64 `json:"convergeFTol,omitempty"`
	ConvergeGTol          *float64 `json:"convergeGTol,omitempty"`
	ConvergeMaxIterations *int     `json:"convergeMaxIterations,omitempty"`
	ScaleSBA              *bool    `json:"scaleSBA,omitempty"`
}

type reconstructResponse struct {
	AttemptID   string `json:"attemptId"`
	ViewCount   int    `json:"viewCount"`
	PointCount  int    `json:"pointCount"`
	Error       string `json:"error,omitempty"`
	TopDownPlot string `json:"topDownPlot,omitempty"`
}

// handleReconstruct handles POST /reconstruct/{seedViewID}.
func (s *Server) handleReconstruct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "only POST is supported")
		return
	}

	seedID := strings.TrimPrefix(r.URL.Path, "/reconstruct/")
	if seedID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing seed view id")
		return
	}

	var req reconstructRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	cfg := config.DefaultConfig()
	applyConfigOverrides(&cfg, req.Config)

	ss, err := s.orch.Reconstruct(seedID, req.SeedConnIdx, cfg)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, pipeline.ErrStereoUnsupported) {
			status = http.StatusBadRequest
		}
		resp := reconstructResponse{Error: err.Error()}
		if ss != nil {
			resp.AttemptID = ss.AttemptID
			resp.ViewCount = len(ss.Views)
			resp.PointCount = len(ss.Points)
		}
		writeJSON(w, status, resp)
		return
	}

	resp := reconstructResponse{
		AttemptID:  ss.AttemptID,
		ViewCount:  len(ss.Views),
		PointCount: len(ss.Points),
	}
	if s.diagDir != "" {
		if path, err := s.renderTopDownPlot(ss); err != nil {
			log.Printf("api: rendering top-down plot for %s: %v", ss.AttemptID, err)
		} else {
			resp.TopDownPlot = path
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// renderTopDownPlot saves a top-down camera/point layout plot for ss
// under s.diagDir and returns the file path written.
func (s *Server) renderTopDownPlot(ss *structure.SceneStructure) (string, error) {
	p, err := report.CameraTopDownPlot(ss)
	if err != nil {
		return "", fmt.Errorf("build plot: %w", err)
	}

	path := filepath.Join(s.diagDir, fmt.Sprintf("%s-topdown.png", ss.AttemptID))
	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save plot: %w", err)
	}
	return path, nil
}

func applyConfigOverrides(cfg *config.Config, req *configRequest) {
	if req == nil {
		return
	}
	if req.RansacMaxIterations != nil {
		cfg.RansacMaxIterations = *req.RansacMaxIterations
	}
	if req.RansacInlierThreshold != nil {
		cfg.RansacInlierThreshold = *req.RansacInlierThreshold
	}
	if req.ConvergeFTol != nil {
		cfg.ConvergeFTol = *req.ConvergeFTol
	}
	if req.ConvergeGTol != nil {
		cfg.ConvergeGTol = *req.ConvergeGTol
	}
	if req.ConvergeMaxIterations != nil {
		cfg.ConvergeMaxIterations = *req.ConvergeMaxIterations
	}
	if req.ScaleSBA != nil {
		cfg.ScaleSBA = *req.ScaleSBA
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
