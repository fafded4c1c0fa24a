package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avila-gabriel/game-balance/internal/registry"
	"github.com/avila-gabriel/game-balance/internal/report"
	"github.com/avila-gabriel/game-balance/pkg/logger"
)

type HTTPServer struct {
	mux      *http.ServeMux
	store    *RunStore
	reg      *registry.Registry
	Executor *Executor
}

func NewHTTPServer(store *RunStore, executor *Executor, reg *registry.Registry) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		reg:      reg,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/systems", s.handleSystems)
	s.mux.HandleFunc("/v1/runs", s.handleRuns)
	s.mux.HandleFunc("/v1/runs/", s.handleRunByID)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSystems handles GET /v1/systems
func (s *HTTPServer) handleSystems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"systems": s.reg.Systems(),
		"genres":  s.reg.Genres(),
	})
}

// handleRuns handles /v1/runs endpoint
func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRunByID handles /v1/runs/{id}, /v1/runs/{id}:stop and /v1/runs/{id}/report
func (s *HTTPServer) handleRunByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	if strings.HasSuffix(path, ":stop") {
		runID := strings.TrimSuffix(path, ":stop")
		if r.Method == http.MethodPost {
			s.handleStopRun(w, r, runID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if strings.HasSuffix(path, "/report") {
		runID := strings.TrimSuffix(path, "/report")
		if r.Method == http.MethodGet {
			s.handleReport(w, r, runID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if strings.Contains(path, "/") {
		s.writeError(w, http.StatusNotFound, "unknown endpoint")
		return
	}

	if r.Method == http.MethodGet {
		s.handleGetRun(w, r, path)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateRun handles POST /v1/runs
func (s *HTTPServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID        string `json:"run_id,omitempty"`
		ScenarioYAML string `json:"scenario_yaml"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ScenarioYAML) == "" {
		s.writeError(w, http.StatusBadRequest, "scenario_yaml is required")
		return
	}

	rec, err := s.Executor.Submit(req.RunID, req.ScenarioYAML)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunExists):
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrInvalidScenario), errors.Is(err, ErrInvalidRunID):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("run created (HTTP)", "run_id", rec.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"run": rec,
	})
}

// handleListRuns handles GET /v1/runs with pagination and status filtering
func (s *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, maxListLimit)
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	var status RunStatus
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status = ParseRunStatus(statusStr)
		if status == "" {
			s.writeError(w, http.StatusBadRequest, "unknown status: "+statusStr)
			return
		}
	}

	runs := s.store.List(limit, offset, status)
	summaries := make([]RunRecord, 0, len(runs))
	for _, rec := range runs {
		// Listings stay small; results are served per run.
		rec.Result = nil
		summaries = append(summaries, rec)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs": summaries,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(summaries),
		},
	})
}

// handleGetRun handles GET /v1/runs/{id}
func (s *HTTPServer) handleGetRun(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": rec,
	})
}

// handleStopRun handles POST /v1/runs/{id}:stop
func (s *HTTPServer) handleStopRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrRunIDMissing):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrRunTerminal):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("run cancelled (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": updated,
	})
}

// handleReport handles GET /v1/runs/{id}/report?format=text|csv|json
func (s *HTTPServer) handleReport(w http.ResponseWriter, r *http.Request, runID string) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rec.Result == nil {
		s.writeError(w, http.StatusConflict, "run has no result yet (status "+string(rec.Status)+")")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteResult(&buf, format, rec.Result); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Error("failed to write report", "run_id", runID, "error", err)
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
