// Package handlers exposes the engine over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fraudsight/graph-engine/internal/builder"
	"github.com/fraudsight/graph-engine/internal/config"
	"github.com/fraudsight/graph-engine/internal/engine"
)

// ReadyFunc reports whether downstream dependencies are reachable.
type ReadyFunc func(ctx context.Context) error

// HTTPHandlers contains HTTP request handlers
type HTTPHandlers struct {
	engine *engine.Engine
	cfg    *config.Config
	ready  ReadyFunc
	logger *slog.Logger
}

// NewHTTPHandlers creates new HTTP handlers
func NewHTTPHandlers(engine *engine.Engine, cfg *config.Config, ready ReadyFunc, logger *slog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		engine: engine,
		cfg:    cfg,
		ready:  ready,
		logger: logger,
	}
}

// RegisterRoutes registers HTTP routes
func (h *HTTPHandlers) RegisterRoutes(router *mux.Router) {
	// Graph endpoints
	router.HandleFunc("/api/v1/subjects/{id}/graph", h.getSubjectGraph).Methods("GET")
	router.HandleFunc("/api/v1/subjects/{id}/communities", h.getSubjectCommunities).Methods("GET")
	router.HandleFunc("/api/v1/subjects/{id}/centrality", h.getSubjectCentrality).Methods("GET")
	router.HandleFunc("/api/v1/paths", h.getPath).Methods("GET")

	// Resolution endpoints
	router.HandleFunc("/api/v1/resolution/duplicates", h.findDuplicates).Methods("POST")
	router.HandleFunc("/api/v1/resolution/ai", h.resolveWithAI).Methods("POST")

	// Health check
	router.HandleFunc("/health", h.healthCheck).Methods("GET")
	router.HandleFunc("/ready", h.readinessCheck).Methods("GET")
}

// getSubjectGraph returns the bounded subgraph around a subject in graph
// elements form.
func (h *HTTPHandlers) getSubjectGraph(w http.ResponseWriter, r *http.Request) {
	subjectID := mux.Vars(r)["id"]

	opts, err := h.buildOptions(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	gctx, err := h.engine.BuildSubgraph(r.Context(), subjectID, opts)
	if err != nil {
		h.logger.Error("Failed to build subgraph", "subject_id", subjectID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to build subgraph", err)
		return
	}

	h.writeJSON(w, http.StatusOK, gctx.ToElements())
}

// getSubjectCommunities returns the community partition of a subject's
// subgraph.
func (h *HTTPHandlers) getSubjectCommunities(w http.ResponseWriter, r *http.Request) {
	subjectID := mux.Vars(r)["id"]

	opts, err := h.buildOptions(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	communities, err := h.engine.Communities(r.Context(), subjectID, opts)
	if err != nil {
		h.logger.Error("Failed to detect communities", "subject_id", subjectID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to detect communities", err)
		return
	}

	h.writeJSON(w, http.StatusOK, &CommunitiesResponse{
		SubjectID:   subjectID,
		Communities: communities,
		Count:       len(communities),
	})
}

// getSubjectCentrality returns the betweenness centrality ranking of a
// subject's subgraph.
func (h *HTTPHandlers) getSubjectCentrality(w http.ResponseWriter, r *http.Request) {
	subjectID := mux.Vars(r)["id"]

	opts, err := h.buildOptions(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	results, err := h.engine.CentralityRanking(r.Context(), subjectID, opts)
	if err != nil {
		h.logger.Error("Failed to calculate centrality", "subject_id", subjectID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to calculate centrality", err)
		return
	}

	h.writeJSON(w, http.StatusOK, &CentralityResponse{
		SubjectID: subjectID,
		Results:   results,
	})
}

// getPath returns a shortest path between two nodes of a seed subject's
// subgraph.
func (h *HTTPHandlers) getPath(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	seedID := query.Get("seed_id")
	sourceID := query.Get("source")
	targetID := query.Get("target")
	if seedID == "" || sourceID == "" || targetID == "" {
		h.writeError(w, http.StatusBadRequest, "seed_id, source and target are required", nil)
		return
	}

	opts, err := h.buildOptions(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result, err := h.engine.Path(r.Context(), seedID, opts, sourceID, targetID)
	if err != nil {
		h.logger.Error("Failed to find path", "seed_id", seedID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to find path", err)
		return
	}

	h.writeJSON(w, http.StatusOK, &PathResponse{
		SeedID:   seedID,
		SourceID: sourceID,
		TargetID: targetID,
		Path:     result.Path,
		Length:   result.Length,
		Found:    result.Length >= 0,
	})
}

// findDuplicates handles deterministic duplicate detection requests.
func (h *HTTPHandlers) findDuplicates(w http.ResponseWriter, r *http.Request) {
	var req FindDuplicatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if len(req.Entities) == 0 {
		h.writeError(w, http.StatusBadRequest, "entities is required", nil)
		return
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		h.writeError(w, http.StatusBadRequest, "threshold must be between 0 and 1", nil)
		return
	}

	matches := h.engine.FindDuplicates(req.Entities, req.Threshold)

	h.writeJSON(w, http.StatusOK, &FindDuplicatesResponse{
		Matches: matches,
		Count:   len(matches),
	})
}

// resolveWithAI handles AI-assisted resolution requests.
func (h *HTTPHandlers) resolveWithAI(w http.ResponseWriter, r *http.Request) {
	var req ResolveWithAIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if len(req.Entities) == 0 {
		h.writeError(w, http.StatusBadRequest, "entities is required", nil)
		return
	}

	matches, fellBack := h.engine.ResolveWithAI(r.Context(), req.Entities, req.Context)

	h.writeJSON(w, http.StatusOK, &ResolveWithAIResponse{
		Matches:  matches,
		Count:    len(matches),
		Fallback: fellBack,
	})
}

// healthCheck returns service health status
func (h *HTTPHandlers) healthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "graph-engine",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// readinessCheck returns service readiness status
func (h *HTTPHandlers) readinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "Service not ready", err)
			return
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ready",
		"service": "graph-engine",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// buildOptions parses the traversal query parameters shared by the graph
// endpoints.
func (h *HTTPHandlers) buildOptions(r *http.Request) (builder.Options, error) {
	query := r.URL.Query()
	opts := builder.Options{}

	if raw := query.Get("depth"); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil || depth < 1 || depth > h.cfg.GraphEngine.MaxTraversalDepth {
			return opts, fmt.Errorf("depth must be an integer between 1 and %d", h.cfg.GraphEngine.MaxTraversalDepth)
		}
		opts.MaxDepth = depth
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > h.cfg.GraphEngine.MaxPageLimit {
			return opts, fmt.Errorf("limit must be an integer between 1 and %d", h.cfg.GraphEngine.MaxPageLimit)
		}
		opts.PageLimit = limit
	}

	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return opts, fmt.Errorf("offset must be a non-negative integer")
		}
		opts.PageOffset = offset
	}

	return opts, nil
}

// writeJSON writes a JSON response
func (h *HTTPHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// writeError writes error response
func (h *HTTPHandlers) writeError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err != nil && h.cfg.Server.Debug {
		response["details"] = err.Error()
	}

	h.writeJSON(w, status, response)
}
