package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/brightbooks/recon-engine/internal/api/dto"
	"github.com/brightbooks/recon-engine/internal/infrastructure/storage"
)

// HealthHandler reports process and storage health.
type HealthHandler struct {
	repo storage.Repository
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo storage.Repository) *HealthHandler {
	return &HealthHandler{repo: repo}
}

// ServeHTTP answers the health check. Storage is exercised with a
// cheap read; an unreachable database degrades the check to 503 so
// load balancers rotate the instance out.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := dto.HealthResponse{
		Status:    "ok",
		Database:  "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	runs, err := h.repo.ListRuns(r.Context(), 1)
	switch {
	case err != nil:
		response.Status = "degraded"
		response.Database = "unreachable"
		status = http.StatusServiceUnavailable
	case len(runs) > 0:
		response.LastRunState = runs[0].State
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
