// Package rest exposes the export orchestrator over HTTP.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/calliope-audio/stemforge/internal/core/domain"
	"github.com/calliope-audio/stemforge/internal/core/ports"
	"github.com/calliope-audio/stemforge/internal/core/services"
)

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc    *services.Orchestrator // Dependency on the Core Service
	router *http.ServeMux         // Standard library router
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc *services.Orchestrator) *Handler {
	h := &Handler{
		svc:    svc,
		router: http.NewServeMux(),
	}

	// Register Routes
	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
// It acts as a proxy, passing the request to our internal router.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	// Health Check
	h.router.HandleFunc("GET /health", h.HealthCheck)
	// Export Management
	h.router.HandleFunc("POST /projects/{id}/exports", h.StartExport)
	h.router.HandleFunc("GET /projects/{id}/exports", h.ListExports)
	h.router.HandleFunc("GET /exports/{id}", h.GetExport)
	h.router.HandleFunc("GET /exports/{id}/download", h.GetDownload)
	h.router.HandleFunc("POST /exports/{id}/cancel", h.CancelExport)
	h.router.HandleFunc("DELETE /exports/{id}", h.DeleteExport)
	h.router.HandleFunc("GET /exports/{id}/events", h.ExportEvents)
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "stemforge is live"})
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(ct, "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps core error types onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr ports.ValidationError
	var stateErr domain.JobStateError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &stateErr):
		writeError(w, http.StatusConflict, stateErr.Error())
	case errors.Is(err, services.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
