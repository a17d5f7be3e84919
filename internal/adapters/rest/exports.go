package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/calliope-audio/stemforge/internal/core/domain"
)

// startExportRequest defines what the client sends us. The project id
// comes from the URL; everything else mirrors domain.ExportRequest.
type startExportRequest struct {
	UserID            string   `json:"userId"`
	Format            string   `json:"format"`
	SampleRate        int      `json:"sampleRate"`
	BitDepth          int      `json:"bitDepth"`
	BitrateKbps       int      `json:"bitrate"`
	Normalize         bool     `json:"normalize"`
	NormalizationType string   `json:"normalizationType"`
	TargetLevel       float64  `json:"targetLevel"`
	IncludeEffects    bool     `json:"includeEffects"`
	IncludeMasterBus  bool     `json:"includeMasterBus"`
	TrackIDs          []string `json:"trackIds"`
}

type startExportResponse struct {
	ExportID  string `json:"exportId"`
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	StatusURL string `json:"statusUrl"`
}

type listExportsResponse struct {
	Exports []domain.ExportJob `json:"exports"`
	Total   int                `json:"total"`
}

// StartExport handles POST /projects/{id}/exports
func (h *Handler) StartExport(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	projectID := r.PathValue("id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project id is required")
		return
	}

	// 1. Decode the Request Body
	var req startExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// 2. Call the Service (The Core Logic)
	job, err := h.svc.StartExport(r.Context(), domain.ExportRequest{
		ProjectID:         projectID,
		UserID:            req.UserID,
		Format:            domain.Format(req.Format),
		SampleRate:        req.SampleRate,
		BitDepth:          req.BitDepth,
		BitrateKbps:       req.BitrateKbps,
		Normalize:         req.Normalize,
		NormalizationType: domain.NormalizationType(req.NormalizationType),
		TargetLevel:       req.TargetLevel,
		IncludeEffects:    req.IncludeEffects,
		IncludeMasterBus:  req.IncludeMasterBus,
		TrackIDs:          req.TrackIDs,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// 3. Return the Response: rendering is detached, the caller polls.
	w.Header().Set("Location", "/exports/"+job.ID)
	writeJSON(w, http.StatusAccepted, startExportResponse{
		ExportID:  job.ID,
		JobID:     job.ID,
		Status:    string(job.Status),
		StatusURL: "/exports/" + job.ID,
	})
}

// GetExport handles GET /exports/{id}
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetDownload handles GET /exports/{id}/download
func (h *Handler) GetDownload(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GetDownload(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// CancelExport handles POST /exports/{id}/cancel
func (h *Handler) CancelExport(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// DeleteExport handles DELETE /exports/{id}
func (h *Handler) DeleteExport(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListExports handles GET /projects/{id}/exports?limit=&offset=
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	jobs, total, err := h.svc.List(r.Context(), projectID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listExportsResponse{Exports: jobs, Total: total})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
