package rest

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// eventPollInterval is how often the socket re-reads job state. Fast
// enough to track per-track progress, slow enough to spare the DB.
const eventPollInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-origin policy is enforced upstream; the API itself is
	// origin-agnostic.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ExportEvents handles GET /exports/{id}/events. It upgrades to a
// websocket and pushes job snapshots until the job reaches a terminal
// state or the client disconnects.
func (h *Handler) ExportEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Reject unknown jobs before upgrading so the client gets a proper
	// HTTP status instead of an immediate socket close.
	job, err := h.svc.GetStatus(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARN rest: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(job); err != nil {
		return
	}
	if job.Status.Terminal() {
		return
	}

	ticker := time.NewTicker(eventPollInterval)
	defer ticker.Stop()

	lastProgress := job.Progress
	lastStatus := job.Status
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		job, err := h.svc.GetStatus(r.Context(), id)
		if err != nil {
			// Deleted mid-watch: tell the client and stop.
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "export no longer available")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}

		if job.Progress != lastProgress || job.Status != lastStatus {
			if err := conn.WriteJSON(job); err != nil {
				return
			}
			lastProgress = job.Progress
			lastStatus = job.Status
		}
		if job.Status.Terminal() {
			return
		}
	}
}
