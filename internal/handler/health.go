package handler

import (
	"net/http"

	"github.com/collabcore/realtime-platform/internal/collab"
	natsclient "github.com/collabcore/realtime-platform/internal/nats"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	natsClient *natsclient.Client
	manager    *collab.Manager
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(natsClient *natsclient.Client, manager *collab.Manager) *HealthHandler {
	return &HealthHandler{
		natsClient: natsClient,
		manager:    manager,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	rooms, users := h.manager.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"active_rooms": rooms,
		"active_users": users,
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	// Check NATS connection
	if h.natsClient == nil || !h.natsClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
