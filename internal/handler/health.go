package handler

import (
	"net/http"
	"time"

	"hothour-sync/pkg/response"
)

// StartTime tracks when the daemon started for uptime calculation.
var StartTime = time.Now()

// Handler contains the shared status handlers.
type Handler struct {
	version string
}

// New creates a new handler.
func New(version string) *Handler {
	return &Handler{version: version}
}

// StatusResponse represents the daemon status response.
type StatusResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	response.OK(w, StatusResponse{
		Status:    "running",
		Version:   h.version,
		Uptime:    time.Since(StartTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	})
}
