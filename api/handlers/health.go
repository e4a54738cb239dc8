package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Service   string    `json:"service"`
}

// HealthHandler answers liveness probes
type HealthHandler struct {
	version string
}

// NewHealthHandler creates a HealthHandler reporting version
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// Health always reports healthy while the process serves requests
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Service:   "dqe",
	})
}
