package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"canmlio/internal/infrastructure"
)

// HealthHandler answers liveness probes.
type HealthHandler struct {
	started time.Time
}

// NewHealthHandler creates a health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{started: time.Now()}
}

// Health handles GET /healthz
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":  "healthy",
		"service": infrastructure.ServiceName,
		"version": infrastructure.ServiceVersion,
		"uptime":  time.Since(h.started).String(),
	})
}
