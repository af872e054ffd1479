package api

import (
	"net/http"
	"time"

	"github.com/vitalhub/vitalsync/internal/api/respond"
)

// HealthReporter exposes cached service health for the health endpoint.
type HealthReporter interface {
	IsHealthy() bool
	Components() map[string]bool
}

// HealthHandler serves GET /api/health.
type HealthHandler struct {
	reporter HealthReporter
}

func NewHealthHandler(r HealthReporter) *HealthHandler { return &HealthHandler{reporter: r} }

// CheckHealth always returns 200; the body reports healthy/unhealthy per
// component. A non-200 here means the handler itself failed.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	if h.reporter.IsHealthy() {
		status = "healthy"
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"components": h.reporter.Components(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
