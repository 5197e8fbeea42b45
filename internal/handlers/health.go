package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MuhammadAbdiel/aora-app/internal/logging"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	Checks map[string]Pinger
}

// Handle implements GET /healthz. Every registered dependency is pinged; any failure
// turns the response into a 503.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	payload := map[string]any{"status": "ok"}

	if len(h.Checks) > 0 {
		results := make(map[string]string, len(h.Checks))
		for name, check := range h.Checks {
			if err := check.Ping(ctx); err != nil {
				logging.FromContext(ctx).Warn("health check failed", "dependency", name, "error", err)
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				payload["status"] = "degraded"
				continue
			}
			results[name] = "ok"
		}
		payload["checks"] = results
	}

	respondJSON(r.Context(), w, status, payload)
}
