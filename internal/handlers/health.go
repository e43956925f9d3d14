package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service and store health
type HealthHandler struct {
	checks  map[string]Pinger
	timeout time.Duration
	logger  *slog.Logger
}

func NewHealthHandler(checks map[string]Pinger, timeout time.Duration, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: timeout, logger: logger}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", slog.String("check", name), pkglogger.Err(err))
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	pkghttp.WriteJSON(w, status, resp)
}

// Root handles GET /
func Root(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Gatekeeper login gate is running"})
}
