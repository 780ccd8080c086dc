package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/svc-users/repositories"
	"github.com/upb/svc-users/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles liveness and readiness probes
type HealthHandler struct {
	store   repositories.HealthChecker
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. A nil store is always ready.
func NewHealthHandler(store repositories.HealthChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:   store,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// HandleHealth handles GET /healthz.
// Liveness only; it never touches dependencies.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.checkStore(ctx); err != nil {
		h.logger.Warn("store readiness check failed", zap.Error(err))
		if err := utils.WriteServiceUnavailable(w, "store unavailable"); err != nil {
			h.logger.Error("failed to write readiness response", zap.Error(err))
		}
		return
	}

	response := HealthResponse{
		Status: "ready",
		Checks: map[string]string{"store": "healthy"},
	}
	if err := utils.WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

func (h *HealthHandler) checkStore(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	return h.store.HealthCheck(ctx)
}
