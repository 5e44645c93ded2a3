package api

import (
	"context"
	"net/http"
	"time"

	"github.com/phrazzld/scheduled-mail-api/internal/api/shared"
)

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checker ReadinessChecker
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler. Each readiness probe is bounded
// by timeout.
func NewHealthHandler(checker ReadinessChecker, timeout time.Duration) *HealthHandler {
	return &HealthHandler{checker: checker, timeout: timeout}
}

// Live handles GET /health. It only reports that the process is serving.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	if err := h.checker.Ready(ctx); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
