package handlers

import (
	"context"
	"net/http"
	"time"

	"p2pstats/internal/service"
	"p2pstats/pkg/httputil"

	"gitlab.com/nevasik7/alerting/logger"
)

type Handler struct {
	Log      logger.Logger
	Reporter *service.ReporterService
}

func NewHandler(log logger.Logger, reporter *service.ReporterService) *Handler {
	if reporter == nil {
		panic("reporter service cannot be nil")
	}

	return &Handler{Log: log, Reporter: reporter}
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	if err := httputil.JSON(w, http.StatusOK, map[string]any{}, nil); err != nil {
		h.Log.Errorf("Healthz handler error: %s", err.Error())
	}
}

// Check health of external services/clients
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := h.Reporter.CheckDependency(ctx); err != nil {
		err = httputil.Error(w, r, http.StatusServiceUnavailable, "dependencies_unhealthy", "dependencies check failed", map[string]any{
			"error": err.Error(),
		})
		if err != nil {
			h.Log.Errorf("Readiness handler error: %s", err.Error())
		}
		return
	}

	if err := httputil.JSON(w, http.StatusOK, map[string]string{"dependencies": "healthy"}, nil); err != nil {
		h.Log.Errorf("Readiness handler error: %s", err.Error())
	}
}
