package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/finpulse-backend/internal/modules/finance/pipeline"
)

type StorePinger interface {
	Ping(ctx context.Context) error
}

type PassState interface {
	Running(pass string) bool
}

type HealthHandler struct {
	store   StorePinger
	passes  PassState
	timeout time.Duration
}

// NewHealthHandler reports store reachability and which passes are running.
// Either dependency may be nil.
func NewHealthHandler(store StorePinger, passes PassState) *HealthHandler {
	return &HealthHandler{store: store, passes: passes, timeout: 2 * time.Second}
}

// GET /healthcheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status, code := "ok", http.StatusOK
	store := "unchecked"
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			status, code, store = "degraded", http.StatusServiceUnavailable, err.Error()
		} else {
			store = "ok"
		}
	}
	running := map[string]bool{}
	if h.passes != nil {
		for _, pass := range []string{pipeline.PassPipeline, pipeline.PassSuggestions} {
			running[pass] = h.passes.Running(pass)
		}
	}
	c.JSON(code, gin.H{"status": status, "store": store, "running": running})
}
