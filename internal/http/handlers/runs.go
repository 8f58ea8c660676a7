package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/finpulse-backend/internal/http/response"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/pipeline"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

const HeaderRunID = "X-Run-Id"

type PipelineRunner interface {
	RunPipeline(ctx context.Context, opts pipeline.RunOptions) (*pipeline.PipelineReport, error)
	RunSuggestions(ctx context.Context) (*pipeline.SuggestionReport, error)
}

type RunHandler struct {
	log    *logger.Logger
	runner PipelineRunner
}

func NewRunHandler(log *logger.Logger, runner PipelineRunner) *RunHandler {
	return &RunHandler{log: log.With("handler", "RunHandler"), runner: runner}
}

// POST /api/runs/pipeline?force=true
func (h *RunHandler) RunPipeline(c *gin.Context) {
	force := false
	if raw := c.Query("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_force", err)
			return
		}
		force = v
	}
	report, err := h.runner.RunPipeline(c.Request.Context(), pipeline.RunOptions{Force: force})
	if err != nil {
		h.respondRunError(c, err)
		return
	}
	c.Header(HeaderRunID, report.RunID)
	response.RespondOK(c, gin.H{"report": report})
}

// POST /api/runs/suggestions
func (h *RunHandler) RunSuggestions(c *gin.Context) {
	report, err := h.runner.RunSuggestions(c.Request.Context())
	if err != nil {
		h.respondRunError(c, err)
		return
	}
	c.Header(HeaderRunID, report.RunID)
	response.RespondOK(c, gin.H{"report": report})
}

func (h *RunHandler) respondRunError(c *gin.Context, err error) {
	if errors.Is(err, pipeline.ErrRunInProgress) {
		response.RespondError(c, http.StatusConflict, "run_in_progress", err)
		return
	}
	h.log.Error("Run failed", "path", c.FullPath(), "error", err)
	response.RespondError(c, http.StatusInternalServerError, "run_failed", err)
}
