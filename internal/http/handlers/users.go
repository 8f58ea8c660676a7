package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	financerepo "github.com/yungbote/finpulse-backend/internal/data/repos/finance"
	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/http/response"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type UserHandler struct {
	log      *logger.Logger
	profiles financerepo.FinanceProfileRepo
	history  financerepo.SuggestionHistoryRepo
	now      func() time.Time
}

func NewUserHandler(log *logger.Logger, profiles financerepo.FinanceProfileRepo, history financerepo.SuggestionHistoryRepo) *UserHandler {
	return &UserHandler{log: log.With("handler", "UserHandler"), profiles: profiles, history: history, now: time.Now}
}

// GET /api/users/:user_id/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID := c.Param("user_id")
	sp, err := h.profiles.Get(dbctx.For(c.Request.Context()), userID)
	if errors.Is(err, apperr.ErrNotFound) {
		response.RespondError(c, http.StatusNotFound, "profile_not_found", err)
		return
	}
	if err != nil {
		h.log.Error("Load profile failed", "user_id", userID, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "load_profile_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"profile": sp.Merged()})
}

// GET /api/users/:user_id/suggestions?since_days=30
func (h *UserHandler) ListSuggestions(c *gin.Context) {
	userID := c.Param("user_id")
	hist, err := h.history.Get(dbctx.For(c.Request.Context()), userID)
	if err != nil {
		h.log.Error("Load suggestion history failed", "user_id", userID, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "load_suggestions_failed", err)
		return
	}
	entries := hist.Entries
	if raw := c.Query("since_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_since_days", errors.New("since_days must be a non-negative integer"))
			return
		}
		entries = hist.Since(h.now().Add(-time.Duration(days) * 24 * time.Hour))
	}
	if entries == nil {
		entries = []types.SuggestionEntry{}
	}
	response.RespondOK(c, gin.H{"user_id": userID, "suggestions": entries})
}
