package finance

import (
	"strings"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type suggestionHistoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSuggestionHistoryRepo(db *gorm.DB, baseLog *logger.Logger) SuggestionHistoryRepo {
	return &suggestionHistoryRepo{db: db, log: baseLog.With("repo", "SuggestionHistoryRepo")}
}

// Get returns the history in chronological order; a user with no entries
// gets an empty history.
func (r *suggestionHistoryRepo) Get(dbc dbctx.Context, userID string) (*types.SuggestionHistory, error) {
	var rows []*types.SuggestionEntryRow
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	h := &types.SuggestionHistory{UserID: userID, Entries: make([]types.SuggestionEntry, 0, len(rows))}
	for _, row := range rows {
		h.Entries = append(h.Entries, types.SuggestionEntry{Text: row.Text, CreatedAt: row.CreatedAt.UTC()})
	}
	return h, nil
}

// Append inserts one entry. A single-row insert is atomic, so concurrent
// appends for a user never overwrite each other.
func (r *suggestionHistoryRepo) Append(dbc dbctx.Context, userID string, entry types.SuggestionEntry) error {
	if strings.TrimSpace(entry.Text) == "" {
		return apperr.ErrInvalidArgument
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	row := &types.SuggestionEntryRow{UserID: userID, Text: entry.Text, CreatedAt: createdAt.UTC()}
	return dbc.DB(r.db).Create(row).Error
}
