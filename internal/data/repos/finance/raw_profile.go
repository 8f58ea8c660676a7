package finance

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type rawProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRawProfileRepo(db *gorm.DB, baseLog *logger.Logger) RawProfileRepo {
	return &rawProfileRepo{db: db, log: baseLog.With("repo", "RawProfileRepo")}
}

func (r *rawProfileRepo) ListUserIDs(dbc dbctx.Context) ([]string, error) {
	var ids []string
	if err := dbc.DB(r.db).
		Model(&types.RawProfileRow{}).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *rawProfileRepo) Get(dbc dbctx.Context, userID string) (*types.RawRecord, error) {
	var row types.RawProfileRow
	err := dbc.DB(r.db).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("raw profile %s: %w", userID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	doc, err := decodeDoc(row.Doc, true)
	if err != nil {
		return nil, err
	}
	return &types.RawRecord{UserID: row.UserID, Doc: doc}, nil
}

func (r *rawProfileRepo) Insert(dbc dbctx.Context, records []*types.RawRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	rows := make([]*types.RawProfileRow, 0, len(records))
	for _, rec := range records {
		if rec == nil || strings.TrimSpace(rec.UserID) == "" {
			return 0, fmt.Errorf("raw record without user_id: %w", apperr.ErrInvalidArgument)
		}
		doc := make(map[string]any, len(rec.Doc)+1)
		for k, v := range rec.Doc {
			doc[k] = v
		}
		doc["user_id"] = rec.UserID
		raw, err := encodeDoc(doc)
		if err != nil {
			return 0, err
		}
		rows = append(rows, &types.RawProfileRow{UserID: rec.UserID, Doc: raw})
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}
