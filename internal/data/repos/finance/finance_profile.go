package finance

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type financeProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFinanceProfileRepo(db *gorm.DB, baseLog *logger.Logger) FinanceProfileRepo {
	return &financeProfileRepo{db: db, log: baseLog.With("repo", "FinanceProfileRepo")}
}

func (r *financeProfileRepo) Exists(dbc dbctx.Context, userID string) (bool, error) {
	var count int64
	if err := dbc.DB(r.db).
		Model(&types.FinanceProfileRow{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *financeProfileRepo) Get(dbc dbctx.Context, userID string) (*types.StoredProfile, error) {
	var row types.FinanceProfileRow
	err := dbc.DB(r.db).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("finance profile %s: %w", userID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return toStored(&row)
}

func (r *financeProfileRepo) List(dbc dbctx.Context) ([]*types.StoredProfile, error) {
	var rows []*types.FinanceProfileRow
	if err := dbc.DB(r.db).Order("user_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toStoredList(rows)
}

func (r *financeProfileRepo) ListWithPattern(dbc dbctx.Context) ([]*types.StoredProfile, error) {
	var rows []*types.FinanceProfileRow
	if err := dbc.DB(r.db).
		Where("founded_pattern <> ''").
		Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toStoredList(rows)
}

func (r *financeProfileRepo) Find(dbc dbctx.Context, filter map[string]any, limit int) ([]map[string]any, error) {
	q := dbc.DB(r.db).Model(&types.FinanceProfileRow{})
	for key, val := range filter {
		if !ValidFilterKey(key) {
			return nil, fmt.Errorf("filter key %q: %w", key, apperr.ErrInvalidArgument)
		}
		switch key {
		case "user_id", "founded_pattern":
			q = q.Where(key+" = ?", val)
		default:
			q = q.Where(datatypes.JSONQuery("profile_doc").Equals(val, key))
		}
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []*types.FinanceProfileRow
	if err := q.Order("user_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		sp, err := toStored(row)
		if err != nil {
			return nil, err
		}
		out = append(out, sp.Merged())
	}
	return out, nil
}

func (r *financeProfileRepo) Upsert(dbc dbctx.Context, userID string, doc map[string]any) error {
	clean := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "founded_pattern" {
			continue
		}
		clean[k] = v
	}
	clean["user_id"] = userID
	raw, err := encodeDoc(clean)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	row := &types.FinanceProfileRow{UserID: userID, ProfileDoc: raw, CreatedAt: now, UpdatedAt: now}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"profile_doc", "updated_at"}),
		}).
		Create(row).Error
}

func (r *financeProfileRepo) GetFoundedPattern(dbc dbctx.Context, userID string) (string, error) {
	var patterns []string
	if err := dbc.DB(r.db).
		Model(&types.FinanceProfileRow{}).
		Where("user_id = ?", userID).
		Limit(1).
		Pluck("founded_pattern", &patterns).Error; err != nil {
		return "", err
	}
	if len(patterns) == 0 {
		return "", fmt.Errorf("finance profile %s: %w", userID, apperr.ErrNotFound)
	}
	return patterns[0], nil
}

func (r *financeProfileRepo) SetFoundedPattern(dbc dbctx.Context, userID, pattern string) error {
	now := time.Now().UTC()
	raw, err := encodeDoc(map[string]any{"user_id": userID})
	if err != nil {
		return err
	}
	row := &types.FinanceProfileRow{UserID: userID, ProfileDoc: raw, FoundedPattern: pattern, CreatedAt: now, UpdatedAt: now}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"founded_pattern", "updated_at"}),
		}).
		Create(row).Error
}

func toStored(row *types.FinanceProfileRow) (*types.StoredProfile, error) {
	doc, err := decodeDoc(row.ProfileDoc, false)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", row.UserID, err)
	}
	return &types.StoredProfile{UserID: row.UserID, Doc: doc, FoundedPattern: row.FoundedPattern}, nil
}

func toStoredList(rows []*types.FinanceProfileRow) ([]*types.StoredProfile, error) {
	out := make([]*types.StoredProfile, 0, len(rows))
	for _, row := range rows {
		sp, err := toStored(row)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}
