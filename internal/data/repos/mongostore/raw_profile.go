package mongostore

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	financerepo "github.com/yungbote/finpulse-backend/internal/data/repos/finance"
	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type rawProfileRepo struct {
	coll *mongo.Collection
	log  *logger.Logger
}

func NewRawProfileRepo(s *Store, baseLog *logger.Logger) financerepo.RawProfileRepo {
	return &rawProfileRepo{coll: s.RawProfiles(), log: baseLog.With("repo", "MongoRawProfileRepo")}
}

func (r *rawProfileRepo) ListUserIDs(dbc dbctx.Context) ([]string, error) {
	vals, err := r.coll.Distinct(dbc.Context(), "user_id", bson.D{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok && s != "" {
			ids = append(ids, s)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *rawProfileRepo) Get(dbc dbctx.Context, userID string) (*types.RawRecord, error) {
	var m bson.M
	err := r.coll.FindOne(dbc.Context(), bson.M{"user_id": userID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("raw profile %s: %w", userID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	doc, err := toMap(m)
	if err != nil {
		return nil, err
	}
	return &types.RawRecord{UserID: userID, Doc: doc}, nil
}

func (r *rawProfileRepo) Insert(dbc dbctx.Context, records []*types.RawRecord) (int, error) {
	inserted := 0
	for _, rec := range records {
		if rec == nil || strings.TrimSpace(rec.UserID) == "" {
			return inserted, fmt.Errorf("raw record without user_id: %w", apperr.ErrInvalidArgument)
		}
		doc, _ := bsonSafe(rec.Doc).(map[string]any)
		if doc == nil {
			doc = map[string]any{}
		}
		delete(doc, "_id")
		doc["user_id"] = rec.UserID
		res, err := r.coll.UpdateOne(dbc.Context(),
			bson.M{"user_id": rec.UserID},
			bson.M{"$setOnInsert": doc},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return inserted, err
		}
		inserted += int(res.UpsertedCount)
	}
	return inserted, nil
}
