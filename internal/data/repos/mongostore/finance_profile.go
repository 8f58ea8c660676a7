package mongostore

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	financerepo "github.com/yungbote/finpulse-backend/internal/data/repos/finance"
	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type financeProfileRepo struct {
	coll *mongo.Collection
	log  *logger.Logger
}

func NewFinanceProfileRepo(s *Store, baseLog *logger.Logger) financerepo.FinanceProfileRepo {
	return &financeProfileRepo{coll: s.Profiles(), log: baseLog.With("repo", "MongoFinanceProfileRepo")}
}

var hasPattern = bson.M{"founded_pattern": bson.M{"$exists": true, "$nin": bson.A{"", nil}}}

func (r *financeProfileRepo) Exists(dbc dbctx.Context, userID string) (bool, error) {
	n, err := r.coll.CountDocuments(dbc.Context(), bson.M{"user_id": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *financeProfileRepo) Get(dbc dbctx.Context, userID string) (*types.StoredProfile, error) {
	var m bson.M
	err := r.coll.FindOne(dbc.Context(), bson.M{"user_id": userID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("finance profile %s: %w", userID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return toStored(m)
}

func (r *financeProfileRepo) List(dbc dbctx.Context) ([]*types.StoredProfile, error) {
	return r.list(dbc, bson.M{}, 0)
}

func (r *financeProfileRepo) ListWithPattern(dbc dbctx.Context) ([]*types.StoredProfile, error) {
	return r.list(dbc, hasPattern, 0)
}

func (r *financeProfileRepo) list(dbc dbctx.Context, filter bson.M, limit int) ([]*types.StoredProfile, error) {
	opts := options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(dbc.Context(), filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cur.All(dbc.Context(), &docs); err != nil {
		return nil, err
	}
	out := make([]*types.StoredProfile, 0, len(docs))
	for _, m := range docs {
		sp, err := toStored(m)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

func (r *financeProfileRepo) Find(dbc dbctx.Context, filter map[string]any, limit int) ([]map[string]any, error) {
	q := bson.M{}
	for k, v := range filter {
		if !financerepo.ValidFilterKey(k) {
			return nil, fmt.Errorf("filter key %q: %w", k, apperr.ErrInvalidArgument)
		}
		q[k] = v
	}
	profiles, err := r.list(dbc, q, limit)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(profiles))
	for _, sp := range profiles {
		out = append(out, sp.Merged())
	}
	return out, nil
}

func (r *financeProfileRepo) Upsert(dbc dbctx.Context, userID string, doc map[string]any) error {
	set, _ := bsonSafe(doc).(map[string]any)
	if set == nil {
		set = map[string]any{}
	}
	delete(set, "_id")
	delete(set, "founded_pattern")
	set["user_id"] = userID
	_, err := r.coll.UpdateOne(dbc.Context(),
		bson.M{"user_id": userID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *financeProfileRepo) GetFoundedPattern(dbc dbctx.Context, userID string) (string, error) {
	var row struct {
		FoundedPattern string `bson:"founded_pattern"`
	}
	err := r.coll.FindOne(dbc.Context(),
		bson.M{"user_id": userID},
		options.FindOne().SetProjection(bson.M{"founded_pattern": 1}),
	).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("finance profile %s: %w", userID, apperr.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return row.FoundedPattern, nil
}

func (r *financeProfileRepo) SetFoundedPattern(dbc dbctx.Context, userID, pattern string) error {
	_, err := r.coll.UpdateOne(dbc.Context(),
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"founded_pattern": pattern}},
		options.Update().SetUpsert(true),
	)
	return err
}

func toStored(m bson.M) (*types.StoredProfile, error) {
	doc, err := toMap(m)
	if err != nil {
		return nil, err
	}
	sp := &types.StoredProfile{Doc: doc}
	sp.UserID, _ = doc["user_id"].(string)
	sp.FoundedPattern, _ = doc["founded_pattern"].(string)
	delete(doc, "founded_pattern")
	return sp, nil
}
