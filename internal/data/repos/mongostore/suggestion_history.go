package mongostore

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	financerepo "github.com/yungbote/finpulse-backend/internal/data/repos/finance"
	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type suggestionHistoryRepo struct {
	coll *mongo.Collection
	log  *logger.Logger
}

func NewSuggestionHistoryRepo(s *Store, baseLog *logger.Logger) financerepo.SuggestionHistoryRepo {
	return &suggestionHistoryRepo{coll: s.Suggestions(), log: baseLog.With("repo", "MongoSuggestionHistoryRepo")}
}

func (r *suggestionHistoryRepo) Get(dbc dbctx.Context, userID string) (*types.SuggestionHistory, error) {
	h := &types.SuggestionHistory{}
	err := r.coll.FindOne(dbc.Context(), bson.M{"user_id": userID}).Decode(h)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &types.SuggestionHistory{UserID: userID, Entries: []types.SuggestionEntry{}}, nil
	}
	if err != nil {
		return nil, err
	}
	h.UserID = userID
	for i := range h.Entries {
		h.Entries[i].CreatedAt = h.Entries[i].CreatedAt.UTC()
	}
	return h, nil
}

// Append pushes onto the user's array, creating the document on first use.
func (r *suggestionHistoryRepo) Append(dbc dbctx.Context, userID string, entry types.SuggestionEntry) error {
	if strings.TrimSpace(entry.Text) == "" {
		return apperr.ErrInvalidArgument
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.coll.UpdateOne(dbc.Context(),
		bson.M{"user_id": userID},
		bson.M{"$push": bson.M{"suggestions": bson.M{"text": entry.Text, "created_at": createdAt.UTC()}}},
		options.Update().SetUpsert(true),
	)
	return err
}
