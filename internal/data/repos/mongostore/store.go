// Package mongostore implements the finance repositories on MongoDB.
package mongostore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type Config struct {
	URI                   string
	Database              string
	RawProfilesCollection string
	ProfilesCollection    string
	SuggestionsCollection string
	ConnectTimeout        time.Duration
}

func (c Config) withDefaults() Config {
	if c.Database == "" {
		c.Database = "user_profiles"
	}
	if c.RawProfilesCollection == "" {
		c.RawProfilesCollection = "raw_profiles"
	}
	if c.ProfilesCollection == "" {
		c.ProfilesCollection = "finance_profiles"
	}
	if c.SuggestionsCollection == "" {
		c.SuggestionsCollection = "suggestion_history"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	return c
}

// Store owns the client and hands out collection handles.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	cfg    Config
	log    *logger.Logger
}

func Connect(ctx context.Context, log *logger.Logger, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, fmt.Errorf("missing MONGO_URI")
	}
	cfg = cfg.withDefaults()
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{
		client: client,
		db:     client.Database(cfg.Database),
		cfg:    cfg,
		log:    log.With("service", "MongoStore", "database", cfg.Database),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *Store) RawProfiles() *mongo.Collection { return s.db.Collection(s.cfg.RawProfilesCollection) }
func (s *Store) Profiles() *mongo.Collection    { return s.db.Collection(s.cfg.ProfilesCollection) }
func (s *Store) Suggestions() *mongo.Collection { return s.db.Collection(s.cfg.SuggestionsCollection) }

// EnsureIndexes makes user_id unique in every collection.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("user_id_unique"),
	}
	for _, coll := range []*mongo.Collection{s.RawProfiles(), s.Profiles(), s.Suggestions()} {
		if _, err := coll.Indexes().CreateOne(ctx, idx); err != nil {
			return fmt.Errorf("index %s: %w", coll.Name(), err)
		}
	}
	s.log.Info("Mongo indexes ensured")
	return nil
}

func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// toMap turns a decoded BSON document into plain JSON-shaped Go values.
func toMap(m bson.M) (map[string]any, error) {
	delete(m, "_id")
	raw, err := bson.MarshalExtJSON(m, false, false)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	out := map[string]any{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

// bsonSafe replaces json.Number, which BSON would store as a string.
func bsonSafe(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, inner := range x {
			out[k] = bsonSafe(inner)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, inner := range x {
			out[i] = bsonSafe(inner)
		}
		return out
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		return v
	}
}
