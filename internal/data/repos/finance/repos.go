// Package finance persists raw records, finance profiles and suggestion
// histories in a relational store through gorm.
package finance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"gorm.io/datatypes"

	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
)

// RawProfileRepo reads upstream records. Insert exists for imports; the
// pipeline itself only reads.
type RawProfileRepo interface {
	ListUserIDs(dbc dbctx.Context) ([]string, error)
	Get(dbc dbctx.Context, userID string) (*types.RawRecord, error)
	Insert(dbc dbctx.Context, records []*types.RawRecord) (int, error)
}

// FinanceProfileRepo holds at most one profile per user_id.
type FinanceProfileRepo interface {
	Exists(dbc dbctx.Context, userID string) (bool, error)
	Get(dbc dbctx.Context, userID string) (*types.StoredProfile, error)
	List(dbc dbctx.Context) ([]*types.StoredProfile, error)
	ListWithPattern(dbc dbctx.Context) ([]*types.StoredProfile, error)
	Find(dbc dbctx.Context, filter map[string]any, limit int) ([]map[string]any, error)
	// Upsert sets the extracted document. It never touches founded_pattern.
	Upsert(dbc dbctx.Context, userID string, doc map[string]any) error
	GetFoundedPattern(dbc dbctx.Context, userID string) (string, error)
	SetFoundedPattern(dbc dbctx.Context, userID, pattern string) error
}

// SuggestionHistoryRepo is append-only.
type SuggestionHistoryRepo interface {
	Get(dbc dbctx.Context, userID string) (*types.SuggestionHistory, error)
	Append(dbc dbctx.Context, userID string, entry types.SuggestionEntry) error
}

var filterKeyRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidFilterKey reports whether key can address a top-level document field.
func ValidFilterKey(key string) bool {
	return filterKeyRe.MatchString(key)
}

func encodeDoc(doc map[string]any) (datatypes.JSON, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return datatypes.JSON(b), nil
}

func decodeDoc(raw datatypes.JSON, useNumber bool) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if useNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}
