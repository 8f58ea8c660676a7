package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/finpulse-backend/internal/data/repos/testutil"
	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
)

func TestRawProfileRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewRawProfileRepo(db, testutil.Logger(t))

	u1 := testutil.UserID(t, "raw-a")
	u2 := testutil.UserID(t, "raw-b")
	n, err := repo.Insert(dbc, []*types.RawRecord{
		{UserID: u1, Doc: map[string]any{"name": "Asha", "accounts": []any{map[string]any{"balance": 12.5}}}},
		{UserID: u2, Doc: map[string]any{"name": "Ben"}},
	})
	if err != nil || n != 2 {
		t.Fatalf("Insert: n=%d err=%v", n, err)
	}
	n, err = repo.Insert(dbc, []*types.RawRecord{{UserID: u1, Doc: map[string]any{"name": "changed"}}})
	if err != nil || n != 0 {
		t.Fatalf("re-insert should be a no-op: n=%d err=%v", n, err)
	}

	rec, err := repo.Get(dbc, u1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Doc["name"] != "Asha" || rec.Doc["user_id"] != u1 {
		t.Fatalf("Get: unexpected doc %+v", rec.Doc)
	}

	ids, err := repo.ListUserIDs(dbc)
	if err != nil {
		t.Fatalf("ListUserIDs: %v", err)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[u1] || !seen[u2] {
		t.Fatalf("ListUserIDs missing users: %v", ids)
	}

	if _, err := repo.Get(dbc, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
	if _, err := repo.Insert(dbc, []*types.RawRecord{{UserID: " "}}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("Insert without user_id: %v", err)
	}
}

func TestFinanceProfileRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewFinanceProfileRepo(db, testutil.Logger(t))

	uid := testutil.UserID(t, "fp")
	exists, err := repo.Exists(dbc, uid)
	if err != nil || exists {
		t.Fatalf("Exists before upsert: %v %v", exists, err)
	}

	doc := map[string]any{"name": "Asha", "gender": "female", "employment": map[string]any{"monthly_income": 4200.5}}
	if err := repo.Upsert(dbc, uid, doc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.Upsert(dbc, uid, doc); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	var count int64
	if err := tx.Model(&types.FinanceProfileRow{}).Where("user_id = ?", uid).Count(&count).Error; err != nil || count != 1 {
		t.Fatalf("expected exactly one row, got %d (%v)", count, err)
	}

	if p, _ := repo.GetFoundedPattern(dbc, uid); p != "" {
		t.Fatalf("pattern should start empty, got %q", p)
	}
	if err := repo.SetFoundedPattern(dbc, uid, "Spends most on dining."); err != nil {
		t.Fatalf("SetFoundedPattern: %v", err)
	}
	if err := repo.Upsert(dbc, uid, map[string]any{"name": "Asha K", "founded_pattern": "overwritten?"}); err != nil {
		t.Fatalf("Upsert after pattern: %v", err)
	}

	got, err := repo.Get(dbc, uid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FoundedPattern != "Spends most on dining." {
		t.Fatalf("Upsert must not touch founded_pattern: %q", got.FoundedPattern)
	}
	if got.Doc["name"] != "Asha K" {
		t.Fatalf("doc not updated: %+v", got.Doc)
	}
	if _, ok := got.Doc["founded_pattern"]; ok {
		t.Fatalf("founded_pattern leaked into document")
	}

	withPattern, err := repo.ListWithPattern(dbc)
	if err != nil {
		t.Fatalf("ListWithPattern: %v", err)
	}
	found := false
	for _, sp := range withPattern {
		if sp.UserID == uid {
			found = true
		}
		if sp.FoundedPattern == "" {
			t.Fatalf("ListWithPattern returned a profile without pattern: %s", sp.UserID)
		}
	}
	if !found {
		t.Fatalf("ListWithPattern missing %s", uid)
	}

	matches, err := repo.Find(dbc, map[string]any{"user_id": uid}, 5)
	if err != nil || len(matches) != 1 {
		t.Fatalf("Find by user_id: %v %v", matches, err)
	}
	if matches[0]["founded_pattern"] != "Spends most on dining." {
		t.Fatalf("Find should expose founded_pattern: %+v", matches[0])
	}
	if _, err := repo.Find(dbc, map[string]any{"name; drop": "x"}, 5); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("Find with bad key: %v", err)
	}
	if _, err := repo.Get(dbc, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
}

func TestFinanceProfileRepoFindByDocumentField(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewFinanceProfileRepo(db, testutil.Logger(t))

	gender := testutil.UserID(t, "g")
	for _, uid := range []string{testutil.UserID(t, "a"), testutil.UserID(t, "b")} {
		if err := repo.Upsert(dbc, uid, map[string]any{"gender": gender}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	if err := repo.Upsert(dbc, testutil.UserID(t, "c"), map[string]any{"gender": "other"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	matches, err := repo.Find(dbc, map[string]any{"gender": gender}, 5)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	limited, err := repo.Find(dbc, map[string]any{"gender": gender}, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit: %d %v", len(limited), err)
	}
}

func TestSuggestionHistoryRepoAppendOnly(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewSuggestionHistoryRepo(db, testutil.Logger(t))

	uid := testutil.UserID(t, "sh")
	empty, err := repo.Get(dbc, uid)
	if err != nil || len(empty.Entries) != 0 {
		t.Fatalf("empty history: %+v %v", empty, err)
	}

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	texts := []string{"first", "second", "third"}
	for i, text := range texts {
		if err := repo.Append(dbc, uid, types.SuggestionEntry{Text: text, CreatedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	h, err := repo.Get(dbc, uid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(h.Entries) != len(texts) {
		t.Fatalf("expected %d entries, got %d", len(texts), len(h.Entries))
	}
	for i, e := range h.Entries {
		if e.Text != texts[i] || !e.CreatedAt.Equal(base.Add(time.Duration(i)*time.Hour)) {
			t.Fatalf("entry %d = %+v", i, e)
		}
	}
	if err := repo.Append(dbc, uid, types.SuggestionEntry{Text: "  "}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("blank append: %v", err)
	}
}
