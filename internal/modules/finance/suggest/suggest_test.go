package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/finpulse-backend/internal/clients/llm"
	financerepo "github.com/yungbote/finpulse-backend/internal/data/repos/finance"
	"github.com/yungbote/finpulse-backend/internal/data/repos/testutil"
	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
)

// fakeLLM replays replies in order, repeating the last one.
type fakeLLM struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeLLM) Complete(_ context.Context, prompt string, _ llm.Options) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	i := len(f.prompts) - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i], nil
}

func reply(text string) string {
	return fmt.Sprintf(`{"suggestion": %q}`, text)
}

var now = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (financerepo.SuggestionHistoryRepo, string) {
	t.Helper()
	repo := financerepo.NewSuggestionHistoryRepo(testutil.DB(t), testutil.Logger(t))
	return repo, testutil.UserID(t, "sg")
}

func history(t *testing.T, repo financerepo.SuggestionHistoryRepo, uid string) []types.SuggestionEntry {
	t.Helper()
	h, err := repo.Get(dbctx.For(context.Background()), uid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return h.Entries
}

func appendAt(t *testing.T, repo financerepo.SuggestionHistoryRepo, uid, text string, at time.Time) {
	t.Helper()
	if err := repo.Append(dbctx.For(context.Background()), uid, types.SuggestionEntry{Text: text, CreatedAt: at}); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestSuggestWindowsRecentHistory(t *testing.T) {
	repo, uid := setup(t)
	old := "Skip takeout on Fridays."
	recent := "Set up an automatic savings transfer."
	appendAt(t, repo, uid, old, now.AddDate(0, 0, -40))
	appendAt(t, repo, uid, recent, now.AddDate(0, 0, -10))

	fake := &fakeLLM{replies: []string{reply(old)}}
	s := New(fake, repo, Config{Now: func() time.Time { return now }}, testutil.Logger(t))
	out := s.Suggest(context.Background(), uid, "Eats out a lot.")

	if out.Status != StatusSuggested || out.Suggestion != old {
		t.Fatalf("a text outside the window may repeat: %+v", out)
	}
	if !strings.Contains(fake.prompts[0], recent) || strings.Contains(fake.prompts[0], old) {
		t.Fatalf("prompt should list only the -10d entry:\n%s", fake.prompts[0])
	}
	entries := history(t, repo, uid)
	if len(entries) != 3 || entries[2].Text != old || !entries[2].CreatedAt.Equal(now) {
		t.Fatalf("history = %+v", entries)
	}
}

func TestSuggestWindowBoundaryIsInclusive(t *testing.T) {
	repo, _ := setup(t)
	s := New(&fakeLLM{}, repo, Config{Now: func() time.Time { return now }}, testutil.Logger(t))
	h := &types.SuggestionHistory{Entries: []types.SuggestionEntry{
		{Text: "edge", CreatedAt: now.Add(-types.DedupWindow)},
		{Text: "outside", CreatedAt: now.Add(-types.DedupWindow - time.Second)},
	}}
	got := s.Recent(h, now)
	if len(got) != 1 || got[0] != "edge" {
		t.Fatalf("Recent = %v", got)
	}
}

func TestSuggestAppendsEachSuccess(t *testing.T) {
	repo, uid := setup(t)
	clock := now
	fake := &fakeLLM{replies: []string{reply("Cook at home."), reply("Cancel one subscription."), reply("Round up card purchases.")}}
	s := New(fake, repo, Config{Now: func() time.Time { return clock }}, testutil.Logger(t))

	for i := 0; i < 3; i++ {
		clock = now.Add(time.Duration(i) * 24 * time.Hour)
		if out := s.Suggest(context.Background(), uid, "pattern"); out.Status != StatusSuggested {
			t.Fatalf("run %d: %+v", i, out)
		}
	}
	entries := history(t, repo, uid)
	want := []string{"Cook at home.", "Cancel one subscription.", "Round up card purchases."}
	if len(entries) != len(want) {
		t.Fatalf("history = %+v", entries)
	}
	for i, e := range entries {
		if e.Text != want[i] {
			t.Fatalf("entry %d = %q, want %q", i, e.Text, want[i])
		}
		if i > 0 && !entries[i-1].CreatedAt.Before(e.CreatedAt) {
			t.Fatalf("entries out of order: %+v", entries)
		}
	}
}

func TestSuggestRetriesOnDuplicate(t *testing.T) {
	repo, uid := setup(t)
	appendAt(t, repo, uid, "Cook at home twice a week.", now.AddDate(0, 0, -2))

	fake := &fakeLLM{replies: []string{reply("  cook at home TWICE a week! "), reply("Pack lunch on workdays.")}}
	s := New(fake, repo, Config{Now: func() time.Time { return now }}, testutil.Logger(t))
	out := s.Suggest(context.Background(), uid, "pattern")

	if out.Status != StatusSuggested || out.Attempts != 2 || out.Suggestion != "Pack lunch on workdays." {
		t.Fatalf("outcome = %+v", out)
	}
	if !strings.Contains(fake.prompts[1], "cook at home TWICE a week!") {
		t.Fatalf("rejected draft not fed back:\n%s", fake.prompts[1])
	}
}

func TestSuggestGivesUpOnPersistentDuplicate(t *testing.T) {
	repo, uid := setup(t)
	appendAt(t, repo, uid, "Cook at home.", now.AddDate(0, 0, -1))

	fake := &fakeLLM{replies: []string{reply("Cook at home")}}
	s := New(fake, repo, Config{MaxAttempts: 3, Now: func() time.Time { return now }}, testutil.Logger(t))
	out := s.Suggest(context.Background(), uid, "pattern")

	if out.Status != StatusDuplicate || !errors.Is(out.Err, apperr.ErrDuplicateSuggestion) || len(fake.prompts) != 3 {
		t.Fatalf("outcome = %+v calls=%d", out, len(fake.prompts))
	}
	if n := len(history(t, repo, uid)); n != 1 {
		t.Fatalf("history mutated: %d entries", n)
	}
}

func TestSuggestRejectsOverlongText(t *testing.T) {
	repo, uid := setup(t)
	long := strings.TrimSpace(strings.Repeat("save ", 21))
	fake := &fakeLLM{replies: []string{reply(long)}}
	s := New(fake, repo, Config{MaxAttempts: 1, Now: func() time.Time { return now }}, testutil.Logger(t))
	if out := s.Suggest(context.Background(), uid, "pattern"); out.Status != StatusTooLong {
		t.Fatalf("outcome = %+v", out)
	}
	if n := len(history(t, repo, uid)); n != 0 {
		t.Fatalf("history mutated: %d entries", n)
	}
}

func TestSuggestMalformedSkipsWithoutMutation(t *testing.T) {
	repo, uid := setup(t)
	fake := &fakeLLM{replies: []string{"Try saving more!"}}
	s := New(fake, repo, Config{Now: func() time.Time { return now }}, testutil.Logger(t))
	out := s.Suggest(context.Background(), uid, "pattern")
	if out.Status != StatusMalformed || !errors.Is(out.Err, apperr.ErrMalformedOutput) || len(fake.prompts) != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if n := len(history(t, repo, uid)); n != 0 {
		t.Fatalf("history mutated: %d entries", n)
	}
}

func TestSuggestSkipsWithoutPattern(t *testing.T) {
	repo, uid := setup(t)
	fake := &fakeLLM{}
	out := New(fake, repo, Config{}, testutil.Logger(t)).Suggest(context.Background(), uid, "  ")
	if out.Status != StatusSkipped || len(fake.prompts) != 0 {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestParseSuggestion(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  error
	}{
		{in: `{"suggestion":"Cook at home."}`, want: "Cook at home."},
		{in: "```json\n{\"suggestion\": \" Pack lunch. \"}\n```", want: "Pack lunch."},
		{in: "", err: apperr.ErrEmptyOutput},
		{in: `{"suggestion":""}`, err: apperr.ErrMalformedOutput},
		{in: `{"tip":"x"}`, err: apperr.ErrMalformedOutput},
		{in: `{"suggestion":"a","extra":1}`, err: apperr.ErrMalformedOutput},
		{in: `"just text"`, err: apperr.ErrMalformedOutput},
		{in: `{"suggestion":"a"} trailing`, err: apperr.ErrMalformedOutput},
	}
	for _, tc := range cases {
		got, err := ParseSuggestion(tc.in)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("ParseSuggestion(%q) err = %v, want %v", tc.in, err, tc.err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseSuggestion(%q) = %q, %v", tc.in, got, err)
		}
	}
}
