package finance

import (
	"strings"
	"time"
	"unicode"
)

const (
	// DedupWindow bounds which past suggestions a new one must differ from.
	DedupWindow = 30 * 24 * time.Hour
	// MaxSuggestionWords bounds suggestion length.
	MaxSuggestionWords = 20
)

type SuggestionEntry struct {
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// SuggestionHistory is append-only and ordered by CreatedAt.
type SuggestionHistory struct {
	UserID  string            `json:"user_id" bson:"user_id"`
	Entries []SuggestionEntry `json:"suggestions" bson:"suggestions"`
}

// Since returns entries created at or after cutoff, in order.
func (h SuggestionHistory) Since(cutoff time.Time) []SuggestionEntry {
	out := make([]SuggestionEntry, 0, len(h.Entries))
	for _, e := range h.Entries {
		if !e.CreatedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Contains reports whether any entry matches text after NormalizeSuggestion.
func (h SuggestionHistory) Contains(text string) bool {
	key := NormalizeSuggestion(text)
	for _, e := range h.Entries {
		if NormalizeSuggestion(e.Text) == key {
			return true
		}
	}
	return false
}

// NormalizeSuggestion folds case, collapses whitespace and drops
// surrounding quotes and trailing punctuation.
func NormalizeSuggestion(text string) string {
	s := strings.ToLower(strings.Join(strings.Fields(text), " "))
	s = strings.Trim(s, "\"'`")
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
