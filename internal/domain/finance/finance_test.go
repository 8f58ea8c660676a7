package finance

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMinimalViewKeepsFullHistoryAndOmitsAbsentKeys(t *testing.T) {
	txns := make([]any, 0, 40)
	for i := 0; i < 40; i++ {
		txns = append(txns, map[string]any{"amount": i})
	}
	raw := RawRecord{
		UserID: "u1",
		Doc: map[string]any{
			"user_id": "u1",
			"name":    "Asha",
			"email":   "asha@example.com",
			"accounts": []any{
				map[string]any{"account_number": "001", "branch": "north", "transactions": txns},
				"garbage",
			},
		},
	}
	view := raw.MinimalView()
	if _, ok := view["employment"]; ok {
		t.Fatalf("employment must be absent")
	}
	if _, ok := view["email"]; ok {
		t.Fatalf("email is not part of the minimal view")
	}
	accounts := view["accounts"].([]any)
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	acc := accounts[0].(map[string]any)
	if _, ok := acc["branch"]; ok {
		t.Fatalf("branch should be dropped")
	}
	if got := len(acc["transactions"].([]any)); got != 40 {
		t.Fatalf("expected full history of 40 transactions, got %d", got)
	}
}

func TestAmountJSON(t *testing.T) {
	var a Amount
	if err := json.Unmarshal([]byte(`"1234.5678901234567890"`), &a); err != nil {
		t.Fatalf("quoted: %v", err)
	}
	out, _ := json.Marshal(a)
	if string(out) != "1234.567890123456789" {
		t.Fatalf("marshal: %s", out)
	}
	if err := json.Unmarshal([]byte(`99.5`), &a); err != nil || a.Float64() != 99.5 {
		t.Fatalf("bare number: %v %v", err, a)
	}
}

func TestHistorySinceIsInclusive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-DedupWindow)
	h := SuggestionHistory{Entries: []SuggestionEntry{
		{Text: "old", CreatedAt: now.AddDate(0, 0, -40)},
		{Text: "edge", CreatedAt: cutoff},
		{Text: "recent", CreatedAt: now.AddDate(0, 0, -10)},
	}}
	got := h.Since(cutoff)
	if len(got) != 2 || got[0].Text != "edge" || got[1].Text != "recent" {
		t.Fatalf("unexpected window: %+v", got)
	}
}

func TestHistoryContainsNormalizes(t *testing.T) {
	h := SuggestionHistory{Entries: []SuggestionEntry{{Text: "Cook at home twice a week."}}}
	if !h.Contains("  cook at   HOME twice a week!") {
		t.Fatalf("expected normalized match")
	}
	if h.Contains("Cook at home three times a week.") {
		t.Fatalf("unexpected match")
	}
}

func TestMinimalViewAccountKeys(t *testing.T) {
	raw := RawRecord{
		UserID: "u1",
		Doc: map[string]any{
			"accounts": []any{map[string]any{
				"account_number": "001",
				"account_type":   "savings",
				"currency":       "INR",
				"balance":        json.Number("1520.75"),
				"ifsc":           "ABCD0001",
				"nominee":        "Ravi",
			}},
		},
	}
	acc := raw.MinimalView()["accounts"].([]any)[0].(map[string]any)
	want := []string{"account_number", "account_type", "currency", "balance", "transactions"}
	if len(acc) != len(want) {
		t.Fatalf("account keys = %v, want %v", acc, want)
	}
	for _, k := range want {
		if _, ok := acc[k]; !ok {
			t.Fatalf("missing %q in %v", k, acc)
		}
	}
	if txns := acc["transactions"].([]any); len(txns) != 0 {
		t.Fatalf("missing transactions should become an empty list, got %v", txns)
	}
}
