package schema

import (
	"encoding/json"
	"errors"
	"math/big"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	types "github.com/yungbote/finpulse-backend/internal/domain"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
)

func mustParse(t *testing.T, text string) map[string]any {
	t.Helper()
	obj, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return obj
}

func TestParse(t *testing.T) {
	obj := mustParse(t, "```json\n{\"user_id\": \"u1\", \"accounts\": []}\n```")
	if obj["user_id"] != "u1" {
		t.Fatalf("fenced: %+v", obj)
	}

	cases := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "   ", apperr.ErrEmptyOutput},
		{"array", `[{"user_id":"u1"}]`, apperr.ErrMalformedOutput},
		{"prose", "Here is the profile you asked for.", apperr.ErrMalformedOutput},
		{"trailing", `{"user_id":"u1"} and more`, apperr.ErrMalformedOutput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestValidateOmitsAbsentFields(t *testing.T) {
	obj := mustParse(t, `{
		"user_id": "u1",
		"name": "",
		"employment": null,
		"location": {"city": null, "country": ""},
		"accounts": [{"account_number": "001", "transactions": []}],
		"spending_summary": {}
	}`)
	p, err := Validate(obj)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.Employment != nil || p.Location != nil || p.Name != nil || p.SpendingSummary != nil {
		t.Fatalf("absent fields leaked: %+v", p)
	}
	doc, err := Document(p)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	for _, k := range []string{"employment", "name", "location", "spending_summary", "founded_pattern"} {
		if _, ok := doc[k]; ok {
			t.Fatalf("document must not contain %q: %+v", k, doc)
		}
	}
	acc := doc["accounts"].([]any)[0].(map[string]any)
	if _, ok := acc["transactions"]; ok {
		t.Fatalf("empty transactions must be omitted: %+v", acc)
	}
}

func TestValidateCollectsEveryTypeViolation(t *testing.T) {
	obj := mustParse(t, `{
		"user_id": "u1",
		"name": 42,
		"accounts": [
			{"transactions": [{"amount": 1}, {"amount": "lots"}]},
			"checking"
		],
		"unknown_field": {"anything": true}
	}`)
	_, err := Validate(obj)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !errors.Is(err, apperr.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation")
	}
	want := []string{"accounts[0].transactions[1].amount", "accounts[1]", "name"}
	if got := verr.Paths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("paths = %v, want %v", got, want)
	}
}

func TestValidateValueConstraints(t *testing.T) {
	obj := mustParse(t, `{
		"date_of_birth": "12/01/1990",
		"employment": {"status": "employed", "monthly_income": -5},
		"accounts": [{"currency": "US", "transactions": [{"type": "refund", "date": "2026-01-04"}]}]
	}`)
	_, err := Validate(obj)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{
		"accounts[0].currency",
		"accounts[0].transactions[0].type",
		"date_of_birth",
		"employment.monthly_income",
		"user_id",
	}
	if got := verr.Paths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("paths = %v, want %v", got, want)
	}
}

func TestValidateAcceptsQuotedAmounts(t *testing.T) {
	obj := mustParse(t, `{"user_id":"u1","employment":{"annual_income":"120000.50"}}`)
	p, err := Validate(obj)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := p.Employment.AnnualIncome.String(); got != "120000.5" {
		t.Fatalf("annual_income = %s", got)
	}
}

func TestValidateRejectsAmountsBeyondFloat64(t *testing.T) {
	_, err := ParseProfile(`{"user_id":"u1","accounts":[{"balance":1e400,"transactions":[{"amount":"-2e999"},{"amount":12.5}]}]}`)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{"accounts[0].balance", "accounts[0].transactions[0].amount"}
	if got := verr.Paths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("paths = %v, want %v", got, want)
	}
	if !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("error = %v", err)
	}

	p, err := ParseProfile(`{"user_id":"u1","accounts":[{"balance":1.7e308}]}`)
	if err != nil {
		t.Fatalf("largest finite balance rejected: %v", err)
	}
	doc, err := Document(p)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	acct := doc["accounts"].([]any)[0].(map[string]any)
	if _, ok := acct["balance"].(float64); !ok {
		t.Fatalf("balance stored as %T", acct["balance"])
	}
}

func TestDocumentNormalizesNestedDecimals(t *testing.T) {
	amt := types.MustAmount("12345.678901234567890123")
	bal := types.MustAmount("0.1")
	p := &types.FinanceProfile{
		UserID: "u1",
		Accounts: []types.Account{{
			Balance:      &bal,
			Transactions: []types.Transaction{{Amount: &amt}},
		}},
	}
	doc, err := Document(p)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	acc := doc["accounts"].([]any)[0].(map[string]any)
	if _, ok := acc["balance"].(float64); !ok {
		t.Fatalf("balance type %T", acc["balance"])
	}
	txn := acc["transactions"].([]any)[0].(map[string]any)
	f, ok := txn["amount"].(float64)
	if !ok {
		t.Fatalf("amount type %T", txn["amount"])
	}
	if f < 12345.678 || f > 12345.679 {
		t.Fatalf("amount = %v", f)
	}
}

func TestNormalizeEveryDepth(t *testing.T) {
	d := decimal.RequireFromString("1.25")
	in := map[string]any{
		"a": d,
		"b": []any{map[string]any{"c": &d, "d": []map[string]any{{"e": json.Number("7.5")}}}},
		"f": big.NewFloat(2.5),
		"g": big.NewRat(1, 4),
		"h": "text",
	}
	out := Normalize(in).(map[string]any)
	if out["a"] != 1.25 || out["f"] != 2.5 || out["g"] != 0.25 || out["h"] != "text" {
		t.Fatalf("top level: %+v", out)
	}
	inner := out["b"].([]any)[0].(map[string]any)
	if inner["c"] != 1.25 {
		t.Fatalf("pointer decimal: %+v", inner)
	}
	deepest := inner["d"].([]any)[0].(map[string]any)
	if deepest["e"] != 7.5 {
		t.Fatalf("json.Number: %+v", deepest)
	}
}

func TestJSONSchemaAdvertisesNumbers(t *testing.T) {
	text := JSONSchema()
	if strings.Contains(text, "founded_pattern") {
		t.Fatalf("schema must not ask the model for founded_pattern")
	}
	var s struct {
		Properties map[string]struct {
			Properties map[string]struct {
				Type string `json:"type"`
			} `json:"properties"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if got := s.Properties["employment"].Properties["monthly_income"].Type; got != "number" {
		t.Fatalf("monthly_income type = %q", got)
	}
	if !reflect.DeepEqual(s.Required, []string{"user_id"}) {
		t.Fatalf("required = %v", s.Required)
	}
}
