package finance

// FinanceProfile is the validated projection of a raw record.
// Every field but UserID is optional; an absent field means nothing was
// extracted with confidence, so absent fields are omitted, never null.
type FinanceProfile struct {
	UserID          string           `json:"user_id" validate:"required"`
	Name            *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	DateOfBirth     *string          `json:"date_of_birth,omitempty" validate:"omitempty,isodate"`
	Gender          *string          `json:"gender,omitempty" validate:"omitempty,max=40"`
	Location        *Location        `json:"location,omitempty"`
	Employment      *Employment      `json:"employment,omitempty"`
	Accounts        []Account        `json:"accounts,omitempty" validate:"omitempty,dive"`
	SpendingSummary *SpendingSummary `json:"spending_summary,omitempty"`

	// FoundedPattern is attached by the analysis stage, never by extraction.
	FoundedPattern string `json:"founded_pattern,omitempty" jsonschema:"-"`
}

type Location struct {
	City    *string `json:"city,omitempty"`
	State   *string `json:"state,omitempty"`
	Country *string `json:"country,omitempty"`
}

type Employment struct {
	Status        *string `json:"status,omitempty" validate:"omitempty,oneof=employed self_employed unemployed student retired" jsonschema:"enum=employed,enum=self_employed,enum=unemployed,enum=student,enum=retired"`
	Employer      *string `json:"employer,omitempty"`
	JobTitle      *string `json:"job_title,omitempty"`
	MonthlyIncome *Amount `json:"monthly_income,omitempty" validate:"omitempty,gte=0"`
	AnnualIncome  *Amount `json:"annual_income,omitempty" validate:"omitempty,gte=0"`
}

type Account struct {
	AccountNumber *string       `json:"account_number,omitempty"`
	AccountType   *string       `json:"account_type,omitempty"`
	Balance       *Amount       `json:"balance,omitempty"`
	Currency      *string       `json:"currency,omitempty" validate:"omitempty,len=3"`
	Transactions  []Transaction `json:"transactions,omitempty" validate:"omitempty,dive"`
}

type Transaction struct {
	TransactionID *string `json:"transaction_id,omitempty"`
	Date          *string `json:"date,omitempty" validate:"omitempty,isodate"`
	Amount        *Amount `json:"amount,omitempty"`
	Currency      *string `json:"currency,omitempty" validate:"omitempty,len=3"`
	Category      *string `json:"category,omitempty"`
	Merchant      *string `json:"merchant,omitempty"`
	Description   *string `json:"description,omitempty"`
	Type          *string `json:"type,omitempty" validate:"omitempty,oneof=debit credit" jsonschema:"enum=debit,enum=credit"`
}

type SpendingSummary struct {
	TotalDebits   *Amount  `json:"total_debits,omitempty" validate:"omitempty,gte=0"`
	TotalCredits  *Amount  `json:"total_credits,omitempty" validate:"omitempty,gte=0"`
	TopCategories []string `json:"top_categories,omitempty"`
	PeriodStart   *string  `json:"period_start,omitempty" validate:"omitempty,isodate"`
	PeriodEnd     *string  `json:"period_end,omitempty" validate:"omitempty,isodate"`
}

// HasPattern reports whether the analysis stage already produced a summary.
func (p *FinanceProfile) HasPattern() bool {
	return p != nil && p.FoundedPattern != ""
}

// StoredProfile is a persisted profile document with its pattern summary
// kept apart from the extracted fields.
type StoredProfile struct {
	UserID         string         `json:"user_id"`
	Doc            map[string]any `json:"profile"`
	FoundedPattern string         `json:"founded_pattern,omitempty"`
}

// Merged returns the document as the store exposes it, with
// founded_pattern attached when present.
func (s *StoredProfile) Merged() map[string]any {
	out := make(map[string]any, len(s.Doc)+2)
	for k, v := range s.Doc {
		out[k] = v
	}
	out["user_id"] = s.UserID
	if s.FoundedPattern != "" {
		out["founded_pattern"] = s.FoundedPattern
	}
	return out
}
