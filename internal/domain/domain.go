package domain

import "github.com/yungbote/finpulse-backend/internal/domain/finance"

const (
	DedupWindow        = finance.DedupWindow
	MaxSuggestionWords = finance.MaxSuggestionWords
)

type RawRecord = finance.RawRecord
type FinanceProfile = finance.FinanceProfile
type StoredProfile = finance.StoredProfile
type Location = finance.Location
type Employment = finance.Employment
type Account = finance.Account
type Transaction = finance.Transaction
type SpendingSummary = finance.SpendingSummary
type Amount = finance.Amount

type SuggestionEntry = finance.SuggestionEntry
type SuggestionHistory = finance.SuggestionHistory

type RawProfileRow = finance.RawProfileRow
type FinanceProfileRow = finance.FinanceProfileRow
type SuggestionEntryRow = finance.SuggestionEntryRow

var (
	NewAmount  = finance.NewAmount
	MustAmount = finance.MustAmount
)

var (
	NormalizeSuggestion = finance.NormalizeSuggestion
	WordCount           = finance.WordCount
)
