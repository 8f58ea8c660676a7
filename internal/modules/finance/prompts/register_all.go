package prompts

// RegisterAll registers every prompt. Build calls it once on first use.
func RegisterAll() {
	RegisterSpec(Spec{
		Name:       PromptProfileExtraction,
		Version:    1,
		SchemaName: "finance_profile",
		Schema:     FinanceProfileSchema,
		System: `
You are a data extraction assistant.
You map a simplified user record onto the FinanceProfile JSON schema.
Return JSON only. No markdown, no commentary.`,
		User: `
FinanceProfile schema:
{{.SchemaJSON}}

User record:
{{.RecordJSON}}

Rules:
- Fill only fields whose values appear directly in the record.
- Omit any field with no value. Never emit null, "" or empty objects in its place.
- Keep every transaction; do not summarize or truncate the list.
- Amounts and balances are JSON numbers, dates are YYYY-MM-DD.
- user_id must be "{{.UserID}}".`,
		Validators: []Validator{
			RequireNonEmpty("UserID", func(in Input) string { return in.UserID }),
			RequireNonEmpty("SchemaJSON", func(in Input) string { return in.SchemaJSON }),
			RequireNonEmpty("RecordJSON", func(in Input) string { return in.RecordJSON }),
		},
	})

	RegisterSpec(Spec{
		Name:    PromptPatternAnalysis,
		Version: 1,
		System: `
You are a financial insights assistant.
You read one user's validated finance profile and describe their money habits.`,
		User: `
Finance profile:
{{.ProfileJSON}}

Tasks:
1. Identify spending patterns.
2. Point out unusual expenses.
3. Describe savings behavior.

Keep it clear and actionable. Respond in natural language, not JSON.`,
		Validators: []Validator{
			RequireNonEmpty("ProfileJSON", func(in Input) string { return in.ProfileJSON }),
		},
	})

	RegisterSpec(Spec{
		Name:       PromptDailySuggestion,
		Version:    1,
		SchemaName: "daily_suggestion",
		Schema:     SuggestionSchema,
		System: `
You are a personal financial assistant.
You write one short, actionable suggestion per day for a user.`,
		User: `
Financial analysis for this user:
{{.Pattern}}
{{if .Recent}}
Suggestions already given in the last 30 days (do not repeat or rephrase any of them):
{{range .Recent}}- {{.}}
{{end}}{{end}}{{if .Rejected}}
These drafts were rejected as repeats or too long, do not return them again:
{{range .Rejected}}- {{.}}
{{end}}{{end}}
Write exactly ONE new suggestion in at most {{.MaxWords}} words.
Return JSON only: {"suggestion": "<text>"}`,
		Validators: []Validator{
			RequireNonEmpty("Pattern", func(in Input) string { return in.Pattern }),
			RequirePositive("MaxWords", func(in Input) int { return in.MaxWords }),
		},
	})

	RegisterSpec(Spec{
		Name:    PromptQuerySummary,
		Version: 1,
		System: `
You are a helpful assistant that summarizes finance profile query results.`,
		User: `
Query filter:
{{.FilterJSON}}

Matching documents:
{{.DocumentsJSON}}

Summarize them or extract the useful information the query is after.`,
		Validators: []Validator{
			RequireNonEmpty("DocumentsJSON", func(in Input) string { return in.DocumentsJSON }),
		},
	})
}
