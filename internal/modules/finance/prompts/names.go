package prompts

type PromptName string

const (
	PromptProfileExtraction PromptName = "profile_extraction"
	PromptPatternAnalysis   PromptName = "pattern_analysis"
	PromptDailySuggestion   PromptName = "daily_suggestion"
	PromptQuerySummary      PromptName = "query_summary"
)
