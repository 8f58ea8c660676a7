package prompts

import (
	"encoding/json"

	"github.com/yungbote/finpulse-backend/internal/modules/finance/schema"
)

func FinanceProfileSchema() map[string]any {
	out := map[string]any{}
	_ = json.Unmarshal([]byte(schema.JSONSchema()), &out)
	return out
}

func SuggestionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"suggestion": map[string]any{"type": "string"},
		},
		"required":             []string{"suggestion"},
		"additionalProperties": false,
	}
}
