package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	types "github.com/yungbote/finpulse-backend/internal/domain"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
)

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	lines := strings.Split(cleaned, "\n")
	start, end := 0, len(lines)
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if start == 0 {
				start = i + 1
			} else {
				end = i
				break
			}
		}
	}
	if start > 0 && end > start {
		cleaned = strings.Join(lines[start:end], "\n")
	}
	return strings.TrimSpace(cleaned)
}

// Parse decodes model text into a JSON object. Numbers stay json.Number so
// amounts keep their precision until validation.
func Parse(text string) (map[string]any, error) {
	cleaned := StripFences(text)
	if cleaned == "" {
		return nil, apperr.ErrEmptyOutput
	}
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v (raw: %s)", apperr.ErrMalformedOutput, err, truncate(text, 200))
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing content after JSON value", apperr.ErrMalformedOutput)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %T", apperr.ErrMalformedOutput, v)
	}
	return obj, nil
}

// ParseProfile is Parse followed by Validate.
func ParseProfile(text string) (*types.FinanceProfile, error) {
	obj, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return Validate(obj)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
