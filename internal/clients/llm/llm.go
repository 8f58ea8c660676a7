// Package llm is the text-completion boundary shared by every provider.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Options are the per-call generation knobs. Stages get them from a Profile.
type Options struct {
	Temperature     float64
	MaxOutputTokens int
}

// Client completes a prompt. Implementations must be safe for concurrent use.
// A blank completion is returned as "" with a nil error so callers can
// tell empty output apart from transport failure.
type Client interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, prompt string, opts Options) (string, error)

func (f ClientFunc) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

func ValidProvider(p string) bool {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case ProviderOpenAI, ProviderGroq, ProviderGemini:
		return true
	default:
		return false
	}
}

// ProviderError is a non-2xx response from a provider API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *ProviderError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}
