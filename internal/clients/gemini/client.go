// Package gemini completes prompts with the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yungbote/finpulse-backend/internal/clients/llm"
	"github.com/yungbote/finpulse-backend/internal/pkg/httpx"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

type Client struct {
	log        *logger.Logger
	api        *genai.Client
	model      string
	maxRetries int
}

var _ llm.Client = (*Client)(nil)

func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = llm.DefaultModel(llm.ProviderGemini)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	api, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		log:        log.With("service", "GeminiClient"),
		api:        api,
		model:      model,
		maxRetries: max(cfg.MaxRetries, 0),
	}, nil
}

func (c *Client) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(opts.Temperature)),
		MaxOutputTokens: int32(opts.MaxOutputTokens),
	}

	var resp *genai.GenerateContentResponse
	err := httpx.Retry(ctx, c.maxRetries,
		func(attempt int, sleep time.Duration, err error) {
			c.log.Warn("Gemini request retrying", "attempt", attempt, "max_retries", c.maxRetries, "sleep", sleep.String(), "error", err.Error())
		},
		func() (*http.Response, error) {
			var callErr error
			resp, callErr = c.api.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
			return nil, providerError(callErr)
		},
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Text()), nil
}

func providerError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.ProviderError{Provider: llm.ProviderGemini, StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return err
}
