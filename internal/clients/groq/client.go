// Package groq completes prompts against Groq's OpenAI-compatible API.
package groq

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/finpulse-backend/internal/clients/llm"
	"github.com/yungbote/finpulse-backend/internal/pkg/httpx"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

const DefaultBaseURL = "https://api.groq.com/openai/v1"

// Groq maps temperature 0 to 1e-8 server side; sending it explicitly keeps
// the request from falling back to the default of 1 under omitempty.
const zeroTemperature = float32(1e-8)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

type Client struct {
	log        *logger.Logger
	api        *goopenai.Client
	model      string
	maxRetries int
}

var _ llm.Client = (*Client)(nil)

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing GROQ_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = llm.DefaultModel(llm.ProviderGroq)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	apiCfg := goopenai.DefaultConfig(apiKey)
	apiCfg.BaseURL = baseURL
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{
		log:        log.With("service", "GroqClient"),
		api:        goopenai.NewClientWithConfig(apiCfg),
		model:      model,
		maxRetries: max(cfg.MaxRetries, 0),
	}, nil
}

func (c *Client) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	temp := float32(opts.Temperature)
	if temp == 0 {
		temp = zeroTemperature
	}
	req := goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    []goopenai.ChatCompletionMessage{{Role: goopenai.ChatMessageRoleUser, Content: prompt}},
		Temperature: temp,
		MaxTokens:   opts.MaxOutputTokens,
	}

	var resp goopenai.ChatCompletionResponse
	err := httpx.Retry(ctx, c.maxRetries,
		func(attempt int, sleep time.Duration, err error) {
			c.log.Warn("Groq request retrying", "attempt", attempt, "max_retries", c.maxRetries, "sleep", sleep.String(), "error", err.Error())
		},
		func() (*http.Response, error) {
			var callErr error
			resp, callErr = c.api.CreateChatCompletion(ctx, req)
			return nil, providerError(callErr)
		},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// providerError lifts API errors into llm.ProviderError so status-based
// retry classification applies.
func providerError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &llm.ProviderError{Provider: llm.ProviderGroq, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.ProviderError{Provider: llm.ProviderGroq, StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return err
}
