// Package suggest produces one new daily suggestion per analyzed user.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/finpulse-backend/internal/clients/llm"
	financerepo "github.com/yungbote/finpulse-backend/internal/data/repos/finance"
	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/prompts"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/schema"
	"github.com/yungbote/finpulse-backend/internal/observability"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type Status string

const (
	StatusSuggested Status = "suggested"
	StatusSkipped   Status = "skipped"
	StatusMalformed Status = "malformed"
	StatusDuplicate Status = "duplicate"
	StatusTooLong   Status = "too_long"
	StatusFailed    Status = "failed"
)

type Outcome struct {
	UserID     string
	Status     Status
	Suggestion string
	Attempts   int
	Err        error
}

type Config struct {
	// MaxAttempts is the total number of model calls per user and run.
	MaxAttempts int
	Window      time.Duration
	MaxWords    int
	Now         func() time.Time
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 2
	}
	if c.Window <= 0 {
		c.Window = types.DedupWindow
	}
	if c.MaxWords <= 0 {
		c.MaxWords = types.MaxSuggestionWords
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type Suggester struct {
	llm     llm.Client
	history financerepo.SuggestionHistoryRepo
	cfg     Config
	log     *logger.Logger
}

func New(client llm.Client, history financerepo.SuggestionHistoryRepo, cfg Config, baseLog *logger.Logger) *Suggester {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Suggester{
		llm:     client,
		history: history,
		cfg:     cfg.withDefaults(),
		log:     baseLog.With("stage", "suggestion"),
	}
}

// Recent returns the texts of h created inside the dedup window ending at now.
func (s *Suggester) Recent(h *types.SuggestionHistory, now time.Time) []string {
	if h == nil {
		return nil
	}
	entries := h.Since(now.Add(-s.cfg.Window))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Text)
	}
	return out
}

// Suggest asks the model for one suggestion that repeats nothing in the
// window and fits the word bound. Rejected drafts are fed back on the next
// attempt. History is only touched on success.
func (s *Suggester) Suggest(ctx context.Context, userID, pattern string) (out Outcome) {
	out.UserID = userID
	if strings.TrimSpace(pattern) == "" {
		s.log.Info("No founded_pattern, skipping", "user_id", userID)
		out.Status = StatusSkipped
		return out
	}

	ctx, span := observability.StartSpan(ctx, "finance.suggest", attribute.String("finance.user_id", userID))
	defer func() {
		span.SetAttributes(
			attribute.String("finance.status", string(out.Status)),
			attribute.Int("finance.attempts", out.Attempts),
		)
		observability.EndSpan(span, out.Err)
	}()

	dbc := dbctx.For(ctx)
	h, err := s.history.Get(dbc, userID)
	if err != nil {
		return s.fail(out, StatusFailed, fmt.Errorf("read suggestion history: %w", err))
	}
	now := s.cfg.Now()
	recent := s.Recent(h, now)
	seen := make(map[string]bool, len(recent))
	for _, r := range recent {
		seen[types.NormalizeSuggestion(r)] = true
	}

	var rejected []string
	for out.Attempts < s.cfg.MaxAttempts {
		out.Attempts++
		p, err := prompts.Build(prompts.PromptDailySuggestion, prompts.Input{
			UserID:   userID,
			Pattern:  pattern,
			Recent:   recent,
			Rejected: rejected,
			MaxWords: s.cfg.MaxWords,
		})
		if err != nil {
			return s.fail(out, StatusFailed, err)
		}
		text, err := s.llm.Complete(ctx, p.Text(), llm.Options{})
		if err != nil {
			return s.fail(out, StatusFailed, fmt.Errorf("suggestion model call: %w", err))
		}
		suggestion, err := ParseSuggestion(text)
		if err != nil {
			return s.fail(out, StatusMalformed, err)
		}

		switch {
		case seen[types.NormalizeSuggestion(suggestion)]:
			out.Status = StatusDuplicate
			out.Err = fmt.Errorf("%w: %q", apperr.ErrDuplicateSuggestion, suggestion)
		case types.WordCount(suggestion) > s.cfg.MaxWords:
			out.Status = StatusTooLong
			out.Err = fmt.Errorf("suggestion has %d words, limit %d", types.WordCount(suggestion), s.cfg.MaxWords)
		default:
			entry := types.SuggestionEntry{Text: suggestion, CreatedAt: now.UTC()}
			if err := s.history.Append(dbc, userID, entry); err != nil {
				return s.fail(out, StatusFailed, fmt.Errorf("append suggestion: %w", err))
			}
			out.Status = StatusSuggested
			out.Suggestion = suggestion
			out.Err = nil
			return out
		}
		s.log.Info("Suggestion rejected", "user_id", userID, "attempt", out.Attempts, "reason", out.Status)
		rejected = append(rejected, suggestion)
	}
	s.log.Warn("No acceptable suggestion, history unchanged", "user_id", userID, "attempts", out.Attempts, "reason", out.Status)
	return out
}

func (s *Suggester) fail(out Outcome, status Status, err error) Outcome {
	s.log.Warn("Suggestion failed", "user_id", out.UserID, "status", status, "error", err)
	out.Status = status
	out.Err = err
	return out
}

// ParseSuggestion accepts exactly {"suggestion": "<non-empty text>"}.
func ParseSuggestion(text string) (string, error) {
	cleaned := schema.StripFences(text)
	if cleaned == "" {
		return "", apperr.ErrEmptyOutput
	}
	var resp struct {
		Suggestion *string `json:"suggestion"`
	}
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&resp); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrMalformedOutput, err)
	}
	if dec.More() {
		return "", fmt.Errorf("%w: trailing content after JSON value", apperr.ErrMalformedOutput)
	}
	if resp.Suggestion == nil || strings.TrimSpace(*resp.Suggestion) == "" {
		return "", fmt.Errorf("%w: missing suggestion", apperr.ErrMalformedOutput)
	}
	return strings.TrimSpace(*resp.Suggestion), nil
}
