// Package extract maps a raw upstream record onto a validated FinanceProfile.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/finpulse-backend/internal/clients/llm"
	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/prompts"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/schema"
	"github.com/yungbote/finpulse-backend/internal/observability"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type Extractor struct {
	llm llm.Client
	log *logger.Logger
}

func New(client llm.Client, baseLog *logger.Logger) *Extractor {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Extractor{llm: client, log: baseLog.With("stage", "extraction")}
}

// Extract returns a validated profile for raw. Nothing is persisted.
// Parse failures wrap ErrMalformedOutput or ErrEmptyOutput; rejected
// candidates return a *schema.ValidationError.
func (e *Extractor) Extract(ctx context.Context, raw *types.RawRecord) (profile *types.FinanceProfile, err error) {
	if raw == nil || strings.TrimSpace(raw.UserID) == "" {
		return nil, fmt.Errorf("raw record without user_id: %w", apperr.ErrInvalidArgument)
	}
	ctx, span := observability.StartSpan(ctx, "finance.extract", attribute.String("finance.user_id", raw.UserID))
	defer func() { observability.EndSpan(span, err) }()

	record, err := json.Marshal(raw.MinimalView())
	if err != nil {
		return nil, fmt.Errorf("encode raw record: %w", err)
	}
	p, err := prompts.Build(prompts.PromptProfileExtraction, prompts.Input{
		UserID:     raw.UserID,
		SchemaJSON: schema.JSONSchema(),
		RecordJSON: string(record),
	})
	if err != nil {
		return nil, err
	}

	text, err := e.llm.Complete(ctx, p.Text(), llm.Options{})
	if err != nil {
		return nil, fmt.Errorf("extraction model call: %w", err)
	}
	candidate, err := schema.Parse(text)
	if err != nil {
		return nil, err
	}

	switch v := candidate["user_id"].(type) {
	case nil:
		candidate["user_id"] = raw.UserID
	case string:
		if strings.TrimSpace(v) == "" {
			candidate["user_id"] = raw.UserID
		} else if v != raw.UserID {
			return nil, &schema.ValidationError{Fields: []schema.FieldError{{
				Path:   "user_id",
				Reason: fmt.Sprintf("expected %q, model returned %q", raw.UserID, v),
			}}}
		}
	}
	// founded_pattern belongs to analysis, never to extraction output.
	delete(candidate, "founded_pattern")

	profile, err = schema.Validate(candidate)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("finance.accounts", len(profile.Accounts)))
	e.log.Debug("Profile extracted", "user_id", raw.UserID, "accounts", len(profile.Accounts))
	return profile, nil
}
