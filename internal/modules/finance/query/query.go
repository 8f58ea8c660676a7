// Package query summarizes stored finance profiles matching a filter.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/finpulse-backend/internal/clients/llm"
	financerepo "github.com/yungbote/finpulse-backend/internal/data/repos/finance"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/prompts"
	"github.com/yungbote/finpulse-backend/internal/observability"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

const (
	DefaultLimit = 5
	NoMatches    = "No matching documents found."
)

type Summarizer struct {
	llm      llm.Client
	profiles financerepo.FinanceProfileRepo
	log      *logger.Logger
}

func NewSummarizer(client llm.Client, profiles financerepo.FinanceProfileRepo, baseLog *logger.Logger) *Summarizer {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Summarizer{llm: client, profiles: profiles, log: baseLog.With("component", "QuerySummarizer")}
}

// Summarize fetches up to limit profiles whose top-level fields equal filter
// and asks the model to summarize them.
func (s *Summarizer) Summarize(ctx context.Context, filter map[string]any, limit int) (summary string, err error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	ctx, span := observability.StartSpan(ctx, "finance.query",
		attribute.Int("finance.limit", limit),
		attribute.Int("finance.filter_keys", len(filter)),
	)
	defer func() { observability.EndSpan(span, err) }()

	docs, err := s.profiles.Find(dbctx.For(ctx), filter, limit)
	if err != nil {
		return "", fmt.Errorf("find profiles: %w", err)
	}
	span.SetAttributes(attribute.Int("finance.matches", len(docs)))
	if len(docs) == 0 {
		s.log.Info("Query matched nothing", "filter_keys", len(filter))
		return NoMatches, nil
	}

	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("encode filter: %w", err)
	}
	docsJSON, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode documents: %w", err)
	}
	p, err := prompts.Build(prompts.PromptQuerySummary, prompts.Input{
		FilterJSON:    string(filterJSON),
		DocumentsJSON: string(docsJSON),
	})
	if err != nil {
		return "", err
	}
	text, err := s.llm.Complete(ctx, p.Text(), llm.Options{})
	if err != nil {
		return "", fmt.Errorf("query model call: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.ErrEmptyOutput
	}
	return text, nil
}

// ParseFilter turns "key=value" pairs into an equality filter. Values that
// read as a number or boolean are typed accordingly.
func ParseFilter(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || !financerepo.ValidFilterKey(k) {
			return nil, fmt.Errorf("filter %q: want key=value with a lowercase field name: %w", pair, apperr.ErrInvalidArgument)
		}
		out[k] = typedValue(strings.TrimSpace(v))
	}
	return out, nil
}

func typedValue(v string) any {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	var n json.Number
	if err := json.Unmarshal([]byte(v), &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return v
}
