// Package analyze derives the free-text founded_pattern for a stored profile.
package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/finpulse-backend/internal/clients/llm"
	financerepo "github.com/yungbote/finpulse-backend/internal/data/repos/finance"
	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/prompts"
	"github.com/yungbote/finpulse-backend/internal/observability"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type Status string

const (
	StatusSkipped  Status = "skipped"
	StatusAnalyzed Status = "analyzed"
	StatusEmpty    Status = "empty"
	StatusFailed   Status = "failed"
)

type Outcome struct {
	UserID  string
	Status  Status
	Pattern *string
	Err     error
}

// Result is the value reported for the user: the current pattern, or nil
// when the user failed or has never been analyzed.
func (o Outcome) Result() *string {
	if o.Status == StatusFailed {
		return nil
	}
	return o.Pattern
}

type Analyzer struct {
	llm      llm.Client
	profiles financerepo.FinanceProfileRepo
	log      *logger.Logger
}

func New(client llm.Client, profiles financerepo.FinanceProfileRepo, baseLog *logger.Logger) *Analyzer {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Analyzer{llm: client, profiles: profiles, log: baseLog.With("stage", "analysis")}
}

// Analyze stores a new founded_pattern for profile unless one exists and
// force is false. The stored value is re-read first, so callers holding the
// per-user lock never analyze twice. An empty completion leaves the stored
// value untouched.
func (a *Analyzer) Analyze(ctx context.Context, profile *types.StoredProfile, force bool) (out Outcome) {
	if profile == nil || strings.TrimSpace(profile.UserID) == "" {
		return Outcome{Status: StatusFailed, Err: fmt.Errorf("profile without user_id: %w", apperr.ErrInvalidArgument)}
	}
	userID := profile.UserID
	out.UserID = userID

	ctx, span := observability.StartSpan(ctx, "finance.analyze",
		attribute.String("finance.user_id", userID),
		attribute.Bool("finance.force", force),
	)
	defer func() {
		span.SetAttributes(attribute.String("finance.status", string(out.Status)))
		observability.EndSpan(span, out.Err)
	}()

	dbc := dbctx.For(ctx)
	prior, err := a.profiles.GetFoundedPattern(dbc, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		prior, err = profile.FoundedPattern, nil
	}
	if err != nil {
		return a.fail(out, fmt.Errorf("read founded_pattern: %w", err))
	}
	if prior != "" {
		out.Pattern = &prior
	}
	if !force && prior != "" {
		a.log.Info("Already analyzed, skipping", "user_id", userID)
		out.Status = StatusSkipped
		return out
	}

	doc := profile.Doc
	if doc == nil {
		doc = map[string]any{"user_id": userID}
	}
	profileJSON, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return a.fail(out, fmt.Errorf("encode profile: %w", err))
	}
	p, err := prompts.Build(prompts.PromptPatternAnalysis, prompts.Input{
		UserID:      userID,
		ProfileJSON: string(profileJSON),
	})
	if err != nil {
		return a.fail(out, err)
	}

	text, err := a.llm.Complete(ctx, p.Text(), llm.Options{})
	if err != nil {
		return a.fail(out, fmt.Errorf("analysis model call: %w", err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		a.log.Warn("Empty analysis, keeping prior pattern", "user_id", userID, "had_prior", prior != "")
		out.Status = StatusEmpty
		return out
	}

	if err := a.profiles.SetFoundedPattern(dbc, userID, text); err != nil {
		return a.fail(out, fmt.Errorf("store founded_pattern: %w", err))
	}
	out.Status = StatusAnalyzed
	out.Pattern = &text
	return out
}

func (a *Analyzer) fail(out Outcome, err error) Outcome {
	a.log.Warn("Analysis failed", "user_id", out.UserID, "error", err)
	out.Status = StatusFailed
	out.Pattern = nil
	out.Err = err
	return out
}
