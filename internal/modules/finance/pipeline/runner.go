// Package pipeline runs the extraction, analysis and suggestion passes over
// every known user.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	financerepo "github.com/yungbote/finpulse-backend/internal/data/repos/finance"
	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/analyze"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/schema"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/suggest"
	"github.com/yungbote/finpulse-backend/internal/observability"
	"github.com/yungbote/finpulse-backend/internal/pkg/ctxutil"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
	"github.com/yungbote/finpulse-backend/internal/pkg/keylock"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

const (
	PassPipeline    = "pipeline"
	PassSuggestions = "suggestions"

	StageExtraction = "extraction"
	StageAnalysis   = "analysis"
	StageSuggestion = "suggestion"
)

// ErrRunInProgress is returned when the same pass is already running in this process.
var ErrRunInProgress = errors.New("run already in progress")

type Extractor interface {
	Extract(ctx context.Context, raw *types.RawRecord) (*types.FinanceProfile, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, profile *types.StoredProfile, force bool) analyze.Outcome
}

type Suggester interface {
	Suggest(ctx context.Context, userID, pattern string) suggest.Outcome
}

type Deps struct {
	Raw       financerepo.RawProfileRepo
	Profiles  financerepo.FinanceProfileRepo
	Extractor Extractor
	Analyzer  Analyzer
	Suggester Suggester
	Locker    keylock.Locker
	Metrics   *observability.Metrics
	Log       *logger.Logger
}

type Config struct {
	// Concurrency above 1 fans users out over that many workers.
	Concurrency int
}

type RunOptions struct {
	Force bool
}

type Runner struct {
	deps Deps
	cfg  Config
	log  *logger.Logger

	mu     sync.Mutex
	active map[string]bool
}

func NewRunner(deps Deps, cfg Config) *Runner {
	if deps.Locker == nil {
		deps.Locker = keylock.NewLocal()
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Runner{deps: deps, cfg: cfg, log: deps.Log.With("component", "PipelineRunner"), active: map[string]bool{}}
}

func (r *Runner) begin(ctx context.Context, pass string) (context.Context, string, func(status string), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[pass] {
		return ctx, "", nil, fmt.Errorf("%s: %w", pass, ErrRunInProgress)
	}
	r.active[pass] = true
	r.deps.Metrics.RunStarted()
	runID := uuid.NewString()
	return ctxutil.WithRunID(ctx, runID), runID, func(status string) {
		r.mu.Lock()
		delete(r.active, pass)
		r.mu.Unlock()
		r.deps.Metrics.RunFinished(pass, status)
	}, nil
}

// Running reports whether pass is currently executing in this process.
func (r *Runner) Running(pass string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[pass]
}

// RunPipeline extracts every user without a stored profile, then analyzes
// the newly stored profiles, or every stored profile when nothing was new.
// Only a failure to enumerate users is returned as an error; per-user
// failures land in the report.
func (r *Runner) RunPipeline(ctx context.Context, opts RunOptions) (report *PipelineReport, err error) {
	ctx, runID, finish, err := r.begin(ctx, PassPipeline)
	if err != nil {
		return nil, err
	}
	defer func() { finish(runStatus(err)) }()
	log := r.log.With("run_id", runID, "pass", PassPipeline)

	report = &PipelineReport{RunID: runID, StartedAt: time.Now().UTC(), Force: opts.Force, Analysis: map[string]*string{}}
	dbc := dbctx.For(ctx)

	userIDs, err := r.deps.Raw.ListUserIDs(dbc)
	if err != nil {
		return nil, fmt.Errorf("list raw profiles: %w", err)
	}
	log.Info("Extraction pass started", "users", len(userIDs))
	report.Extraction = forEach(ctx, r.cfg.Concurrency, userIDs, r.extractOne)

	var targets []string
	for _, res := range report.Extraction {
		if res.Status == ExtractionStored {
			targets = append(targets, res.UserID)
		}
	}
	if len(targets) == 0 {
		stored, err := r.deps.Profiles.List(dbc)
		if err != nil {
			return nil, fmt.Errorf("list finance profiles: %w", err)
		}
		for _, p := range stored {
			targets = append(targets, p.UserID)
		}
		log.Info("No new profiles, analyzing all stored profiles", "users", len(targets))
	}

	outcomes := forEach(ctx, r.cfg.Concurrency, targets, func(ctx context.Context, userID string) analyze.Outcome {
		return r.analyzeOne(ctx, userID, opts.Force)
	})
	for _, o := range outcomes {
		report.Analysis[o.UserID] = o.Result()
		report.AnalysisOutcomes = append(report.AnalysisOutcomes, AnalysisResult{
			UserID: o.UserID,
			Status: o.Status,
			Error:  errString(o.Err),
		})
	}
	report.FinishedAt = time.Now().UTC()
	log.Info("Pipeline run finished",
		"extraction", report.ExtractionCounts(),
		"analysis", report.AnalysisCounts(),
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
	return report, nil
}

func (r *Runner) extractOne(ctx context.Context, userID string) (res ExtractionResult) {
	res.UserID = userID
	start := time.Now()
	defer func() {
		r.deps.Metrics.ObserveStage(StageExtraction, string(res.Status), time.Since(start))
	}()
	defer r.recoverUser(StageExtraction, userID, func(err error) { res = r.extractionFailed(res, err) })

	release, err := r.deps.Locker.Acquire(ctx, keylock.Key(StageExtraction, userID))
	if err != nil {
		return r.extractionFailed(res, fmt.Errorf("acquire lock: %w", err))
	}
	defer release()

	dbc := dbctx.For(ctx)
	exists, err := r.deps.Profiles.Exists(dbc, userID)
	if err != nil {
		return r.extractionFailed(res, fmt.Errorf("check profile: %w", err))
	}
	if exists {
		r.log.Debug("Profile exists, skipping extraction", "user_id", userID)
		res.Status = ExtractionSkippedExisting
		return res
	}

	raw, err := r.deps.Raw.Get(dbc, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		r.log.Info("No raw record, skipping", "user_id", userID)
		res.Status = ExtractionSkippedNoRaw
		return res
	}
	if err != nil {
		return r.extractionFailed(res, fmt.Errorf("read raw record: %w", err))
	}

	profile, err := r.deps.Extractor.Extract(ctx, raw)
	if err != nil {
		return r.extractionFailed(res, err)
	}
	doc, err := schema.Document(profile)
	if err != nil {
		return r.extractionFailed(res, err)
	}
	if err := r.deps.Profiles.Upsert(dbc, userID, doc); err != nil {
		return r.extractionFailed(res, fmt.Errorf("store profile: %w", err))
	}
	r.log.Info("Profile stored", "user_id", userID)
	res.Status = ExtractionStored
	return res
}

func (r *Runner) extractionFailed(res ExtractionResult, err error) ExtractionResult {
	r.log.Warn("Extraction failed, skipping user", "user_id", res.UserID, "error", err)
	res.Status = ExtractionFailed
	res.Error = err.Error()
	return res
}

func (r *Runner) analyzeOne(ctx context.Context, userID string, force bool) (out analyze.Outcome) {
	start := time.Now()
	defer func() {
		r.deps.Metrics.ObserveStage(StageAnalysis, string(out.Status), time.Since(start))
	}()
	defer r.recoverUser(StageAnalysis, userID, func(err error) {
		out = analyze.Outcome{UserID: userID, Status: analyze.StatusFailed, Err: err}
	})

	release, err := r.deps.Locker.Acquire(ctx, keylock.Key(StageAnalysis, userID))
	if err != nil {
		return analyze.Outcome{UserID: userID, Status: analyze.StatusFailed, Err: fmt.Errorf("acquire lock: %w", err)}
	}
	defer release()

	profile, err := r.deps.Profiles.Get(dbctx.For(ctx), userID)
	if err != nil {
		r.log.Warn("Cannot load profile for analysis", "user_id", userID, "error", err)
		return analyze.Outcome{UserID: userID, Status: analyze.StatusFailed, Err: err}
	}
	return r.deps.Analyzer.Analyze(ctx, profile, force)
}

// RunSuggestions gives every user with a founded_pattern one new suggestion.
func (r *Runner) RunSuggestions(ctx context.Context) (report *SuggestionReport, err error) {
	ctx, runID, finish, err := r.begin(ctx, PassSuggestions)
	if err != nil {
		return nil, err
	}
	defer func() { finish(runStatus(err)) }()
	log := r.log.With("run_id", runID, "pass", PassSuggestions)

	report = &SuggestionReport{RunID: runID, StartedAt: time.Now().UTC()}
	profiles, err := r.deps.Profiles.ListWithPattern(dbctx.For(ctx))
	if err != nil {
		return nil, fmt.Errorf("list analyzed profiles: %w", err)
	}
	userIDs := make([]string, 0, len(profiles))
	for _, p := range profiles {
		userIDs = append(userIDs, p.UserID)
	}
	log.Info("Suggestion pass started", "users", len(userIDs))

	outcomes := forEach(ctx, r.cfg.Concurrency, userIDs, r.suggestOne)
	for _, o := range outcomes {
		report.Outcomes = append(report.Outcomes, SuggestionResult{
			UserID:     o.UserID,
			Status:     o.Status,
			Suggestion: o.Suggestion,
			Attempts:   o.Attempts,
			Error:      errString(o.Err),
		})
	}
	report.FinishedAt = time.Now().UTC()
	log.Info("Suggestion run finished",
		"outcomes", report.Counts(),
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
	return report, nil
}

func (r *Runner) suggestOne(ctx context.Context, userID string) (out suggest.Outcome) {
	start := time.Now()
	defer func() {
		r.deps.Metrics.ObserveStage(StageSuggestion, string(out.Status), time.Since(start))
	}()
	defer r.recoverUser(StageSuggestion, userID, func(err error) {
		out = suggest.Outcome{UserID: userID, Status: suggest.StatusFailed, Err: err}
	})

	release, err := r.deps.Locker.Acquire(ctx, keylock.Key(StageSuggestion, userID))
	if err != nil {
		return suggest.Outcome{UserID: userID, Status: suggest.StatusFailed, Err: fmt.Errorf("acquire lock: %w", err)}
	}
	defer release()

	pattern, err := r.deps.Profiles.GetFoundedPattern(dbctx.For(ctx), userID)
	if err != nil {
		r.log.Warn("Cannot load founded_pattern", "user_id", userID, "error", err)
		return suggest.Outcome{UserID: userID, Status: suggest.StatusFailed, Err: err}
	}
	return r.deps.Suggester.Suggest(ctx, userID, pattern)
}

// recoverUser turns a panic in one user's stage unit into a failed outcome
// for that user. It must be deferred directly.
func (r *Runner) recoverUser(stage, userID string, fail func(err error)) {
	if v := recover(); v != nil {
		r.log.Error("Stage panic", "stage", stage, "user_id", userID, "panic", v)
		fail(&panicError{stage: stage, val: v})
	}
}

type panicError struct {
	stage string
	val   any
}

func (e *panicError) Error() string { return fmt.Sprintf("panic in %s: %v", e.stage, e.val) }

// forEach applies fn to every id and returns results in input order.
func forEach[T any](ctx context.Context, concurrency int, ids []string, fn func(context.Context, string) T) []T {
	out := make([]T, len(ids))
	if concurrency <= 1 {
		for i, id := range ids {
			out[i] = fn(ctx, id)
		}
		return out
	}
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			out[i] = fn(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func runStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
