package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/yungbote/finpulse-backend/internal/clients/redis"
	httpx "github.com/yungbote/finpulse-backend/internal/http"
	httpH "github.com/yungbote/finpulse-backend/internal/http/handlers"
	httpMW "github.com/yungbote/finpulse-backend/internal/http/middleware"
	"github.com/yungbote/finpulse-backend/internal/jobs/scheduler"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/analyze"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/extract"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/pipeline"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/query"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/suggest"
	"github.com/yungbote/finpulse-backend/internal/observability"
	"github.com/yungbote/finpulse-backend/internal/pkg/keylock"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type Options struct {
	// SkipLLM wires storage only, for commands that never call a model.
	SkipLLM bool

	providers providerFactory
}

type App struct {
	Log     *logger.Logger
	Cfg     Config
	Metrics *observability.Metrics
	Repos   *Repos
	LLM     *LLMClients
	Locker  keylock.Locker

	Runner     *pipeline.Runner
	Summarizer *query.Summarizer

	closers []func(context.Context) error
}

func New(ctx context.Context, opts Options) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newWithConfig(ctx, log, cfg, opts)
}

func newWithConfig(ctx context.Context, log *logger.Logger, cfg Config, opts Options) (*App, error) {
	a := &App{Log: log, Cfg: cfg, Metrics: observability.NewMetrics()}

	a.closers = append(a.closers, observability.InitOTel(ctx, log, cfg.Otel))

	repos, err := wireRepos(ctx, log, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init store: %w", err)
	}
	a.Repos = repos
	a.closers = append(a.closers, repos.Close)

	if opts.SkipLLM {
		return a, nil
	}

	locker, err := wireLocker(ctx, log, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Locker = locker

	build := opts.providers
	if build == nil {
		build = defaultFactory(cfg, log)
	}
	clients, err := wireLLM(ctx, log, a.Metrics, cfg, build)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init llm: %w", err)
	}
	a.LLM = clients

	a.Runner = pipeline.NewRunner(pipeline.Deps{
		Raw:       repos.Raw,
		Profiles:  repos.Profiles,
		Extractor: extract.New(clients.Extraction, log),
		Analyzer:  analyze.New(clients.Analysis, repos.Profiles, log),
		Suggester: suggest.New(clients.Suggestion, repos.Suggestions, suggest.Config{MaxAttempts: cfg.SuggestionMaxAttempts}, log),
		Locker:    locker,
		Metrics:   a.Metrics,
		Log:       log,
	}, pipeline.Config{Concurrency: cfg.PipelineConcurrency})
	a.Summarizer = query.NewSummarizer(clients.Query, repos.Profiles, log)
	return a, nil
}

// wireLocker picks Redis when REDIS_ADDR is set so several processes share
// per-user locks; otherwise locks are process-local.
func wireLocker(ctx context.Context, log *logger.Logger, cfg Config) (keylock.Locker, error) {
	if cfg.RedisAddr == "" {
		log.Info("Using in-process user locks")
		return keylock.NewLocal(), nil
	}
	l, err := redis.NewLocker(ctx, log, redis.LockerConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   "finpulse:lock:",
		TTL:      cfg.LockTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init redis locker: %w", err)
	}
	log.Info("Using redis user locks", "addr", cfg.RedisAddr)
	return l, nil
}

func (a *App) NewServer() (*httpx.Server, error) {
	if a.Runner == nil {
		return nil, fmt.Errorf("app wired without llm clients")
	}
	auth := httpMW.NewAuthMiddleware(a.Log, a.Cfg.AuthJWTSecret)
	if !auth.Enabled() {
		a.Log.Warn("AUTH_JWT_SECRET not set; /api routes are unauthenticated")
	}
	serviceName := ""
	if a.Cfg.Otel.Enabled {
		serviceName = a.Cfg.Otel.ServiceName
	}
	return httpx.NewServer(a.Cfg.HTTPAddr, httpx.RouterConfig{
		Log:            a.Log,
		Metrics:        a.Metrics,
		ServiceName:    serviceName,
		CORSOrigins:    a.Cfg.CORSOrigins,
		AuthMiddleware: auth,
		HealthHandler:  httpH.NewHealthHandler(a.Repos, a.Runner),
		RunHandler:     httpH.NewRunHandler(a.Log, a.Runner),
		UserHandler:    httpH.NewUserHandler(a.Log, a.Repos.Profiles, a.Repos.Suggestions),
	}), nil
}

// NewScheduler registers the recurring suggestion pass. An empty
// SUGGESTION_SCHEDULE disables it.
func (a *App) NewScheduler() (*scheduler.Scheduler, error) {
	if a.Runner == nil {
		return nil, fmt.Errorf("app wired without llm clients")
	}
	s := scheduler.New(a.Log)
	if a.Cfg.SuggestionSchedule == "" {
		return s, nil
	}
	err := s.Add(scheduler.Job{
		Name: pipeline.PassSuggestions,
		Spec: a.Cfg.SuggestionSchedule,
		Run: func(ctx context.Context) error {
			_, err := a.Runner.RunSuggestions(ctx)
			return err
		},
		Skip: []error{pipeline.ErrRunInProgress},
	})
	return s, err
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if c, ok := a.Locker.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	if a.Log != nil {
		a.Log.Sync()
	}
	return errors.Join(errs...)
}
