// Package scheduler runs recurring passes on cron specs inside the serve process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron"

	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

// Job is one recurring unit of work. Spec is a robfig/cron spec such as
// "@daily" or "0 0 6 * * *".
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
	// Skip lists errors that mean "not this time" rather than failure.
	Skip []error
}

type Scheduler struct {
	log  *logger.Logger
	cron *cron.Cron

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(baseLog *logger.Logger) *Scheduler {
	return &Scheduler{
		log:  baseLog.With("component", "Scheduler"),
		cron: cron.NewWithLocation(time.UTC),
	}
}

// Add validates the spec and registers the job. Jobs added after Start run
// on the next tick.
func (s *Scheduler) Add(job Job) error {
	if strings.TrimSpace(job.Name) == "" || job.Run == nil {
		return fmt.Errorf("scheduler: job needs a name and a run func")
	}
	if _, err := cron.Parse(job.Spec); err != nil {
		return fmt.Errorf("scheduler: job %s spec %q: %w", job.Name, job.Spec, err)
	}
	if err := s.cron.AddFunc(job.Spec, func() { s.invoke(job) }); err != nil {
		return fmt.Errorf("scheduler: add %s: %w", job.Name, err)
	}
	s.log.Info("Scheduled job", "job", job.Name, "spec", job.Spec)
	return nil
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.log.Info("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts the cron loop, cancels in-flight jobs and waits for them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	s.cron.Stop()
	cancel()
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func (s *Scheduler) invoke(job Job) {
	s.wg.Add(1)
	defer s.wg.Done()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Scheduled job panic", "job", job.Name, "panic", r)
		}
	}()

	err := job.Run(s.runContext())
	dur := time.Since(start).String()
	switch {
	case err == nil:
		s.log.Info("Scheduled job finished", "job", job.Name, "duration", dur)
	case isSkip(err, job.Skip):
		s.log.Info("Scheduled job skipped", "job", job.Name, "reason", err)
	default:
		s.log.Warn("Scheduled job failed", "job", job.Name, "duration", dur, "error", err)
	}
}

func isSkip(err error, skip []error) bool {
	for _, target := range skip {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
