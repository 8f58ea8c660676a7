package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/finpulse-backend/internal/clients/llm"
	financerepo "github.com/yungbote/finpulse-backend/internal/data/repos/finance"
	"github.com/yungbote/finpulse-backend/internal/data/repos/testutil"
	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/analyze"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/extract"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/suggest"
	"github.com/yungbote/finpulse-backend/internal/observability"
	"github.com/yungbote/finpulse-backend/internal/pkg/ctxutil"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
	"github.com/yungbote/finpulse-backend/internal/pkg/keylock"
)

var userIDRe = regexp.MustCompile(`"user_id":\s*"([^"]+)"`)

// fakeLLM routes prompts by stage and counts calls per stage and user.
type fakeLLM struct {
	mu      sync.Mutex
	calls   map[string]int
	handler func(stage, userID, prompt string) (string, error)
}

func newFakeLLM(handler func(stage, userID, prompt string) (string, error)) *fakeLLM {
	return &fakeLLM{calls: map[string]int{}, handler: handler}
}

func (f *fakeLLM) Complete(_ context.Context, prompt string, _ llm.Options) (string, error) {
	stage := StageSuggestion
	switch {
	case strings.Contains(prompt, "data extraction assistant"):
		stage = StageExtraction
	case strings.Contains(prompt, "financial insights assistant"):
		stage = StageAnalysis
	}
	userID := ""
	if m := userIDRe.FindStringSubmatch(prompt); m != nil {
		userID = m[1]
	}
	f.mu.Lock()
	f.calls[stage]++
	f.calls[stage+":"+userID]++
	f.mu.Unlock()
	return f.handler(stage, userID, prompt)
}

func (f *fakeLLM) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func happy(stage, userID, _ string) (string, error) {
	switch stage {
	case StageExtraction:
		return fmt.Sprintf(`{"user_id":%q,"name":"User %s","accounts":[{"account_number":"AC-%s","balance":1500.25}]}`, userID, userID, userID), nil
	case StageAnalysis:
		return "Pattern for " + userID, nil
	default:
		return `{"suggestion":"Move 50 dollars into savings every Friday."}`, nil
	}
}

type harness struct {
	raw      financerepo.RawProfileRepo
	profiles financerepo.FinanceProfileRepo
	history  financerepo.SuggestionHistoryRepo
	llm      *fakeLLM
	locker   keylock.Locker
	metrics  *observability.Metrics
}

func newHarness(t *testing.T, handler func(stage, userID, prompt string) (string, error), users ...string) *harness {
	t.Helper()
	db := testutil.SQLiteDB(t)
	log := testutil.Logger(t)
	h := &harness{
		raw:      financerepo.NewRawProfileRepo(db, log),
		profiles: financerepo.NewFinanceProfileRepo(db, log),
		history:  financerepo.NewSuggestionHistoryRepo(db, log),
		llm:      newFakeLLM(handler),
		locker:   keylock.NewLocal(),
		metrics:  observability.NewMetrics(),
	}
	recs := make([]*types.RawRecord, 0, len(users))
	for _, u := range users {
		recs = append(recs, &types.RawRecord{UserID: u, Doc: map[string]any{"name": "User " + u}})
	}
	if _, err := h.raw.Insert(dbctx.For(context.Background()), recs); err != nil {
		t.Fatalf("seed raw: %v", err)
	}
	return h
}

func (h *harness) runner(t *testing.T, concurrency int) *Runner {
	log := testutil.Logger(t)
	return NewRunner(Deps{
		Raw:       h.raw,
		Profiles:  h.profiles,
		Extractor: extract.New(h.llm, log),
		Analyzer:  analyze.New(h.llm, h.profiles, log),
		Suggester: suggest.New(h.llm, h.history, suggest.Config{}, log),
		Locker:    h.locker,
		Metrics:   h.metrics,
		Log:       log,
	}, Config{Concurrency: concurrency})
}

func TestRunPipelineIsIdempotent(t *testing.T) {
	h := newHarness(t, happy, "u1", "u2")
	r := h.runner(t, 1)

	first, err := r.RunPipeline(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if c := first.ExtractionCounts(); c[ExtractionStored] != 2 {
		t.Fatalf("first extraction = %v", c)
	}
	if p := first.Analysis["u1"]; p == nil || *p != "Pattern for u1" {
		t.Fatalf("analysis u1 = %v", p)
	}

	second, err := r.RunPipeline(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if c := second.ExtractionCounts(); c[ExtractionSkippedExisting] != 2 {
		t.Fatalf("second extraction = %v", c)
	}
	if c := second.AnalysisCounts(); c[analyze.StatusSkipped] != 2 {
		t.Fatalf("second analysis = %v", c)
	}
	if p := second.Analysis["u2"]; p == nil || *p != "Pattern for u2" {
		t.Fatalf("skipped users still report their pattern: %v", p)
	}
	if n := h.llm.count(StageExtraction); n != 2 {
		t.Fatalf("extraction calls = %d, want 2", n)
	}
	if n := h.llm.count(StageAnalysis); n != 2 {
		t.Fatalf("analysis calls = %d, want 2", n)
	}
	stored, err := h.profiles.List(dbctx.For(context.Background()))
	if err != nil || len(stored) != 2 {
		t.Fatalf("stored profiles = %d, %v", len(stored), err)
	}
}

func TestRunPipelineForceReanalyzes(t *testing.T) {
	h := newHarness(t, happy, "u1")
	r := h.runner(t, 1)
	if _, err := r.RunPipeline(context.Background(), RunOptions{}); err != nil {
		t.Fatal(err)
	}
	report, err := r.RunPipeline(context.Background(), RunOptions{Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if c := report.AnalysisCounts(); c[analyze.StatusAnalyzed] != 1 || h.llm.count(StageAnalysis) != 2 {
		t.Fatalf("force run analysis = %v, calls = %d", c, h.llm.count(StageAnalysis))
	}
}

func TestRunPipelineIsolatesExtractionFailure(t *testing.T) {
	h := newHarness(t, func(stage, userID, prompt string) (string, error) {
		if stage == StageExtraction && userID == "u2" {
			return "", errors.New("model unavailable")
		}
		return happy(stage, userID, prompt)
	}, "u1", "u2", "u3")

	report, err := h.runner(t, 1).RunPipeline(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	byUser := map[string]ExtractionResult{}
	for _, e := range report.Extraction {
		byUser[e.UserID] = e
	}
	if byUser["u2"].Status != ExtractionFailed || !strings.Contains(byUser["u2"].Error, "model unavailable") {
		t.Fatalf("u2 = %+v", byUser["u2"])
	}
	dbc := dbctx.For(context.Background())
	for _, u := range []string{"u1", "u3"} {
		if byUser[u].Status != ExtractionStored {
			t.Fatalf("%s = %+v", u, byUser[u])
		}
		got, err := h.profiles.GetFoundedPattern(dbc, u)
		if err != nil || got != "Pattern for "+u {
			t.Fatalf("%s pattern = %q, %v", u, got, err)
		}
	}
	if ok, _ := h.profiles.Exists(dbc, "u2"); ok {
		t.Fatal("failed user must not get a profile")
	}
}

func TestRunPipelineIsolatesAnalysisFailure(t *testing.T) {
	h := newHarness(t, func(stage, userID, prompt string) (string, error) {
		if stage == StageAnalysis && userID == "u2" {
			return "", errors.New("timeout")
		}
		return happy(stage, userID, prompt)
	}, "u1", "u2", "u3")

	report, err := h.runner(t, 1).RunPipeline(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if p, ok := report.Analysis["u2"]; !ok || p != nil {
		t.Fatalf("u2 should map to a null result, got %v (present=%v)", p, ok)
	}
	for _, u := range []string{"u1", "u3"} {
		if p := report.Analysis[u]; p == nil || *p != "Pattern for "+u {
			t.Fatalf("%s = %v", u, p)
		}
	}
}

func TestRunPipelineRejectsInvalidExtraction(t *testing.T) {
	h := newHarness(t, func(stage, userID, prompt string) (string, error) {
		if stage == StageExtraction {
			return `{"accounts":[{"balance":"plenty"}]}`, nil
		}
		return happy(stage, userID, prompt)
	}, "u1")

	report, err := h.runner(t, 1).RunPipeline(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Extraction[0].Status != ExtractionFailed || !strings.Contains(report.Extraction[0].Error, "accounts[0].balance") {
		t.Fatalf("extraction = %+v", report.Extraction)
	}
	if ok, _ := h.profiles.Exists(dbctx.For(context.Background()), "u1"); ok {
		t.Fatal("invalid candidate must not be stored")
	}
}

func TestRunPipelineStoresOnlyPresentFields(t *testing.T) {
	h := newHarness(t, happy, "u1")
	if _, err := h.runner(t, 1).RunPipeline(context.Background(), RunOptions{}); err != nil {
		t.Fatal(err)
	}
	sp, err := h.profiles.Get(dbctx.For(context.Background()), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sp.Doc["employment"]; ok {
		t.Fatalf("employment must be absent: %v", sp.Doc)
	}
	if sp.Doc["name"] != "User u1" {
		t.Fatalf("doc = %v", sp.Doc)
	}
}

func TestConcurrentRunnersExtractEachUserOnce(t *testing.T) {
	users := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
	h := newHarness(t, func(stage, userID, prompt string) (string, error) {
		time.Sleep(2 * time.Millisecond)
		return happy(stage, userID, prompt)
	}, users...)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		r := h.runner(t, 3)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.RunPipeline(context.Background(), RunOptions{}); err != nil {
				t.Errorf("RunPipeline: %v", err)
			}
		}()
	}
	wg.Wait()

	for _, u := range users {
		if n := h.llm.count(StageExtraction + ":" + u); n != 1 {
			t.Fatalf("%s extracted %d times", u, n)
		}
		if n := h.llm.count(StageAnalysis + ":" + u); n != 1 {
			t.Fatalf("%s analyzed %d times", u, n)
		}
	}
}

func TestRunPipelineRejectsOverlappingRun(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	h := newHarness(t, func(stage, userID, prompt string) (string, error) {
		once.Do(func() { close(entered) })
		<-unblock
		return happy(stage, userID, prompt)
	}, "u1")
	r := h.runner(t, 1)

	done := make(chan error, 1)
	go func() {
		_, err := r.RunPipeline(context.Background(), RunOptions{})
		done <- err
	}()
	<-entered
	if !r.Running(PassPipeline) {
		t.Fatal("expected pipeline to be running")
	}
	if _, err := r.RunPipeline(context.Background(), RunOptions{}); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("overlapping run: %v", err)
	}
	close(unblock)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if r.Running(PassPipeline) {
		t.Fatal("pass should be released")
	}
}

func TestRunSuggestionsCoversAnalyzedUsersOnly(t *testing.T) {
	h := newHarness(t, happy, "u1", "u2")
	r := h.runner(t, 2)
	if _, err := r.RunPipeline(context.Background(), RunOptions{}); err != nil {
		t.Fatal(err)
	}
	// A profile without a pattern is not eligible.
	dbc := dbctx.For(context.Background())
	if err := h.profiles.Upsert(dbc, "u9", map[string]any{"name": "No pattern"}); err != nil {
		t.Fatal(err)
	}

	report, err := r.RunSuggestions(context.Background())
	if err != nil {
		t.Fatalf("RunSuggestions: %v", err)
	}
	if c := report.Counts(); c[suggest.StatusSuggested] != 2 || len(report.Outcomes) != 2 {
		t.Fatalf("outcomes = %+v", report.Outcomes)
	}
	for _, u := range []string{"u1", "u2"} {
		hist, err := h.history.Get(dbc, u)
		if err != nil || len(hist.Entries) != 1 {
			t.Fatalf("%s history = %+v, %v", u, hist, err)
		}
	}

	// Same reply next day is a duplicate inside the window.
	again, err := r.RunSuggestions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c := again.Counts(); c[suggest.StatusDuplicate] != 2 {
		t.Fatalf("second pass = %v", c)
	}
}

func TestRunnerRecordsStageMetrics(t *testing.T) {
	h := newHarness(t, happy, "u1")
	if _, err := h.runner(t, 1).RunPipeline(context.Background(), RunOptions{}); err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	if err := h.metrics.WritePrometheus(&b); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, want := range []string{`stage="extraction",status="stored"`, `stage="analysis",status="analyzed"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics missing %s:\n%s", want, out)
		}
	}
}

func TestRunRecordsRunIDOnTraceData(t *testing.T) {
	h := newHarness(t, happy, "run-id-user")
	r := h.runner(t, 1)

	td := &ctxutil.TraceData{RequestID: "req-1"}
	ctx := ctxutil.WithTraceData(context.Background(), td)
	first, err := r.RunPipeline(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if first.RunID == "" || td.RunID != first.RunID {
		t.Fatalf("run id not propagated: report=%q trace=%q", first.RunID, td.RunID)
	}

	second, err := r.RunSuggestions(context.Background())
	if err != nil {
		t.Fatalf("RunSuggestions: %v", err)
	}
	if second.RunID == "" || second.RunID == first.RunID {
		t.Fatalf("expected a fresh run id, got %q after %q", second.RunID, first.RunID)
	}
}

func TestRunPipelineIsolatesPanickingUser(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			h := newHarness(t, func(stage, userID, prompt string) (string, error) {
				if stage == StageExtraction && userID == "u2" {
					var m map[string]int
					m["boom"]++
				}
				if stage == StageAnalysis && userID == "u3" {
					panic("analysis blew up")
				}
				return happy(stage, userID, prompt)
			}, "u1", "u2", "u3")

			report, err := h.runner(t, concurrency).RunPipeline(context.Background(), RunOptions{})
			if err != nil {
				t.Fatalf("RunPipeline: %v", err)
			}
			byUser := map[string]ExtractionResult{}
			for _, e := range report.Extraction {
				byUser[e.UserID] = e
			}
			if byUser["u2"].Status != ExtractionFailed || !strings.Contains(byUser["u2"].Error, "panic in extraction") {
				t.Fatalf("u2 = %+v", byUser["u2"])
			}
			dbc := dbctx.For(context.Background())
			for _, u := range []string{"u1", "u3"} {
				if byUser[u].Status != ExtractionStored {
					t.Fatalf("%s = %+v", u, byUser[u])
				}
				if ok, _ := h.profiles.Exists(dbc, u); !ok {
					t.Fatalf("%s profile not stored", u)
				}
			}
			if p := report.Analysis["u1"]; p == nil || *p != "Pattern for u1" {
				t.Fatalf("u1 analysis = %v", p)
			}
			if p, ok := report.Analysis["u3"]; !ok || p != nil {
				t.Fatalf("u3 analysis = %v (present %v), want nil", p, ok)
			}
			if c := report.AnalysisCounts(); c[analyze.StatusFailed] != 1 {
				t.Fatalf("analysis counts = %v", c)
			}
		})
	}
}

func TestRunSuggestionsIsolatesPanickingUser(t *testing.T) {
	h := newHarness(t, func(stage, userID, prompt string) (string, error) {
		if stage == StageSuggestion && strings.Contains(prompt, "Pattern for u1") {
			panic("suggestion blew up")
		}
		return happy(stage, userID, prompt)
	}, "u1", "u2")
	r := h.runner(t, 1)
	if _, err := r.RunPipeline(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}

	report, err := r.RunSuggestions(context.Background())
	if err != nil {
		t.Fatalf("RunSuggestions: %v", err)
	}
	if c := report.Counts(); c[suggest.StatusFailed] != 1 || c[suggest.StatusSuggested] != 1 {
		t.Fatalf("counts = %v", c)
	}
}
