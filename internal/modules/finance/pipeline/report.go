package pipeline

import (
	"time"

	"github.com/yungbote/finpulse-backend/internal/modules/finance/analyze"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/suggest"
)

type ExtractionStatus string

const (
	ExtractionStored          ExtractionStatus = "stored"
	ExtractionSkippedExisting ExtractionStatus = "skipped_existing"
	ExtractionSkippedNoRaw    ExtractionStatus = "skipped_no_raw"
	ExtractionFailed          ExtractionStatus = "failed"
)

type ExtractionResult struct {
	UserID string           `json:"user_id"`
	Status ExtractionStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
}

type AnalysisResult struct {
	UserID string         `json:"user_id"`
	Status analyze.Status `json:"status"`
	Error  string         `json:"error,omitempty"`
}

type PipelineReport struct {
	RunID      string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Force      bool               `json:"force"`
	Extraction []ExtractionResult `json:"extraction"`
	// Analysis maps user_id to the current founded_pattern, nil on failure.
	Analysis         map[string]*string `json:"analysis"`
	AnalysisOutcomes []AnalysisResult   `json:"analysis_outcomes"`
}

func (r *PipelineReport) ExtractionCounts() map[ExtractionStatus]int {
	out := map[ExtractionStatus]int{}
	for _, e := range r.Extraction {
		out[e.Status]++
	}
	return out
}

func (r *PipelineReport) AnalysisCounts() map[analyze.Status]int {
	out := map[analyze.Status]int{}
	for _, a := range r.AnalysisOutcomes {
		out[a.Status]++
	}
	return out
}

type SuggestionResult struct {
	UserID     string         `json:"user_id"`
	Status     suggest.Status `json:"status"`
	Suggestion string         `json:"suggestion,omitempty"`
	Attempts   int            `json:"attempts"`
	Error      string         `json:"error,omitempty"`
}

type SuggestionReport struct {
	RunID      string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Outcomes   []SuggestionResult `json:"outcomes"`
}

func (r *SuggestionReport) Counts() map[suggest.Status]int {
	out := map[suggest.Status]int{}
	for _, o := range r.Outcomes {
		out[o.Status]++
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
