package observability

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Metrics holds process counters exposed in Prometheus text format.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	stageOutcomes *CounterVec
	stageLatency  *HistogramVec
	llmRequests   *CounterVec
	llmLatency    *HistogramVec
	runs          *CounterVec
	runsInflight  *Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("finpulse_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"finpulse_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight:   NewGauge("finpulse_api_inflight_requests", "In-flight API requests."),
		stageOutcomes: NewCounterVec("finpulse_stage_outcomes_total", "Per-user stage outcomes by stage/status.", []string{"stage", "status"}),
		stageLatency: NewHistogramVec(
			"finpulse_stage_duration_seconds",
			"Per-user stage latency in seconds by stage/status.",
			[]string{"stage", "status"},
			[]float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		llmRequests: NewCounterVec("finpulse_llm_requests_total", "Model calls by profile/provider/status.", []string{"profile", "provider", "status"}),
		llmLatency: NewHistogramVec(
			"finpulse_llm_request_duration_seconds",
			"Model call latency in seconds by profile/provider/status.",
			[]string{"profile", "provider", "status"},
			[]float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		runs:         NewCounterVec("finpulse_runs_total", "Completed passes by pass/status.", []string{"pass", "status"}),
		runsInflight: NewGauge("finpulse_runs_inflight", "Passes currently running."),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.stageOutcomes, m.stageLatency,
		m.llmRequests, m.llmLatency,
		m.runs, m.runsInflight,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	code := strconv.Itoa(status)
	m.apiRequests.Inc(method, route, code)
	m.apiLatency.Observe(dur.Seconds(), method, route, code)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	stage = orUnknown(stage)
	status = orUnknown(status)
	m.stageOutcomes.Inc(stage, status)
	if dur > 0 {
		m.stageLatency.Observe(dur.Seconds(), stage, status)
	}
}

func (m *Metrics) ObserveLLMRequest(profile, provider, status string, dur time.Duration) {
	if m == nil {
		return
	}
	profile = orUnknown(profile)
	provider = orUnknown(provider)
	status = orUnknown(status)
	m.llmRequests.Inc(profile, provider, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), profile, provider, status)
	}
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsInflight.Inc()
}

func (m *Metrics) RunFinished(pass, status string) {
	if m == nil {
		return
	}
	m.runsInflight.Dec()
	m.runs.Inc(orUnknown(pass), orUnknown(status))
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
