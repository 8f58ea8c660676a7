package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/finpulse-backend/internal/observability"
	"github.com/yungbote/finpulse-backend/internal/pkg/ctxutil"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type instrumented struct {
	next    Client
	profile Profile
	log     *logger.Logger
	metrics *observability.Metrics
}

// Instrument bounds every call by the profile timeout and records an
// "llm.complete" span plus request metrics. The profile's options are used
// when the caller passes a zero Options.
func Instrument(next Client, profile Profile, log *logger.Logger, metrics *observability.Metrics) Client {
	if log == nil {
		log = logger.Nop()
	}
	return &instrumented{
		next:    next,
		profile: profile,
		log:     log.With("component", "llm", "profile", profile.Name, "provider", profile.Provider),
		metrics: metrics,
	}
}

func (c *instrumented) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	if opts == (Options{}) {
		opts = c.profile.Options()
	}
	ctx, cancel := ctxutil.WithOptionalTimeout(ctxutil.Default(ctx), c.profile.Timeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "llm.complete",
		attribute.String("llm.profile", c.profile.Name),
		attribute.String("llm.provider", c.profile.Provider),
		attribute.String("llm.model", c.profile.Model),
		attribute.Float64("llm.temperature", opts.Temperature),
		attribute.Int("llm.max_output_tokens", opts.MaxOutputTokens),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)
	start := time.Now()
	text, err := c.next.Complete(ctx, prompt, opts)
	dur := time.Since(start)

	status := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
	case err != nil:
		status = "error"
	case strings.TrimSpace(text) == "":
		status = "empty"
	}
	span.SetAttributes(attribute.String("llm.status", status), attribute.Int("llm.output_chars", len(text)))
	observability.EndSpan(span, err)
	c.metrics.ObserveLLMRequest(c.profile.Name, c.profile.Provider, status, dur)
	c.log.Debug("model call finished", "status", status, "duration", dur.String())
	return text, err
}
