package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/finpulse-backend/internal/clients/gemini"
	"github.com/yungbote/finpulse-backend/internal/clients/groq"
	"github.com/yungbote/finpulse-backend/internal/clients/llm"
	"github.com/yungbote/finpulse-backend/internal/clients/openai"
	"github.com/yungbote/finpulse-backend/internal/observability"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

// LLMClients holds one instrumented client per stage profile.
type LLMClients struct {
	Profiles   llm.Profiles
	Extraction llm.Client
	Analysis   llm.Client
	Suggestion llm.Client
	Query      llm.Client
}

func resolveProfiles(cfg Config) (llm.Profiles, error) {
	profiles := llm.DefaultProfiles()
	if cfg.LLMProvider != "" || cfg.LLMModel != "" {
		profiles = profiles.WithProvider(cfg.LLMProvider, cfg.LLMModel)
	}
	if path := strings.TrimSpace(cfg.StageProfilesPath); path != "" {
		var err error
		if profiles, err = profiles.OverlayFile(path); err != nil {
			return nil, err
		}
	}
	return profiles, profiles.Validate()
}

// providerFactory builds a raw provider client for one (provider, profile) pair.
type providerFactory func(ctx context.Context, p llm.Profile) (llm.Client, error)

func defaultFactory(cfg Config, log *logger.Logger) providerFactory {
	return func(ctx context.Context, p llm.Profile) (llm.Client, error) {
		switch p.Provider {
		case llm.ProviderGroq:
			return groq.NewClient(log, groq.Config{
				APIKey: cfg.Groq.APIKey, BaseURL: cfg.Groq.BaseURL,
				Model: p.Model, Timeout: p.Timeout, MaxRetries: cfg.LLMMaxRetries,
			})
		case llm.ProviderGemini:
			return gemini.NewClient(ctx, log, gemini.Config{
				APIKey: cfg.Gemini.APIKey, BaseURL: cfg.Gemini.BaseURL,
				Model: p.Model, Timeout: p.Timeout, MaxRetries: cfg.LLMMaxRetries,
			})
		case llm.ProviderOpenAI:
			return openai.NewClient(log, openai.Config{
				APIKey: cfg.OpenAI.APIKey, BaseURL: cfg.OpenAI.BaseURL,
				Model: p.Model, Timeout: p.Timeout, MaxRetries: cfg.LLMMaxRetries,
			})
		default:
			return nil, fmt.Errorf("unknown provider %q", p.Provider)
		}
	}
}

func wireLLM(ctx context.Context, log *logger.Logger, metrics *observability.Metrics, cfg Config, build providerFactory) (*LLMClients, error) {
	log.Info("Wiring LLM clients...")
	profiles, err := resolveProfiles(cfg)
	if err != nil {
		return nil, err
	}

	cache := map[string]llm.Client{}
	client := func(name string) (llm.Client, error) {
		p, err := profiles.Get(name)
		if err != nil {
			return nil, err
		}
		key := p.Provider + "|" + p.Model + "|" + p.Timeout.String()
		raw, ok := cache[key]
		if !ok {
			if raw, err = build(ctx, p); err != nil {
				return nil, fmt.Errorf("profile %s: %w", name, err)
			}
			cache[key] = raw
		}
		log.Info("LLM profile wired", "profile", name, "provider", p.Provider, "model", p.Model)
		return llm.Instrument(raw, p, log, metrics), nil
	}

	out := &LLMClients{Profiles: profiles}
	for _, slot := range []struct {
		name string
		dst  *llm.Client
	}{
		{llm.ProfileExtraction, &out.Extraction},
		{llm.ProfileAnalysis, &out.Analysis},
		{llm.ProfileSuggestion, &out.Suggestion},
		{llm.ProfileQuery, &out.Query},
	} {
		c, err := client(slot.name)
		if err != nil {
			return nil, err
		}
		*slot.dst = c
	}
	return out, nil
}
