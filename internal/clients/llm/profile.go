package llm

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProfileExtraction = "extraction"
	ProfileAnalysis   = "analysis"
	ProfileSuggestion = "suggestion"
	ProfileQuery      = "query"
)

// Profile is the named model configuration for one stage.
type Profile struct {
	Name            string        `yaml:"-" json:"name"`
	Provider        string        `yaml:"provider" json:"provider"`
	Model           string        `yaml:"model" json:"model"`
	Temperature     float64       `yaml:"temperature" json:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens" json:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
}

func (p Profile) Options() Options {
	return Options{Temperature: p.Temperature, MaxOutputTokens: p.MaxOutputTokens}
}

type Profiles map[string]Profile

const (
	defaultGroqModel   = "llama-3.3-70b-versatile"
	defaultGeminiModel = "gemini-2.0-flash"
	defaultOpenAIModel = "gpt-4o-mini"
)

func DefaultModel(provider string) string {
	switch provider {
	case ProviderGemini:
		return defaultGeminiModel
	case ProviderOpenAI:
		return defaultOpenAIModel
	default:
		return defaultGroqModel
	}
}

func DefaultProfiles() Profiles {
	return Profiles{
		ProfileExtraction: {Name: ProfileExtraction, Provider: ProviderGroq, Model: defaultGroqModel, Temperature: 0, MaxOutputTokens: 1200, Timeout: 60 * time.Second},
		ProfileAnalysis:   {Name: ProfileAnalysis, Provider: ProviderGroq, Model: defaultGroqModel, Temperature: 0.3, MaxOutputTokens: 600, Timeout: 90 * time.Second},
		ProfileSuggestion: {Name: ProfileSuggestion, Provider: ProviderGemini, Model: defaultGeminiModel, Temperature: 0.1, MaxOutputTokens: 150, Timeout: 30 * time.Second},
		ProfileQuery:      {Name: ProfileQuery, Provider: ProviderGroq, Model: defaultGroqModel, Temperature: 0.5, MaxOutputTokens: 300, Timeout: 60 * time.Second},
	}
}

// WithProvider forces provider (and model, when given) onto every profile.
func (ps Profiles) WithProvider(provider, model string) Profiles {
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.TrimSpace(model)
	out := make(Profiles, len(ps))
	for name, p := range ps {
		if provider != "" && provider != p.Provider {
			p.Provider = provider
			p.Model = DefaultModel(provider)
		}
		if model != "" {
			p.Model = model
		}
		out[name] = p
	}
	return out
}

type profileOverride struct {
	Provider        *string        `yaml:"provider"`
	Model           *string        `yaml:"model"`
	Temperature     *float64       `yaml:"temperature"`
	MaxOutputTokens *int           `yaml:"max_output_tokens"`
	Timeout         *time.Duration `yaml:"timeout"`
}

// Overlay applies a YAML document of the form
//
//	analysis:
//	  temperature: 0.2
//	  timeout: 2m
//
// on top of ps. Unknown profile names are rejected.
func (ps Profiles) Overlay(data []byte) (Profiles, error) {
	var overrides map[string]profileOverride
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse stage profiles: %w", err)
	}
	out := make(Profiles, len(ps))
	for k, v := range ps {
		out[k] = v
	}
	for name, o := range overrides {
		p, ok := out[name]
		if !ok {
			return nil, fmt.Errorf("unknown stage profile %q", name)
		}
		if o.Provider != nil {
			p.Provider = strings.ToLower(strings.TrimSpace(*o.Provider))
			if o.Model == nil {
				p.Model = DefaultModel(p.Provider)
			}
		}
		if o.Model != nil {
			p.Model = strings.TrimSpace(*o.Model)
		}
		if o.Temperature != nil {
			p.Temperature = *o.Temperature
		}
		if o.MaxOutputTokens != nil {
			p.MaxOutputTokens = *o.MaxOutputTokens
		}
		if o.Timeout != nil {
			p.Timeout = *o.Timeout
		}
		out[name] = p
	}
	return out, out.Validate()
}

func (ps Profiles) OverlayFile(path string) (Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stage profiles: %w", err)
	}
	return ps.Overlay(data)
}

func (ps Profiles) Validate() error {
	for _, name := range ps.Names() {
		p := ps[name]
		if !ValidProvider(p.Provider) {
			return fmt.Errorf("profile %s: unknown provider %q", name, p.Provider)
		}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("profile %s: model required", name)
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			return fmt.Errorf("profile %s: temperature %v out of range", name, p.Temperature)
		}
		if p.MaxOutputTokens <= 0 {
			return fmt.Errorf("profile %s: max_output_tokens must be positive", name)
		}
		if p.Timeout < 0 {
			return fmt.Errorf("profile %s: negative timeout", name)
		}
	}
	return nil
}

func (ps Profiles) Get(name string) (Profile, error) {
	p, ok := ps[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown stage profile %q", name)
	}
	return p, nil
}

// Names returns profile names in sorted order.
func (ps Profiles) Names() []string {
	names := make([]string, 0, len(ps))
	for k := range ps {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Providers returns the distinct providers the profiles use.
func (ps Profiles) Providers() []string {
	seen := map[string]bool{}
	var out []string
	for _, name := range ps.Names() {
		p := ps[name].Provider
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
