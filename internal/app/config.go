package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/finpulse-backend/internal/clients/llm"
	"github.com/yungbote/finpulse-backend/internal/data/db"
	"github.com/yungbote/finpulse-backend/internal/data/repos/mongostore"
	"github.com/yungbote/finpulse-backend/internal/observability"
	"github.com/yungbote/finpulse-backend/internal/pkg/envutil"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMongo    = "mongo"
)

type ProviderConfig struct {
	APIKey  string
	BaseURL string
}

type Config struct {
	StoreDriver string
	Postgres    db.PostgresConfig
	SQLitePath  string
	Mongo       mongostore.Config

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	PipelineConcurrency   int
	SuggestionSchedule    string
	SuggestionMaxAttempts int

	StageProfilesPath string
	LLMProvider       string
	LLMModel          string
	LLMMaxRetries     int
	OpenAI            ProviderConfig
	Groq              ProviderConfig
	Gemini            ProviderConfig

	HTTPAddr      string
	AuthJWTSecret string
	CORSOrigins   []string

	Otel observability.OtelConfig
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		StoreDriver: strings.ToLower(envutil.String("STORE_DRIVER", StorePostgres, log)),
		Postgres: db.PostgresConfig{
			Host:     envutil.String("POSTGRES_HOST", "localhost", log),
			Port:     envutil.String("POSTGRES_PORT", "5432", log),
			User:     envutil.String("POSTGRES_USER", "postgres", log),
			Password: envutil.String("POSTGRES_PASSWORD", "", log),
			Name:     envutil.String("POSTGRES_NAME", "finpulse", log),
			SSLMode:  envutil.String("POSTGRES_SSLMODE", "disable", log),
		},
		SQLitePath: envutil.String("SQLITE_PATH", "finpulse.db", log),
		Mongo: mongostore.Config{
			URI:                   envutil.String("MONGO_URI", "", log),
			Database:              envutil.String("MONGO_DATABASE", "user_profiles", log),
			RawProfilesCollection: envutil.String("RAW_PROFILES_COLLECTION", "raw_profiles", log),
			ProfilesCollection:    envutil.String("FINANCE_PROFILES_COLLECTION", "finance_profiles", log),
			SuggestionsCollection: envutil.String("SUGGESTION_HISTORY_COLLECTION", "suggestion_history", log),
		},

		RedisAddr:     envutil.String("REDIS_ADDR", "", log),
		RedisPassword: envutil.String("REDIS_PASSWORD", "", log),
		RedisDB:       envutil.Int("REDIS_DB", 0, log),
		LockTTL:       envutil.Duration("LOCK_TTL", 5*time.Minute, log),

		PipelineConcurrency:   envutil.Int("PIPELINE_CONCURRENCY", 1, log),
		SuggestionSchedule:    envutil.String("SUGGESTION_SCHEDULE", "@daily", log),
		SuggestionMaxAttempts: envutil.Int("SUGGESTION_MAX_ATTEMPTS", 2, log),

		StageProfilesPath: envutil.String("STAGE_PROFILES_PATH", "", log),
		LLMProvider:       strings.ToLower(envutil.String("LLM_PROVIDER", "", log)),
		LLMModel:          envutil.String("LLM_MODEL", "", log),
		LLMMaxRetries:     envutil.Int("LLM_MAX_RETRIES", 2, log),
		OpenAI: ProviderConfig{
			APIKey:  envutil.String("OPENAI_API_KEY", "", log),
			BaseURL: envutil.String("OPENAI_BASE_URL", "", log),
		},
		Groq: ProviderConfig{
			APIKey:  envutil.String("GROQ_API_KEY", "", log),
			BaseURL: envutil.String("GROQ_BASE_URL", "", log),
		},
		Gemini: ProviderConfig{
			APIKey:  envutil.String("GEMINI_API_KEY", envutil.String("GOOGLE_API_KEY", "", log), log),
			BaseURL: envutil.String("GEMINI_BASE_URL", "", log),
		},

		HTTPAddr:      envutil.String("HTTP_ADDR", ":8080", log),
		AuthJWTSecret: envutil.String("AUTH_JWT_SECRET", "", log),
		CORSOrigins:   splitList(envutil.String("CORS_ALLOWED_ORIGINS", "", log)),

		Otel: observability.OtelConfig{
			Enabled:      envutil.Bool("OTEL_ENABLED", false, log),
			ServiceName:  envutil.String("OTEL_SERVICE_NAME", "finpulse", log),
			Environment:  envutil.String("APP_ENV", "development", log),
			Version:      envutil.String("APP_VERSION", "dev", log),
			Endpoint:     envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "", log),
			Headers:      observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "", log)),
			Insecure:     envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false, log),
			SampleRatio:  envutil.Float("OTEL_TRACES_SAMPLER_ARG", 1, log),
			StdoutPretty: envutil.Bool("OTEL_STDOUT_PRETTY", false, log),
		},
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StorePostgres, StoreSQLite:
	case StoreMongo:
		if strings.TrimSpace(c.Mongo.URI) == "" {
			return fmt.Errorf("STORE_DRIVER=mongo requires MONGO_URI")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want postgres, sqlite or mongo)", c.StoreDriver)
	}
	if c.LLMProvider != "" && !llm.ValidProvider(c.LLMProvider) {
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.PipelineConcurrency < 1 {
		return fmt.Errorf("PIPELINE_CONCURRENCY must be >= 1, got %d", c.PipelineConcurrency)
	}
	if c.SuggestionMaxAttempts < 1 {
		return fmt.Errorf("SUGGESTION_MAX_ATTEMPTS must be >= 1, got %d", c.SuggestionMaxAttempts)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
