// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting for the claim verification service.
type Config struct {
	AppEnv        string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN   string `env:"POSTGRES_DSN,required"`
	InternalToken string `env:"INTERNAL_TOKEN"`
	APIPort       int    `env:"API_PORT" envDefault:"8000"`
	HealthPort    int    `env:"HEALTH_PORT" envDefault:"8080"`

	// Side files
	VectorIndexPath string `env:"VECTOR_INDEX_PATH" envDefault:"./data/vectors.index"`
	MemoryGraphPath string `env:"MEMORY_GRAPH_PATH" envDefault:"./data/memory_graph.json"`

	// Embeddings
	EmbeddingAPIKey     string `env:"EMBEDDING_API_KEY"`
	EmbeddingModel      string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions int    `env:"EMBEDDING_DIMENSIONS" envDefault:"1536"`
	EmbeddingRateLimit  int    `env:"EMBEDDING_RATE_LIMIT" envDefault:"5"`

	// Detection and clustering thresholds
	DetectionThreshold  float32 `env:"DETECTION_THRESHOLD" envDefault:"0.3"`
	SimilarityThreshold float32 `env:"SIMILARITY_THRESHOLD" envDefault:"0.75"`

	// Adjudicator
	AdjudicatorBackend string        `env:"ADJUDICATOR_BACKEND" envDefault:"openai"`
	AdjudicatorAPIKey  string        `env:"ADJUDICATOR_API_KEY"`
	AdjudicatorModel   string        `env:"ADJUDICATOR_MODEL" envDefault:"deepseek/deepseek-r1-0528-qwen3-8b"`
	AdjudicatorBaseURL string        `env:"ADJUDICATOR_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	AdjudicatorTimeout time.Duration `env:"ADJUDICATOR_TIMEOUT" envDefault:"120s"`
	LocalModelURL      string        `env:"LOCAL_MODEL_URL" envDefault:"http://localhost:11434"`
	LocalModelName     string        `env:"LOCAL_MODEL_NAME" envDefault:"llama2"`

	// Evidence search
	SearchRegion         string        `env:"SEARCH_REGION" envDefault:"in-en"`
	SearchSafesearch     string        `env:"SEARCH_SAFESEARCH" envDefault:"moderate"`
	SearchTimeLimit      string        `env:"SEARCH_TIMELIMIT" envDefault:"w"`
	SearchTimeout        time.Duration `env:"SEARCH_TIMEOUT" envDefault:"15s"`
	SearchMaxPerQuery    int           `env:"SEARCH_MAX_PER_QUERY" envDefault:"5"`
	PageFetchTimeout     time.Duration `env:"PAGE_FETCH_TIMEOUT" envDefault:"10s"`
	AuthoritativeDomains []string      `env:"AUTHORITATIVE_DOMAINS" envSeparator:","`
	FactCheckAPIKey      string        `env:"FACTCHECK_API_KEY"`
	FactCheckRPM         int           `env:"FACTCHECK_RPM" envDefault:"60"`

	// Background verification worker
	VerificationEnabled  bool          `env:"ENABLE_BACKGROUND_VERIFICATION" envDefault:"true"`
	VerificationInterval time.Duration `env:"VERIFICATION_INTERVAL" envDefault:"60s"`
	VerificationBatch    int           `env:"VERIFICATION_BATCH_SIZE" envDefault:"5"`

	// Ingestion rate limiting
	SourceRateLimitSeconds int `env:"SOURCE_RATE_LIMIT_SECONDS" envDefault:"3"`

	// Database pool
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

// defaultAuthoritativeDomains is used when AUTHORITATIVE_DOMAINS is not set.
// Registered domains only; matching is on eTLD+1 after stripping "www.".
var defaultAuthoritativeDomains = []string{
	"who.int",
	"cdc.gov",
	"gov.in",
	"pib.gov.in",
	"mohfw.gov.in",
	"ndma.gov.in",
	"imd.gov.in",
	"factcheck.org",
	"snopes.com",
	"politifact.com",
	"reuters.com",
	"apnews.com",
	"bbc.com",
	"altnews.in",
	"boomlive.in",
	"vishvasnews.com",
	"thequint.com",
	"indianexpress.com",
	"thehindu.com",
	"hindustantimes.com",
	"wikipedia.org",
}

// Load reads configuration from the environment, with an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.AuthoritativeDomains) == 0 {
		cfg.AuthoritativeDomains = append([]string(nil), defaultAuthoritativeDomains...)
	}

	for i, d := range cfg.AuthoritativeDomains {
		cfg.AuthoritativeDomains[i] = strings.ToLower(strings.TrimSpace(d))
	}
}
