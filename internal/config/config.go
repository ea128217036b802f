// Package config loads process settings from .env, the environment and an
// optional YAML overlay named by LEADBUFFER_CONFIG.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xavierca1/leadbuffer/internal/entity"
)

const OverlayEnv = "LEADBUFFER_CONFIG"

type Config struct {
	DatabaseURL string `yaml:"-"`
	AMQPURL     string `yaml:"-"`
	HTTPAddr    string `yaml:"http_addr"`
	LogLevel    string `yaml:"log_level"`
	Version     string `yaml:"-"`

	PeopleAPIURL   string  `yaml:"people_api_url"`
	PeopleAPIKey   string  `yaml:"-"`
	PeopleRPS      float64 `yaml:"people_rps"`
	BrandAPIURL    string  `yaml:"brand_api_url"`
	BrandAPIKey    string  `yaml:"-"`
	DeliveryAPIURL string  `yaml:"delivery_api_url"`
	DeliveryAPIKey string  `yaml:"-"`
	RunsAPIURL     string  `yaml:"runs_api_url"`
	RunsAPIKey     string  `yaml:"-"`
	GeminiAPIKey   string  `yaml:"-"`
	GeminiModel    string  `yaml:"gemini_model"`
	GeminiBaseURL  string  `yaml:"gemini_base_url"`

	ScopeMode              string        `yaml:"scope_mode"`
	PullMaxIterations      int           `yaml:"pull_max_iterations"`
	PullMaxBackfillPages   int           `yaml:"pull_max_backfill_pages"`
	SearchPerPage          int           `yaml:"search_per_page"`
	IdempotencyTTL         time.Duration `yaml:"idempotency_ttl"`
	IdempotencyPruneRate   float64       `yaml:"idempotency_prune_rate"`
	TranslationCacheTTL    time.Duration `yaml:"translation_cache_ttl"`
	TranslationMaxAttempts int           `yaml:"translation_max_attempts"`
	LocalCacheBytes        int64         `yaml:"local_cache_bytes"`

	CORSOrigins    []string `yaml:"cors_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
}

func Defaults() Config {
	return Config{
		HTTPAddr:               ":8080",
		LogLevel:               "info",
		Version:                "dev",
		PeopleRPS:              5,
		GeminiModel:            "gemini-2.5-flash",
		ScopeMode:              string(entity.ScopeByNamespace),
		PullMaxIterations:      100,
		PullMaxBackfillPages:   50,
		SearchPerPage:          25,
		IdempotencyTTL:         24 * time.Hour,
		IdempotencyPruneRate:   0.02,
		TranslationCacheTTL:    90 * 24 * time.Hour,
		TranslationMaxAttempts: 3,
		LocalCacheBytes:        32 << 20,
		CORSOrigins:            []string{"*"},
		RateLimitRPS:           20,
		RateLimitBurst:         40,
	}
}

// Load reads .env when present, then the environment, then the YAML
// overlay. Malformed numbers are reported together.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if path := strings.TrimSpace(os.Getenv(OverlayEnv)); path != "" {
		if err := cfg.applyOverlay(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	str(&c.DatabaseURL, "DATABASE_URL")
	str(&c.AMQPURL, "AMQP_URL")
	str(&c.HTTPAddr, "HTTP_ADDR")
	str(&c.LogLevel, "LOG_LEVEL")
	str(&c.Version, "APP_VERSION")

	str(&c.PeopleAPIURL, "PEOPLE_API_URL")
	str(&c.PeopleAPIKey, "PEOPLE_API_KEY")
	errs = append(errs, float(&c.PeopleRPS, "PEOPLE_RPS"))
	str(&c.BrandAPIURL, "BRAND_API_URL")
	str(&c.BrandAPIKey, "BRAND_API_KEY")
	str(&c.DeliveryAPIURL, "DELIVERY_API_URL")
	str(&c.DeliveryAPIKey, "DELIVERY_API_KEY")
	str(&c.RunsAPIURL, "RUNS_API_URL")
	str(&c.RunsAPIKey, "RUNS_API_KEY")
	str(&c.GeminiAPIKey, "GEMINI_API_KEY")
	str(&c.GeminiModel, "GEMINI_MODEL")
	str(&c.GeminiBaseURL, "GEMINI_BASE_URL")

	str(&c.ScopeMode, "SCOPE_MODE")
	errs = append(errs,
		integer(&c.PullMaxIterations, "PULL_MAX_ITERATIONS"),
		integer(&c.PullMaxBackfillPages, "PULL_MAX_BACKFILL_PAGES"),
		integer(&c.SearchPerPage, "SEARCH_PER_PAGE"),
		duration(&c.IdempotencyTTL, "IDEMPOTENCY_TTL"),
		float(&c.IdempotencyPruneRate, "IDEMPOTENCY_PRUNE_RATE"),
		duration(&c.TranslationCacheTTL, "TRANSLATION_CACHE_TTL"),
		integer(&c.TranslationMaxAttempts, "TRANSLATION_MAX_ATTEMPTS"),
		float(&c.RateLimitRPS, "RATE_LIMIT_RPS"),
		integer(&c.RateLimitBurst, "RATE_LIMIT_BURST"),
	)

	if v := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); v != "" {
		c.CORSOrigins = splitList(v)
	}

	return errors.Join(errs...)
}

func (c *Config) applyOverlay(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s file: %w", OverlayEnv, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse %s YAML: %w", OverlayEnv, err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.ScopeMode {
	case string(entity.ScopeByNamespace), string(entity.ScopeByBrand):
	default:
		errs = append(errs, fmt.Errorf("SCOPE_MODE must be namespace or brand, got %q", c.ScopeMode))
	}
	if c.PullMaxIterations <= 0 {
		errs = append(errs, errors.New("PULL_MAX_ITERATIONS must be positive"))
	}
	if c.PullMaxBackfillPages <= 0 {
		errs = append(errs, errors.New("PULL_MAX_BACKFILL_PAGES must be positive"))
	}
	if c.SearchPerPage < 1 || c.SearchPerPage > 100 {
		errs = append(errs, errors.New("SEARCH_PER_PAGE must be between 1 and 100"))
	}
	if c.IdempotencyPruneRate < 0 || c.IdempotencyPruneRate > 1 {
		errs = append(errs, errors.New("IDEMPOTENCY_PRUNE_RATE must be between 0 and 1"))
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("IDEMPOTENCY_TTL must be positive"))
	}
	if c.TranslationMaxAttempts <= 0 {
		errs = append(errs, errors.New("TRANSLATION_MAX_ATTEMPTS must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) Scope() entity.ScopeMode {
	return entity.ParseScopeMode(c.ScopeMode)
}

// MemoryMode is true when no database is configured; every store then
// lives in process.
func (c *Config) MemoryMode() bool {
	return strings.TrimSpace(c.DatabaseURL) == ""
}

func (c *Config) TranslationEnabled() bool {
	return c.GeminiAPIKey != "" && c.GeminiModel != ""
}

func str(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func integer(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func float(dst *float64, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func duration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
