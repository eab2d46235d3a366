package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/assistant-chat/internal/telemetry"
)

const (
	// StoreDriverPostgres persists everything in Postgres
	StoreDriverPostgres = "postgres"
	// StoreDriverMemory keeps everything in process memory (development only)
	StoreDriverMemory = "memory"
)

// Config holds application configuration
type Config struct {
	StoreDriver       string
	DatabaseURL       string
	ServerPort        string
	FrontendURL       string
	EnableHSTS        bool
	OpenAIKey         string
	AIProvider        string
	AIModel           string
	AIBaseURL         string
	RedisURL          string
	RabbitMQURL       string
	RabbitMQPrefetch  int
	EnrichmentWorkers int
	EnrichmentTimeout time.Duration
	AuthJWKSURL       string
	AuthIssuer        string
	AuthAudience      string
	AuthDevUser       string
	PhrasesFile       string
	WorkerDebugMode   bool
	ServerDebugMode   bool
	OTELEnabled       bool
	OTELEndpoint      string
	OTELInsecure      bool
	OTELSampleRatio   float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return loadFrom(os.Getenv)
}

func loadFrom(lookup func(string) string) (*Config, error) {
	e := env(lookup)
	cfg := &Config{
		StoreDriver:       strings.ToLower(e.get("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:       e.get("DATABASE_URL", ""),
		ServerPort:        e.get("SERVER_PORT", "8080"),
		FrontendURL:       e.get("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:        e.getBool("ENABLE_HSTS", false),
		OpenAIKey:         e.get("OPENAI_API_KEY", ""),
		AIProvider:        e.get("AI_PROVIDER", "openai"),
		AIModel:           e.get("AI_MODEL", ""),
		AIBaseURL:         e.get("AI_BASE_URL", ""),
		RedisURL:          e.get("REDIS_URL", ""),
		RabbitMQURL:       e.get("RABBITMQ_URL", ""),
		RabbitMQPrefetch:  e.getInt("RABBITMQ_PREFETCH", 1),
		EnrichmentWorkers: e.getInt("ENRICHMENT_WORKERS", 4),
		EnrichmentTimeout: time.Duration(e.getInt("ENRICHMENT_TIMEOUT", 60)) * time.Second,
		AuthJWKSURL:       e.get("AUTH_JWKS_URL", ""),
		AuthIssuer:        e.get("AUTH_ISSUER", ""),
		AuthAudience:      e.get("AUTH_AUDIENCE", ""),
		AuthDevUser:       e.get("AUTH_DEV_USER", ""),
		PhrasesFile:       e.get("CHAT_PHRASES_FILE", ""),
		WorkerDebugMode:   e.getBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:   e.getBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:       e.getBool("OTEL_ENABLED", false),
		OTELEndpoint:      e.get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:      e.getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELSampleRatio:   e.getFloat("OTEL_TRACES_SAMPLER_ARG", 1),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want %s or %s)", cfg.StoreDriver, StoreDriverPostgres, StoreDriverMemory)
	}

	if cfg.AuthJWKSURL == "" && cfg.AuthDevUser == "" {
		return nil, fmt.Errorf("AUTH_JWKS_URL is required (or AUTH_DEV_USER for local development)")
	}

	if cfg.EnrichmentWorkers < 1 {
		cfg.EnrichmentWorkers = 1
	}
	if cfg.RabbitMQPrefetch < 1 {
		cfg.RabbitMQPrefetch = 1
	}

	return cfg, nil
}

// UsesQueue reports whether profile analysis runs through RabbitMQ
func (c *Config) UsesQueue() bool {
	return c.RabbitMQURL != ""
}

type env func(string) string

func (e env) get(key, defaultValue string) string {
	if value := e(key); value != "" {
		return value
	}
	return defaultValue
}

func (e env) getBool(key string, defaultValue bool) bool {
	if value := e(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (e env) getFloat(key string, defaultValue float64) float64 {
	if value := e(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// Tracing returns the exporter settings for the named service
func (c *Config) Tracing(service string) telemetry.Options {
	return telemetry.Options{
		Enabled:     c.OTELEnabled,
		Service:     service,
		Endpoint:    c.OTELEndpoint,
		Insecure:    c.OTELInsecure,
		SampleRatio: c.OTELSampleRatio,
	}
}

func (e env) getInt(key string, defaultValue int) int {
	if value := e(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
