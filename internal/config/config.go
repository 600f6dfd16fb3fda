// Package config loads gateway configuration from a YAML file and the
// environment, following the teacher's viper+godotenv wiring.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the fully resolved gateway configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Store        StoreConfig        `mapstructure:"store"`
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Strategy     StrategyConfig     `mapstructure:"strategy"`
	Prompt       PromptConfig       `mapstructure:"prompt"`
	Audit        AuditConfig        `mapstructure:"audit"`
	Masking      MaskingConfig      `mapstructure:"masking"`
	Guardrail    GuardrailConfig    `mapstructure:"guardrail"`
	KeepAlive    KeepAliveConfig    `mapstructure:"keepalive"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Env             string        `mapstructure:"env"`
	Prefix          string        `mapstructure:"prefix"`
	DefaultLanguage string        `mapstructure:"default_language"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ExternalTimeout time.Duration `mapstructure:"external_timeout"`
}

type StoreConfig struct {
	Backend  string `mapstructure:"backend"` // "memory" or "redis"
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// RegistrationConfig points at the declarative endpoint registration
// manifest: a YAML file read alongside the JSON catalog that can
// disable individual init()-registered endpoints or pin one to a
// non-default selection strategy.
type RegistrationConfig struct {
	ManifestPath string `mapstructure:"manifest_path"`
}

type StrategyConfig struct {
	Name string `mapstructure:"name"`
}

type PromptConfig struct {
	Root string `mapstructure:"root"`
}

type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type MaskingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type GuardrailConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type KeepAliveConfig struct {
	CheckInterval    time.Duration `mapstructure:"check_interval"`
	ProviderInterval time.Duration `mapstructure:"provider_interval"`
	ClearBuffers     bool          `mapstructure:"clear_buffers"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TracingConfig gates the OpenTelemetry tracer provider (internal/telemetry)
// and the otelgin span middleware wired onto every route.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// canonicalPrefix is the env-var prefix this gateway was born under.
// legacyPrefix is the historical Python system's prefix, accepted as a
// fallback alias so an operator migrating an existing deployment's env
// doesn't have to rename every variable at once. The canonical prefix
// wins whenever both are set.
const (
	canonicalPrefix = "LLM_ROUTER_"
	legacyPrefix    = "LLM_PROXY_API_"
)

// LoadConfig reads configuration from config.yaml (if present) and the
// environment, preferring LLM_ROUTER_* over the legacy LLM_PROXY_API_*
// alias when both are set.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./internal/config")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.prefix", "/api")
	v.SetDefault("server.default_language", "en")
	v.SetDefault("server.request_timeout", 300*time.Second)
	v.SetDefault("server.external_timeout", 60*time.Second)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.host", "localhost")
	v.SetDefault("store.port", 6379)
	v.SetDefault("store.db", 0)
	v.SetDefault("catalog.path", "resources/configs/models-config.json")
	v.SetDefault("registration.manifest_path", "resources/configs/registrations.yaml")
	v.SetDefault("strategy.name", "balanced")
	v.SetDefault("prompt.root", "resources/prompts")
	v.SetDefault("audit.enabled", false)
	v.SetDefault("masking.enabled", false)
	v.SetDefault("guardrail.enabled", false)
	v.SetDefault("keepalive.check_interval", 1*time.Second)
	v.SetDefault("keepalive.provider_interval", 30*time.Second)
	v.SetDefault("keepalive.clear_buffers", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.rps", 10.0)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "llm-router")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyAliases(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &cfg, nil
}

// bindLegacyAliases makes every canonical LLM_ROUTER_<KEY> mapstructure
// key also resolvable from LLM_PROXY_API_<KEY> when the canonical
// variable itself is unset, by binding both env names to the same
// viper key and letting BindEnv's precedence (first bound name wins)
// do the rest.
func bindLegacyAliases(v *viper.Viper) {
	keys := []string{
		"SERVER_PORT", "SERVER_ENV", "SERVER_PREFIX", "SERVER_DEFAULT_LANGUAGE",
		"SERVER_REQUEST_TIMEOUT", "SERVER_EXTERNAL_TIMEOUT",
		"STORE_BACKEND", "STORE_HOST", "STORE_PORT", "STORE_DB", "STORE_PASSWORD",
		"CATALOG_PATH", "REGISTRATION_MANIFEST_PATH", "STRATEGY_NAME", "PROMPT_ROOT",
		"AUDIT_ENABLED", "AUDIT_DSN",
		"MASKING_ENABLED", "GUARDRAIL_ENABLED",
		"KEEPALIVE_CHECK_INTERVAL", "KEEPALIVE_PROVIDER_INTERVAL", "KEEPALIVE_CLEAR_BUFFERS",
		"METRICS_ENABLED",
		"RATELIMIT_ENABLED", "RATELIMIT_RPS", "RATELIMIT_BURST",
		"TRACING_ENABLED", "TRACING_SERVICE_NAME",
	}
	for _, key := range keys {
		mapstructureKey := strings.ToLower(strings.Replace(key, "_", ".", 1))
		_ = v.BindEnv(mapstructureKey, canonicalPrefix+key, legacyPrefix+key)
	}
}
