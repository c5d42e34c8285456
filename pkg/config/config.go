// Package config loads reasongraph configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// maxConfigSize bounds the config file read.
const maxConfigSize = 1 << 20

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Model         ModelConfig         `yaml:"model"`
	Reasoning     ReasoningConfig     `yaml:"reasoning"`
	Store         StoreConfig         `yaml:"store"`
	Index         IndexConfig         `yaml:"index"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr                 string        `yaml:"addr"`
	CORSOrigins          []string      `yaml:"cors_origins"`
	RateLimitRPS         float64       `yaml:"rate_limit_rps"`
	RateLimitBurst       int           `yaml:"rate_limit_burst"`
	GlobalRateLimitRPS   float64       `yaml:"global_rate_limit_rps"`
	GlobalRateLimitBurst int           `yaml:"global_rate_limit_burst"`
	StreamTimeout        time.Duration `yaml:"stream_timeout"`
	// AdminAddr serves health and metrics on a separate listener when set.
	AdminAddr            string        `yaml:"admin_addr"`
}

// ModelConfig selects the chat and embedding backend.
type ModelConfig struct {
	Provider     string   `yaml:"provider"` // ollama, openai, mock
	BaseURL      string   `yaml:"base_url"`
	ChatModel    string   `yaml:"chat_model"`
	EmbedModel   string   `yaml:"embed_model"`
	APIKey       string   `yaml:"api_key"`
	MaxTokens    int      `yaml:"max_tokens"`
	FinalTokens  int      `yaml:"final_max_tokens"`
	Temperature  float64  `yaml:"temperature"`
	AllowedHosts []string `yaml:"allowed_hosts"`
}

// ReasoningConfig bounds a reasoning session.
type ReasoningConfig struct {
	MaxSteps        int    `yaml:"max_steps"`
	MinSteps        int    `yaml:"min_steps"`
	MaxContentChars int    `yaml:"max_content_chars"`
	TopK            int    `yaml:"top_k"`
	Consistency     string `yaml:"consistency"` // stub, model
}

// StoreConfig selects the embedding store.
type StoreConfig struct {
	Driver        string `yaml:"driver"` // sqlite, memory
	Path          string `yaml:"path"`
	ResetPerQuery bool   `yaml:"reset_per_query"`
}

// IndexConfig configures the similar-question index.
type IndexConfig struct {
	Dimensions  int `yaml:"dimensions"`
	SimilarTopK int `yaml:"similar_top_k"`
}

// CacheConfig enables the Redis embedding cache when Addr is set.
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// ObservabilityConfig holds logging, tracing and metrics settings.
type ObservabilityConfig struct {
	LogLevel       string  `yaml:"log_level"`
	LogFormat      string  `yaml:"log_format"` // json, console
	ServiceName    string  `yaml:"service_name"`
	TraceExporter  string  `yaml:"trace_exporter"` // none, stdout, otlp
	OTLPEndpoint   string  `yaml:"otlp_endpoint"`
	SampleRate     float64 `yaml:"sample_rate"`
	MetricsEnabled bool    `yaml:"metrics_enabled"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Observability.MetricsEnabled = true
	applyDefaults(cfg)
	return cfg
}

// LoadConfig loads configuration from a YAML file. A missing file yields the
// defaults. Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{Observability: ObservabilityConfig{MetricsEnabled: true}}

	if path != "" {
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		case info.Size() > maxConfigSize:
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg, os.LookupEnv)
	return cfg, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.RateLimitRPS == 0 {
		cfg.Server.RateLimitRPS = 2
	}
	if cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.GlobalRateLimitRPS == 0 {
		cfg.Server.GlobalRateLimitRPS = 20
	}
	if cfg.Server.GlobalRateLimitBurst == 0 {
		cfg.Server.GlobalRateLimitBurst = 40
	}
	if cfg.Server.StreamTimeout == 0 {
		cfg.Server.StreamTimeout = 10 * time.Minute
	}

	if cfg.Model.Provider == "" {
		cfg.Model.Provider = "ollama"
	}
	if cfg.Model.ChatModel == "" {
		cfg.Model.ChatModel = "llama3.1"
	}
	if cfg.Model.EmbedModel == "" {
		cfg.Model.EmbedModel = cfg.Model.ChatModel
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 300
	}
	if cfg.Model.FinalTokens == 0 {
		cfg.Model.FinalTokens = 200
	}
	if cfg.Model.Temperature == 0 {
		cfg.Model.Temperature = 0.2
	}

	if cfg.Reasoning.MaxSteps == 0 {
		cfg.Reasoning.MaxSteps = 20
	}
	if cfg.Reasoning.MinSteps == 0 {
		cfg.Reasoning.MinSteps = 5
	}
	if cfg.Reasoning.MaxContentChars == 0 {
		cfg.Reasoning.MaxContentChars = 700
	}
	if cfg.Reasoning.TopK == 0 {
		cfg.Reasoning.TopK = 2
	}
	if cfg.Reasoning.Consistency == "" {
		cfg.Reasoning.Consistency = "stub"
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "embeddings.db"
	}

	if cfg.Index.Dimensions == 0 {
		cfg.Index.Dimensions = 4096
	}
	if cfg.Index.SimilarTopK == 0 {
		cfg.Index.SimilarTopK = 5
	}

	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = "reasongraph:embed:"
	}

	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "reasongraph"
	}
	if cfg.Observability.TraceExporter == "" {
		cfg.Observability.TraceExporter = "none"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("REASONGRAPH_ADDR", &cfg.Server.Addr)
	str("REASONGRAPH_ADMIN_ADDR", &cfg.Server.AdminAddr)
	str("REASONGRAPH_PROVIDER", &cfg.Model.Provider)
	str("REASONGRAPH_CHAT_MODEL", &cfg.Model.ChatModel)
	str("REASONGRAPH_EMBED_MODEL", &cfg.Model.EmbedModel)
	str("REASONGRAPH_STORE_DRIVER", &cfg.Store.Driver)
	str("REASONGRAPH_STORE_PATH", &cfg.Store.Path)
	str("REASONGRAPH_LOG_LEVEL", &cfg.Observability.LogLevel)
	str("REASONGRAPH_LOG_FORMAT", &cfg.Observability.LogFormat)
	str("REASONGRAPH_TRACE_EXPORTER", &cfg.Observability.TraceExporter)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Observability.OTLPEndpoint)
	str("REDIS_ADDR", &cfg.Cache.Addr)

	if cfg.Model.BaseURL == "" {
		switch cfg.Model.Provider {
		case "ollama":
			str("OLLAMA_HOST", &cfg.Model.BaseURL)
		case "openai":
			str("OPENAI_BASE_URL", &cfg.Model.BaseURL)
		}
	}
	if cfg.Model.APIKey == "" {
		str("OPENAI_API_KEY", &cfg.Model.APIKey)
	}

	if v, ok := lookup("REASONGRAPH_DIMENSIONS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.Dimensions = n
		}
	}
	if v, ok := lookup("REASONGRAPH_RESET_PER_QUERY"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Store.ResetPerQuery = b
		}
	}
	if v, ok := lookup("REASONGRAPH_ALLOWED_HOSTS"); ok && v != "" {
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				cfg.Model.AllowedHosts = append(cfg.Model.AllowedHosts, h)
			}
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch c.Model.Provider {
	case "ollama", "openai", "mock":
	default:
		errs = append(errs, fmt.Errorf("model.provider %q must be one of ollama, openai, mock", c.Model.Provider))
	}
	if c.Model.Provider == "openai" && c.Model.APIKey == "" && c.Model.BaseURL == "" {
		errs = append(errs, errors.New("model.api_key is required for the openai provider"))
	}

	switch c.Store.Driver {
	case "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be sqlite or memory", c.Store.Driver))
	}

	switch c.Reasoning.Consistency {
	case "stub", "model":
	default:
		errs = append(errs, fmt.Errorf("reasoning.consistency %q must be stub or model", c.Reasoning.Consistency))
	}

	for _, f := range []struct {
		name  string
		value int
	}{
		{"reasoning.max_steps", c.Reasoning.MaxSteps},
		{"reasoning.max_content_chars", c.Reasoning.MaxContentChars},
		{"reasoning.top_k", c.Reasoning.TopK},
		{"index.dimensions", c.Index.Dimensions},
		{"index.similar_top_k", c.Index.SimilarTopK},
		{"model.max_tokens", c.Model.MaxTokens},
	} {
		if f.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", f.name, f.value))
		}
	}
	if c.Reasoning.MinSteps < 0 {
		errs = append(errs, fmt.Errorf("reasoning.min_steps must not be negative, got %d", c.Reasoning.MinSteps))
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 ||
		c.Server.GlobalRateLimitRPS < 0 || c.Server.GlobalRateLimitBurst < 0 {
		errs = append(errs, errors.New("server rate limits must not be negative"))
	}

	switch c.Observability.TraceExporter {
	case "none", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("observability.trace_exporter %q must be none, stdout or otlp", c.Observability.TraceExporter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
