// Package config loads the sitegen application configuration with viper.
//
// Values come from (lowest to highest precedence) built-in defaults, a YAML
// file, and SITEGEN_* environment variables, e.g.
// SITEGEN_SERVER_ADDR=:9090 or SITEGEN_PIPELINE_IMAGE_CONCURRENCY=2.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dusk-indust/sitegen/internal/logging"
	"github.com/dusk-indust/sitegen/internal/site"
)

// Provider kinds understood by provider.NewClient.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindImage     = "image"
	KindAgent     = "agent"
)

// DefaultChain is the chains key used by text stages with no chain of their own.
const DefaultChain = "default"

// Config is the root application configuration.
type Config struct {
	Logging   logging.Config      `mapstructure:"logging"`
	Providers []ProviderConfig    `mapstructure:"providers"`
	Chains    map[string][]string `mapstructure:"chains"`
	Pipeline  PipelineConfig      `mapstructure:"pipeline"`
	Sessions  SessionConfig       `mapstructure:"sessions"`
	Server    ServerConfig        `mapstructure:"server"`
	Store     StoreConfig         `mapstructure:"store"`
}

// ProviderConfig registers one provider with the adapter.
type ProviderConfig struct {
	ID        string        `mapstructure:"id"`
	Kind      string        `mapstructure:"kind"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	APIKeyEnv string        `mapstructure:"api_key_env"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// APIKey resolves the key from the environment. Keys are never stored in
// the config file.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// PipelineConfig tunes a generation run.
type PipelineConfig struct {
	// ImageConcurrency bounds in-flight image generations.
	ImageConcurrency int `mapstructure:"image_concurrency"`
	// Deadline is the aggregate run deadline; 0 disables it.
	Deadline time.Duration `mapstructure:"deadline"`
	// MaxTokens and Temperature apply to every text request.
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// SessionConfig bounds the lifetime of run records.
type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	EvictSchedule string        `mapstructure:"evict_schedule"`
	MaxSessions   int           `mapstructure:"max_sessions"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the artifact index. An empty Path keeps the index in
// memory.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// Chain returns the priority-ordered provider IDs for stage. Text stages
// without an explicit chain use the default chain; image generation has no
// default because text providers cannot serve it.
func (c *Config) Chain(stage site.StageName) []string {
	if ids, ok := c.Chains[string(stage)]; ok {
		return ids
	}
	if stage == site.StageImageGenerator {
		return nil
	}
	return c.Chains[DefaultChain]
}

// Default returns a Config with no providers: every stage runs its
// deterministic fallback.
func Default() *Config {
	return &Config{
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Chains: map[string][]string{},
		Pipeline: PipelineConfig{
			ImageConcurrency: 4,
			Deadline:         5 * time.Minute,
			MaxTokens:        2048,
			Temperature:      0.7,
		},
		Sessions: SessionConfig{
			TTL:           time.Hour,
			EvictSchedule: "@every 5m",
			MaxSessions:   100,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// SetDefaults registers default values with v.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.add_source", d.Logging.AddSource)

	v.SetDefault("pipeline.image_concurrency", d.Pipeline.ImageConcurrency)
	v.SetDefault("pipeline.deadline", d.Pipeline.Deadline)
	v.SetDefault("pipeline.max_tokens", d.Pipeline.MaxTokens)
	v.SetDefault("pipeline.temperature", d.Pipeline.Temperature)

	v.SetDefault("sessions.ttl", d.Sessions.TTL)
	v.SetDefault("sessions.evict_schedule", d.Sessions.EvictSchedule)
	v.SetDefault("sessions.max_sessions", d.Sessions.MaxSessions)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("store.path", d.Store.Path)
}

// Load reads the configuration. When path is empty, sitegen.yaml is looked
// up in the working directory and its absence is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("SITEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sitegen")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.Chains == nil {
		cfg.Chains = map[string][]string{}
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].Timeout == 0 {
			cfg.Providers[i].Timeout = defaultTimeout(cfg.Providers[i].Kind)
		}
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", ValidationErrors(errs))
	}
	return cfg, nil
}

func defaultTimeout(kind string) time.Duration {
	if kind == KindImage {
		return 60 * time.Second
	}
	return 30 * time.Second
}
