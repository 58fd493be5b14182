package provider

import (
	"fmt"

	"github.com/dusk-indust/sitegen/internal/a2a"
	"github.com/dusk-indust/sitegen/internal/config"
)

// NewClient creates a client for the given provider kind.
// Supported kinds: "openai", "anthropic", "image", "agent", and "gemini"
// (OpenAI-compatible endpoint).
func NewClient(kind string, cfg ClientConfig) (Client, error) {
	switch kind {
	case config.KindOpenAI:
		return NewOpenAIClient(cfg), nil
	case "gemini":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
		}
		return NewOpenAIClient(cfg), nil
	case config.KindAnthropic:
		return NewAnthropicClient(cfg), nil
	case config.KindImage:
		return NewImageClient(cfg), nil
	case config.KindAgent:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("agent provider needs an endpoint")
		}
		return NewAgentClient(a2a.NewClient(cfg.BaseURL, cfg.HTTPClient)), nil
	default:
		return nil, fmt.Errorf("unknown provider kind: %q", kind)
	}
}

// NewAdapterFromConfig builds an adapter with one registration per
// configured provider.
func NewAdapterFromConfig(providers []config.ProviderConfig, opts ...AdapterOption) (*Adapter, error) {
	a := NewAdapter(opts...)
	for _, p := range providers {
		c, err := NewClient(p.Kind, ClientConfig{
			APIKey:  p.APIKey(),
			BaseURL: p.BaseURL,
			Model:   p.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.ID, err)
		}
		if err := a.Register(p.ID, c, p.Timeout); err != nil {
			return nil, err
		}
	}
	return a, nil
}
