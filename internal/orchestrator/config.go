package orchestrator

import (
	"log/slog"
	"time"

	"github.com/dusk-indust/sitegen/internal/config"
	"github.com/dusk-indust/sitegen/internal/metrics"
	"github.com/dusk-indust/sitegen/internal/provider"
	"github.com/dusk-indust/sitegen/internal/site"
)

// Options configures a Pipeline.
type Options struct {
	// Chains maps each stage to its provider priority list. Stages without
	// a chain run their deterministic fallback.
	Chains map[site.StageName]provider.Chain

	// ImageConcurrency bounds in-flight image generations.
	ImageConcurrency int

	// Deadline is the aggregate run deadline, checked between waves.
	// Zero disables it.
	Deadline time.Duration

	MaxTokens   int
	Temperature float64

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Chain returns the provider chain for stage.
func (o Options) Chain(stage site.StageName) provider.Chain {
	return o.Chains[stage]
}

// OptionsFromConfig maps the application configuration onto pipeline
// options.
func OptionsFromConfig(c *config.Config, logger *slog.Logger, m *metrics.Metrics) Options {
	chains := make(map[site.StageName]provider.Chain)
	for _, stage := range DefaultGraph().Stages() {
		if ids := c.Chain(stage); len(ids) > 0 {
			chains[stage] = provider.Chain(ids)
		}
	}
	return Options{
		Chains:           chains,
		ImageConcurrency: c.Pipeline.ImageConcurrency,
		Deadline:         c.Pipeline.Deadline,
		MaxTokens:        c.Pipeline.MaxTokens,
		Temperature:      c.Pipeline.Temperature,
		Logger:           logger,
		Metrics:          m,
	}
}
