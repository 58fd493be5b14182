package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/sitegen/internal/config"
	"github.com/dusk-indust/sitegen/internal/logging"
	"github.com/dusk-indust/sitegen/internal/metrics"
	"github.com/dusk-indust/sitegen/internal/orchestrator"
	"github.com/dusk-indust/sitegen/internal/provider"
	"github.com/dusk-indust/sitegen/internal/session"
)

type rootFlags struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "sitegen",
		Short: "Generate small-business websites from a business description",
		Long: `sitegen turns a business description into a complete website: design
strategy, section plan, style system, layout, copy, images, SEO metadata
and page code. Stages without a configured provider use deterministic
fallbacks, so generation always completes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "config file (default is ./sitegen.yaml)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(flags),
		newGenerateCmd(flags),
		newMCPCmd(flags),
		newVersionCmd(),
	)
	return root
}

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	pipeline *orchestrator.Pipeline
}

func newApp(flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	if flags.verbose {
		cfg.Logging.Level = "debug"
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	m := metrics.New()

	var invoker *provider.Adapter
	if len(cfg.Providers) > 0 {
		invoker, err = provider.NewAdapterFromConfig(cfg.Providers,
			provider.WithLogger(logger),
			provider.WithMetrics(m),
		)
		if err != nil {
			return nil, fmt.Errorf("providers: %w", err)
		}
	}

	opts := orchestrator.OptionsFromConfig(cfg, logger, m)
	// a nil *Adapter must not become a non-nil Invoker
	var p *orchestrator.Pipeline
	if invoker != nil {
		p = orchestrator.NewPipeline(invoker, opts)
	} else {
		p = orchestrator.NewPipeline(nil, opts)
	}
	logger.Debug("pipeline ready", "mode", p.Mode(), "providers", len(cfg.Providers))

	return &app{cfg: cfg, logger: logger, metrics: m, pipeline: p}, nil
}

func (a *app) sessions() *session.Registry {
	return session.NewRegistry(
		session.WithTTL(a.cfg.Sessions.TTL),
		session.WithMaxSessions(a.cfg.Sessions.MaxSessions),
		session.WithLogger(a.logger),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sitegen version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sitegen %s\n", version)
		},
	}
}
