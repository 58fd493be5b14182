package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/sitegen/internal/export"
	"github.com/dusk-indust/sitegen/internal/server"
	"github.com/dusk-indust/sitegen/internal/sitegraph"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var (
		addr      string
		exportDir string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generation API over HTTP",
		Long: `Serve POST /api/generate (progress streamed as Server-Sent Events),
session lookups, the site index, /healthz and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			sessions := a.sessions()
			if err := sessions.StartEviction(ctx, a.cfg.Sessions.EvictSchedule); err != nil {
				return err
			}

			index, err := sitegraph.Open(ctx, a.cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open site index: %w", err)
			}
			defer index.Close()

			var exporter *export.Writer
			if exportDir != "" {
				exporter = export.NewDirWriter(exportDir)
			}

			srv := server.New(server.Options{
				Generator:       a.pipeline,
				Sessions:        sessions,
				Index:           index,
				Exporter:        exporter,
				Metrics:         a.metrics,
				Logger:          a.logger,
				Mode:            a.pipeline.Mode().String(),
				ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "write every finished site under this directory")
	return cmd
}
