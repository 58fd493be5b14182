package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/sitegen/internal/export"
	"github.com/dusk-indust/sitegen/internal/mcptools"
	"github.com/dusk-indust/sitegen/internal/sitegraph"
)

func newMCPCmd(flags *rootFlags) *cobra.Command {
	var exportDir string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run as an MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			sessions := a.sessions()
			if err := sessions.StartEviction(ctx, a.cfg.Sessions.EvictSchedule); err != nil {
				return err
			}
			index, err := sitegraph.Open(ctx, a.cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open site index: %w", err)
			}
			defer index.Close()

			opts := []mcptools.ServiceOption{
				mcptools.WithIndex(index),
				mcptools.WithLogger(a.logger),
			}
			if exportDir != "" {
				opts = append(opts, mcptools.WithExporter(export.NewDirWriter(exportDir)))
			}
			svc := mcptools.NewSiteService(a.pipeline, sessions, opts...)
			return mcptools.RunStdio(ctx, mcptools.NewMCPServer(svc))
		},
	}
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "write every finished site under this directory")
	return cmd
}
