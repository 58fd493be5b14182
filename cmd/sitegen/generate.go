package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/sitegen/internal/export"
	"github.com/dusk-indust/sitegen/internal/orchestrator"
	"github.com/dusk-indust/sitegen/internal/site"
	"github.com/dusk-indust/sitegen/internal/sitegraph"
)

func newGenerateCmd(flags *rootFlags) *cobra.Command {
	var (
		businessFile string
		outDir       string
		quiet        bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one site from a business description file",
		Example: `  sitegen generate --business acme.yaml --out ./sites
  sitegen generate -b acme.yaml -q`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := readBusiness(businessFile)
			if err != nil {
				return err
			}
			a, err := newApp(flags)
			if err != nil {
				return err
			}

			var observers []orchestrator.Observer
			if !quiet {
				observers = append(observers, printProgress(cmd.OutOrStdout()))
			}
			artifact, genErr := a.pipeline.Generate(cmd.Context(), cfg, observers...)

			var failure *orchestrator.PipelineFailure
			if genErr != nil && errors.As(genErr, &failure) && failure.Partial != nil {
				artifact = failure.Partial
			}
			if artifact == nil {
				return genErr
			}

			m, err := writeSite(cmd.Context(), export.NewDirWriter(outDir), artifact)
			if err != nil {
				return errors.Join(genErr, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nwrote %d files to %s/%s (degraded=%t partial=%t)\n",
				len(m.Files), outDir, artifact.Slug, artifact.Degraded, artifact.Partial)
			return genErr
		},
	}
	cmd.Flags().StringVarP(&businessFile, "business", "b", "", "business description YAML file (required)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "sites", "output directory")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	_ = cmd.MarkFlagRequired("business")
	return cmd
}

// readBusiness decodes a business description. Unknown keys are rejected.
func readBusiness(path string) (site.BusinessConfiguration, error) {
	var cfg site.BusinessConfiguration
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("business file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("business file %s: %w", path, err)
	}
	return cfg, nil
}

func printProgress(w io.Writer) orchestrator.Observer {
	return func(ev orchestrator.Event) {
		fmt.Fprintln(w, orchestrator.FormatProgress(ev))
	}
}

// writeSite exports the artifact and its structure diagram.
func writeSite(ctx context.Context, w *export.Writer, a *site.SiteArtifact) (*export.Manifest, error) {
	m, err := w.Write(a)
	if err != nil {
		return nil, err
	}

	index := sitegraph.NewMemStore()
	if err := sitegraph.SaveArtifact(ctx, index, a); err != nil {
		return nil, err
	}
	diagram, err := export.GenerateMermaid(ctx, index, a.Slug)
	if err != nil {
		return nil, err
	}
	if err := w.WriteFile(a.Slug, export.DiagramName, []byte(diagram)); err != nil {
		return nil, err
	}
	m.Files = append(m.Files, export.DiagramName)
	return m, nil
}
