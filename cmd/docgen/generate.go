package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"gcloud-docgen/internal/catalog"
	"gcloud-docgen/internal/common/config"
	httpclient "gcloud-docgen/internal/common/http"
	"gcloud-docgen/internal/docgen"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	template string
	outDir   string
	service  string
	version  string
	lot      string
	draft    bool
}

func newGenerateCmd(e *env, root *rootOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate <payload.json>",
		Short: "Render a service description from a JSON payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			return runGenerate(cmd.Context(), e, cfg, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.template, "template", "", "Template path, overriding the configured resolution")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "Output directory")
	cmd.Flags().StringVar(&opts.service, "service", "", "Service name; names the file like the document store does")
	cmd.Flags().StringVar(&opts.version, "framework-version", "", "G-Cloud framework version (default from config)")
	cmd.Flags().StringVar(&opts.lot, "lot", "", "Lot number (default from config)")
	cmd.Flags().BoolVar(&opts.draft, "draft", false, "Name the output as a draft")
	return cmd
}

func runGenerate(ctx context.Context, e *env, cfg *config.Config, opts *generateOptions, payloadPath string) error {
	raw, err := afero.ReadFile(e.fs, payloadPath)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	var payload docgen.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode payload %s: %w", payloadPath, err)
	}

	var placement *catalog.Placement
	if opts.service != "" {
		placement = &catalog.Placement{
			FrameworkVersion: firstNonEmpty(opts.version, cfg.Docgen.FrameworkVersion),
			Lot:              firstNonEmpty(opts.lot, cfg.Docgen.Lot),
			ServiceName:      opts.service,
			Draft:            opts.draft,
		}
		if err := placement.Validate(); err != nil {
			return err
		}
	}

	generator := docgen.NewGenerator(
		docgen.NewLoader(e.fs, cfg.Template, e.log),
		httpclient.NewClient(config.GetDuration(cfg.Docgen.ImageTimeout), cfg.Docgen.MaxImageBytes),
		docgen.OptionsFromConfig(cfg.Docgen),
		e.log,
	)
	result, err := generator.Generate(ctx, docgen.Request{
		Payload:      payload,
		TemplatePath: opts.template,
		Placement:    placement,
	})
	if err != nil {
		return err
	}

	if err := e.fs.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	target := filepath.Join(opts.outDir, result.Filename)
	if err := afero.WriteFile(e.fs, target, result.Bytes, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	fmt.Fprintf(e.out, "%s (%d bytes, template %s)\n", target, len(result.Bytes), result.TemplatePath)
	for _, w := range result.Warnings {
		fmt.Fprintf(e.out, "warning: %s\n", w.Error())
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
