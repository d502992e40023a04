package main

import (
	"fmt"

	"gcloud-docgen/internal/docgen"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newInspectCmd(e *env, root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <document.docx>",
		Short: "Print the payload a generated document was built from, as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			data, err := afero.ReadFile(e.fs, args[0])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			payload, err := docgen.Parse(data, docgen.OptionsFromConfig(cfg.Docgen))
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			enc := yaml.NewEncoder(e.out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(payload)
		},
	}
}
