package main

import (
	"io"
	"os"

	"gcloud-docgen/internal/common/config"
	"gcloud-docgen/internal/common/logger"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// env is what the commands touch outside the process.
type env struct {
	fs  afero.Fs
	out io.Writer
	// log is built from the persistent flags before a command runs.
	log logger.Logger
}

func newEnv() *env {
	return &env{fs: afero.NewOsFs(), out: os.Stdout}
}

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRoot(e *env) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "docgen",
		Short:         "Generate and inspect G-Cloud service description documents",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if e.log == nil {
				e.log = logger.NewStructured(opts.logLevel, "console")
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (defaults apply when empty)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	cmd.AddCommand(newGenerateCmd(e, opts))
	cmd.AddCommand(newInspectCmd(e, opts))
	cmd.AddCommand(newSearchCmd(e, opts))
	return cmd
}

// loadConfig reads the config file when one is given. The CLI does not
// need the service connections, so the defaults are enough otherwise.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(o.configPath)
}
