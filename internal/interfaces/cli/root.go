// Package cli defines the carsigef command tree: serving the API, inspecting
// the dataset and importing registry totals.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zetta-ds/carsigef/internal/config"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the carsigef root command with all subcommands.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "carsigef",
		Short:         "CAR-SIGEF similarity analytics backend",
		Long:          "Backend for analyzing geometric similarity between CAR property registrations and SIGEF certified parcels.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"path to config file (default: ./configs/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"override the configured log level")

	cmd.AddCommand(
		newServeCommand(opts),
		newDatasetCommand(opts),
		newTotalsImportCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// bootstrap loads configuration and builds the process logger.
func (o *rootOptions) bootstrap() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	logger, err := logging.NewLogger(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "carsigef %s (commit %s, built %s)\n",
				Version, GitCommit, BuildDate)
		},
	}
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
