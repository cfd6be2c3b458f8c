package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/iammorganparry/clive/apps/brain/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "brain",
		Short: "Knowledge brain - answers questions from learned knowledge",
		Long: `brain answers natural-language questions from a store of learned
question/answer pairs. Lookups cascade through an answer cache, an optional
vector index and a weighted lexical match.

Settings come from brain.yaml (or --config) and BRAIN_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newThinkCmd(opts),
		newLearnCmd(opts),
		newIngestCmd(opts),
		newForgetCmd(opts),
		newStatsCmd(opts),
		newMCPCmd(opts),
	)
	return cmd
}

// openApp loads config and wires the service for a one-shot command. Logs
// go to stderr so command output stays machine readable.
func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if level == "info" {
		level = "warn"
	}
	return newApp(ctx, cfg, newLogger(os.Stderr, level))
}
