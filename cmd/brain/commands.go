package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iammorganparry/clive/apps/brain/internal/config"
	"github.com/iammorganparry/clive/apps/brain/internal/ingest"
	"github.com/iammorganparry/clive/apps/brain/internal/mcp"
	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newThinkCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "think <question>",
		Short: "Answer a question from learned knowledge",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.brain.Think(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newLearnCmd(opts *rootOptions) *cobra.Command {
	var (
		confidence float64
		category   string
	)
	cmd := &cobra.Command{
		Use:   "learn <question> <answer>",
		Short: "Teach a question/answer pair",
		Long: `Teach a question/answer pair. Learning a question that is already known
updates its answer and bumps its version.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			req := models.LearnRequest{
				Question: args[0],
				Answer:   args[1],
				Category: category,
				Source:   models.SourceManual,
			}
			if cmd.Flags().Changed("confidence") {
				req.Confidence = &confidence
			}
			resp, err := a.brain.Learn(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().Float64Var(&confidence, "confidence", float64(models.DefaultConfidence), "confidence in [0,100]")
	cmd.Flags().StringVar(&category, "category", models.DefaultCategory, "category label")
	return cmd
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Mine documents for question/answer pairs",
		Long: `Mine .txt, .md, .csv and .tsv documents for question/answer pairs and learn
them. A file that cannot be read is reported and skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			results := make(map[string]models.IngestResponse, len(args))
			for _, path := range args {
				text, err := readFile(path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", path, err)
					continue
				}
				resp, err := a.brain.IngestDocument(cmd.Context(), text, filepath.Base(path))
				if err != nil {
					return err
				}
				results[path] = resp
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
}

func readFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return ingest.ReadDocument(path, f)
}

func newForgetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <id>",
		Short: "Soft-delete a knowledge entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ok, err := a.brain.Forget(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), models.ForgetResponse{ID: args[0], Forgotten: ok})
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge and cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd.OutOrStdout(), a.brain.Stats())
		},
	}
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the brain as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := mcp.NewServer(a.brain, version, logger)
			return srv.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
