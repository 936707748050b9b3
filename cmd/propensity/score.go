// cmd/propensity/score.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"propensity-scoring/internal/common/logger"
	"propensity-scoring/internal/propensity/artifacts"
	"propensity-scoring/internal/propensity/pipeline"

	"github.com/spf13/cobra"
)

func newScoreCmd() *cobra.Command {
	var (
		flags   bundleFlags
		input   string
		full    bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one customer profile",
		Long:  "Reads a JSON customer profile from --input or stdin and prints the ranked top-N products as an ordered JSON object.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readInput(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}

			bundlePath, opts, ranker, err := flags.resolve()
			if err != nil {
				return err
			}
			bundle, err := artifacts.LoadBundle(bundlePath, opts...)
			if err != nil {
				return err
			}

			log := logger.NewNoOpLogger()
			if verbose {
				log = logger.NewZapAdapter(logger.New("debug", "console", "stderr"))
			}
			p, err := pipeline.New(bundle, pipeline.WithRanker(ranker), pipeline.WithLogger(log))
			if err != nil {
				return err
			}

			result, err := p.ScoreJSON(cmd.Context(), data)
			if err != nil {
				return err
			}

			var out []byte
			if full {
				out, err = json.MarshalIndent(result, "", "  ")
			} else {
				out, err = json.Marshal(result.Ranked)
			}
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&input, "input", "i", "", "Path to the request JSON (default stdin)")
	cmd.Flags().BoolVar(&full, "full", false, "Print every product score and request metadata")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline stages to stderr")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %s: %w", path, err)
	}
	return data, nil
}
