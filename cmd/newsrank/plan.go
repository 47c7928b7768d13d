package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/newsrank/internal/domain/search/plan"
	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
	searchuc "github.com/kailas-cloud/newsrank/internal/usecase/search"
)

func newPlanCmd(flags *rootFlags) *cobra.Command {
	var (
		file      string
		embedding string
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the backend requests a plan expands to",
		Long: `Normalize a plan and print the backend request descriptors it expands to,
without contacting any backend.

Examples:
  newsrank plan --file plan.json
  echo '{"intent":"latest_by_site","filters":{"site":["a.com"]}}' | newsrank plan --file -
  newsrank plan --file plan.json --embedding '[0.1, 0.2, 0.3]'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			data, err := readPlan(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			pl, err := plan.FromJSON(data)
			if err != nil {
				return err //nolint:wrapcheck // domain error
			}
			var vec []float32
			if embedding != "" {
				if err := json.Unmarshal([]byte(embedding), &vec); err != nil {
					return fmt.Errorf("--embedding must be a JSON array of numbers: %w", err)
				}
			}

			p, err := buildPlanner(cfg)
			if err != nil {
				return err
			}
			svc := searchuc.New(p, nil, nil, result.NewScorer(cfg.Scoring.HalfLifeHours, *cfg.Scoring.RecencyBias))
			out, err := svc.Plan(cmd.Context(), searchuc.Query{Plan: pl, Embedding: vec})
			if err != nil {
				return err //nolint:wrapcheck // domain error
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out) //nolint:wrapcheck // terminal write
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "plan JSON file, - for stdin")
	cmd.Flags().StringVar(&embedding, "embedding", "", "query vector as a JSON array")
	return cmd
}

func readPlan(stdin io.Reader, file string) ([]byte, error) {
	if file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read plan from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(filepath.Clean(file))
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return data, nil
}
