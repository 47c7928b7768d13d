package main

import (
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/newsrank/internal/config"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	env        string
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "newsrank",
		Short: "Hybrid keyword and vector news retrieval",
		Long: `newsrank turns structured retrieval plans into OpenSearch or Qdrant
requests, executes them and ranks the results by relevance and recency.

Example usage:
  newsrank serve                       # Start the HTTP API (config/$ENV.yaml)
  newsrank plan --file plan.json       # Print the backend requests for a plan
  newsrank version                     # Print build metadata`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.env, "env", config.GetEnv(), "environment name, selects config/<env>.yaml")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "explicit config file (overrides --env)")

	root.AddCommand(newServeCmd(flags), newPlanCmd(flags), newVersionCmd())
	return root
}

func (f *rootFlags) load() (config.Config, error) {
	if f.configPath != "" {
		return config.LoadFile(f.configPath) //nolint:wrapcheck // already descriptive
	}
	return config.Load(f.env) //nolint:wrapcheck // already descriptive
}
