package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/newsrank/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err //nolint:wrapcheck // terminal write
		},
	}
}
