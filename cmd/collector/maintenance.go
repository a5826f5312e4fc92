package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Reset derived job data",
}

var clearSummariesCmd = &cobra.Command{
	Use:   "clear-summaries",
	Short: "Drop job summaries so they are generated again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return resetJobs(cmd, "summaries", func(ctx context.Context, a *app) (int64, error) {
			return a.jobs.ClearSummaries(ctx)
		})
	},
}

var clearEmbeddingsCmd = &cobra.Command{
	Use:   "clear-embeddings",
	Short: "Delete job embeddings so they are computed again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return resetJobs(cmd, "embeddings", func(ctx context.Context, a *app) (int64, error) {
			return a.jobs.ClearEmbeddings(ctx)
		})
	},
}

func resetJobs(cmd *cobra.Command, what string, fn func(context.Context, *app) (int64, error)) error {
	return withApp(cmd.Context(), func(a *app) error {
		n, err := fn(cmd.Context(), a)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s cleared on %d jobs\n", what, n)
		return nil
	})
}

func init() {
	maintenanceCmd.AddCommand(clearSummariesCmd, clearEmbeddingsCmd)
	rootCmd.AddCommand(maintenanceCmd)
}
