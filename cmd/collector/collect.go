package main

import (
	"github.com/spf13/cobra"
)

var collectCmd = &cobra.Command{
	Use:   "collect <profile>",
	Short: "Run one collection for a profile and print the result",
	Long: `Page through JSearch with the filters of the given profile, keep the postings
within its distance radius and store them. The kept job ids and run counters
are printed as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			res, err := a.runner.RunProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
}
