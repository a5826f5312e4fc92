package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobmate/collector-service/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			applied, err := db.EnsureSchema(cmd.Context(), a.pool)
			if err != nil {
				return err
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
