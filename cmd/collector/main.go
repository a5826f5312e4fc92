// collector-service
//
// Collects job postings from the JSearch API for stored search profiles,
// filters them by distance from the profile location and persists them in
// PostgreSQL. Runs as a long-lived service (serve) or as one-shot commands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:           "collector",
	Short:         "Job posting collector",
	Long:          "collector fetches job postings from JSearch for saved profiles, keeps the ones within the profile's distance radius and stores them in PostgreSQL.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
