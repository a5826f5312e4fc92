package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"jobmate/collector-service/internal/geo"
)

var (
	distanceFrom string
	distanceTo   string
	distanceUnit string
)

var distanceCmd = &cobra.Command{
	Use:   "distance",
	Short: "Print the ellipsoidal distance between two coordinates",
	Example: `  collector distance --from 40.7128,-74.0060 --to 34.0522,-118.2437
  collector distance --from 40.7128,-74.0060 --to 34.0522,-118.2437 --unit kilometers`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		from, err := parsePoint(distanceFrom)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		to, err := parsePoint(distanceTo)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		unit, err := geo.ParseUnit(distanceUnit)
		if err != nil {
			return err
		}

		d, err := geo.Distance(from, to, unit)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.3f %s\n", d, unit)
		return nil
	},
}

func init() {
	distanceCmd.Flags().StringVar(&distanceFrom, "from", "", "First point as lat,lon (required)")
	distanceCmd.Flags().StringVar(&distanceTo, "to", "", "Second point as lat,lon (required)")
	distanceCmd.Flags().StringVar(&distanceUnit, "unit", string(geo.Miles), "meters, kilometers, feet or miles")
	_ = distanceCmd.MarkFlagRequired("from")
	_ = distanceCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(distanceCmd)
}

// parsePoint reads "lat,lon".
func parsePoint(s string) (geo.Point, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, fmt.Errorf("expected lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("longitude: %w", err)
	}
	return geo.Point{Lat: lat, Lon: lon}, nil
}
