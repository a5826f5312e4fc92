package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobmate/collector-service/internal/geo"
)

var (
	geocodeDistanceTo string
	geocodeUnit       string
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <place>",
	Short: "Resolve a place name to coordinates through Nominatim",
	Example: `  collector geocode "San Jose, CA"
  collector geocode "New York" --distance-to "Los Angeles" --unit kilometers`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := geo.ParseUnit(geocodeUnit)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(a *app) error {
			out := cmd.OutOrStdout()
			if geocodeDistanceTo != "" {
				d, err := a.geocoder.DistanceBetweenPlaces(cmd.Context(), args[0], geocodeDistanceTo, unit)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%.3f %s\n", d, unit)
				return nil
			}

			pt, err := a.geocoder.Geocode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%.7f,%.7f\n", pt.Lat, pt.Lon)
			return nil
		})
	},
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeDistanceTo, "distance-to", "", "Print the distance to this second place instead")
	geocodeCmd.Flags().StringVar(&geocodeUnit, "unit", string(geo.Miles), "meters, kilometers, feet or miles")
	rootCmd.AddCommand(geocodeCmd)
}
