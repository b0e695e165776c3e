package cmd

import (
	"fmt"
	"strconv"

	"github.com/MeKo-Tech/pinmap/internal/pins"
	"github.com/MeKo-Tech/pinmap/internal/spatial"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <lat> <lon>",
	Short: "Print the region containing a location",
	Args:  cobra.ExactArgs(2),
	RunE:  runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}

// parseLatLon parses and range-checks a latitude/longitude pair.
func parseLatLon(latStr, lonStr string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}
	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("latitude %g out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("longitude %g out of range", lon)
	}
	return lat, lon, nil
}

func runLookup(cmd *cobra.Command, args []string) error {
	lat, lon, err := parseLatLon(args[0], args[1])
	if err != nil {
		return err
	}

	regions, err := loadRegions(cmd.Context(), appConfig, logger)
	if err != nil {
		return err
	}
	idx := spatial.NewIndex(regions)

	out := cmd.OutOrStdout()
	r, ok := idx.Lookup(orb.Point{lon, lat})
	if !ok {
		fmt.Fprintln(out, "no region")
		return nil
	}
	fmt.Fprintf(out, "%s\t%s\t%s\n", r.ID, r.Name, pins.ISO3ToISO2(r.ID))
	return nil
}
