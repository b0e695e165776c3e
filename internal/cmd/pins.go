package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/pins"
	"github.com/MeKo-Tech/pinmap/internal/spatial"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/spf13/cobra"
)

var pinsCmd = &cobra.Command{
	Use:   "pins",
	Short: "Inspect and export the pin collection",
}

var pinsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pins",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := currentPins(cmd)
		if err != nil {
			return err
		}
		return writePinTable(cmd.OutOrStdout(), list)
	},
}

var pinsGroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List pins grouped by continent",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := currentPins(cmd)
		if err != nil {
			return err
		}
		asc, _ := cmd.Flags().GetBool("asc")
		return writeGroups(cmd.OutOrStdout(), pins.GroupByContinent(list, !asc))
	},
}

var pinsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a " + pins.ExportFilename + " backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := currentPins(cmd)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		if output == "-" {
			return pins.WriteExport(cmd.OutOrStdout(), list, time.Now())
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create export: %w", err)
		}
		defer f.Close()
		if err := pins.WriteExport(f, list, time.Now()); err != nil {
			return err
		}
		logger.Info("Pins exported", "output", output, "count", len(list))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pinsCmd)
	pinsCmd.AddCommand(pinsListCmd, pinsGroupsCmd, pinsExportCmd)

	pinsCmd.PersistentFlags().Bool("resolve", false, "Load regions and backfill missing pin locations")
	pinsGroupsCmd.Flags().Bool("asc", false, "Oldest first")
	pinsExportCmd.Flags().StringP("output", "o", pins.ExportFilename, "Output file, or - for stdout")
}

// currentPins loads the configured pins, optionally resolving locations.
func currentPins(cmd *cobra.Command) ([]types.Pin, error) {
	ctx := cmd.Context()
	store, closeStore, err := openPinStore(appConfig)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	list := loadPins(ctx, appConfig, store, logger)
	if resolve, _ := cmd.Flags().GetBool("resolve"); resolve {
		regions, err := loadRegions(ctx, appConfig, logger)
		if err != nil {
			return nil, err
		}
		idx := spatial.NewIndex(regions)
		list, _ = pins.Backfill(list, idx)
	}
	return list, nil
}

func writePinTable(w io.Writer, list []types.Pin) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tLOCATION\tFLAG\tLAT\tLON\tTITLE")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4f\t%.4f\t%s\n", p.ID, p.Date, p.LocationID, p.FlagCode, p.Lat, p.Lon, p.Title)
	}
	return tw.Flush()
}

func writeGroups(w io.Writer, groups []pins.Group) error {
	for _, g := range groups {
		fmt.Fprintf(w, "%s (%d)\n", g.Continent, len(g.Pins))
		for _, p := range g.Pins {
			fmt.Fprintf(w, "  %s  %s  %s\n", p.Date, p.FlagCode, p.Title)
		}
	}
	return nil
}
