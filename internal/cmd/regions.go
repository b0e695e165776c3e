package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/MeKo-Tech/pinmap/internal/geodata"
	"github.com/spf13/cobra"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Load, inspect and export the merged region set",
}

var regionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List regions in lookup order",
	RunE: func(cmd *cobra.Command, args []string) error {
		regions, err := loadRegions(cmd.Context(), appConfig, logger)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tKIND\tNAME")
		for _, r := range regions {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Kind, r.Name)
		}
		return tw.Flush()
	},
}

var regionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the merged regions as one GeoJSON FeatureCollection",
	RunE: func(cmd *cobra.Command, args []string) error {
		regions, err := loadRegions(cmd.Context(), appConfig, logger)
		if err != nil {
			return err
		}
		data, err := geodata.EncodeGeoJSON(regions)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		if output == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return fmt.Errorf("failed to write regions: %w", err)
		}
		logger.Info("Regions exported", "output", output, "count", len(regions))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
	regionsCmd.AddCommand(regionsListCmd, regionsExportCmd)

	regionsExportCmd.Flags().StringP("output", "o", "regions.geojson", "Output file, or - for stdout")
}
