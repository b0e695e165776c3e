package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/render"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a map snapshot as SVG or PNG",
	Long: `Render the map with the current pins to an SVG or PNG file.

The view defaults to the whole world; --k, --x and --y set an explicit
viewport transform, --center-lon/--center-lat zoom onto a location.`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("output", "o", "map.svg", "Output file (.svg or .png)")
	renderCmd.Flags().String("format", "", "Output format: svg or png (default: from the output extension)")
	renderCmd.Flags().Int("width", 800, "Output width in pixels")
	renderCmd.Flags().Int("height", 600, "Output height in pixels")
	renderCmd.Flags().Float64("k", 1, "Viewport scale")
	renderCmd.Flags().Float64("x", 0, "Viewport x translation")
	renderCmd.Flags().Float64("y", 0, "Viewport y translation")
	renderCmd.Flags().Float64("center-lon", 0, "Center the view on this longitude")
	renderCmd.Flags().Float64("center-lat", 0, "Center the view on this latitude")
	renderCmd.Flags().String("hover", "", "Region id to render as hovered")
	renderCmd.Flags().Bool("paper", true, "Paper texture on the water (PNG)")
	renderCmd.Flags().Int64("seed", 42, "Paper texture seed (PNG)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"render.output", "output"},
		{"render.format", "format"},
		{"render.width", "width"},
		{"render.height", "height"},
		{"render.k", "k"},
		{"render.x", "x"},
		{"render.y", "y"},
		{"render.center_lon", "center-lon"},
		{"render.center_lat", "center-lat"},
		{"render.hover", "hover"},
		{"render.paper", "paper"},
		{"render.seed", "seed"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, renderCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// outputFormat resolves the format from the flag or the file extension.
func outputFormat(format, output string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
	}
	switch format {
	case "svg", "png":
		return format, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want svg or png)", format)
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	output := viper.GetString("render.output")
	format, err := outputFormat(viper.GetString("render.format"), output)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	ctrl, closeStore, err := newController(ctx, cfg, false, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	regions, err := loadRegions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	ctrl.SetRegions(regions, nil)

	vp := ctrl.Viewport()
	vp.SetTransform(viewport.Transform{
		K: viper.GetFloat64("render.k"),
		X: viper.GetFloat64("render.x"),
		Y: viper.GetFloat64("render.y"),
	})
	if cmd.Flags().Changed("center-lon") || cmd.Flags().Changed("center-lat") {
		if !ctrl.ZoomToLocation(viper.GetFloat64("render.center_lon"), viper.GetFloat64("render.center_lat")) {
			return fmt.Errorf("center location does not project")
		}
		vp.Settle()
	}

	ui := compose.UIState{HoveredRegion: viper.GetString("render.hover")}
	scene := ctrl.SceneFor(vp.Transform(), ui, nil)

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	width, height := viper.GetInt("render.width"), viper.GetInt("render.height")
	switch format {
	case "svg":
		err = render.WriteSVG(w, scene, render.SVGOptions{Width: width, Height: height, Glow: true, Titles: true})
	case "png":
		opts := render.DefaultRasterOptions()
		opts.Width, opts.Height = width, height
		opts.Paper = viper.GetBool("render.paper")
		opts.PaperSeed = viper.GetInt64("render.seed")
		err = render.RenderPNG(w, scene, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", format, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	logger.Info("Map rendered",
		"output", output,
		"format", format,
		"regions", len(regions),
		"visited", scene.VisitedCount(),
		"transform", vp.Transform().String(),
	)
	return nil
}
