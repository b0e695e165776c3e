package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/mbtiles"
	"github.com/MeKo-Tech/pinmap/internal/render"
	"github.com/MeKo-Tech/pinmap/internal/tile"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
	"github.com/MeKo-Tech/pinmap/internal/worker"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Render XYZ map tiles",
	Long: `Render map tiles for a bounding box and zoom range into an MBTiles file
or a folder of z{z}_x{x}_y{y}.png files.`,
	RunE: runTiles,
}

var tilesConvertCmd = &cobra.Command{
	Use:   "convert <input-dir> <output.mbtiles>",
	Short: "Pack a folder of rendered tiles into an MBTiles file",
	Args:  cobra.ExactArgs(2),
	RunE:  runTilesConvert,
}

func init() {
	rootCmd.AddCommand(tilesCmd)
	tilesCmd.AddCommand(tilesConvertCmd)

	tilesCmd.Flags().String("bbox", "-180,-85.0511,179.9999,85.0511", "Bounding box: minLon,minLat,maxLon,maxLat")
	tilesCmd.Flags().Int("zoom-min", 0, "Minimum zoom level")
	tilesCmd.Flags().Int("zoom-max", 3, "Maximum zoom level")
	tilesCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	tilesCmd.Flags().Bool("progress", true, "Show progress bar")
	tilesCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some tiles fail")
	tilesCmd.Flags().Int("tile-size", tile.DefaultSize, "Tile size in pixels")
	tilesCmd.Flags().Bool("visited-only", false, "Leave pins out and only color visited regions")
	tilesCmd.Flags().Bool("paper", false, "Paper texture on the water")
	tilesCmd.Flags().StringP("output", "o", "pinmap.mbtiles", "Output .mbtiles file or directory")
	tilesCmd.Flags().String("name", "Pinmap", "Tileset name")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"tiles.bbox", "bbox"},
		{"tiles.zoom_min", "zoom-min"},
		{"tiles.zoom_max", "zoom-max"},
		{"tiles.workers", "workers"},
		{"tiles.progress", "progress"},
		{"tiles.allow_failures", "allow-failures"},
		{"tiles.tile_size", "tile-size"},
		{"tiles.visited_only", "visited-only"},
		{"tiles.paper", "paper"},
		{"tiles.output", "output"},
		{"tiles.name", "name"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, tilesCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runTiles(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	bboxStr := viper.GetString("tiles.bbox")
	zoomMin := viper.GetInt("tiles.zoom_min")
	zoomMax := viper.GetInt("tiles.zoom_max")
	workers := viper.GetInt("tiles.workers")
	tileSize := viper.GetInt("tiles.tile_size")
	output := viper.GetString("tiles.output")
	visitedOnly := viper.GetBool("tiles.visited_only")

	bbox, err := parseBBox(bboxStr)
	if err != nil {
		return fmt.Errorf("invalid bbox: %w", err)
	}
	if zoomMin < 0 || zoomMax > tile.MaxZoom {
		return fmt.Errorf("zoom range must lie within 0-%d", tile.MaxZoom)
	}
	if zoomMin > zoomMax {
		return fmt.Errorf("--zoom-min (%d) must be <= --zoom-max (%d)", zoomMin, zoomMax)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	tiles := tile.TilesInBBox(bbox, zoomMin, zoomMax)
	logger.Info("Starting tile rendering",
		"bbox", bboxStr,
		"zoom_range", fmt.Sprintf("%d-%d", zoomMin, zoomMax),
		"tiles", len(tiles),
		"workers", workers,
		"output", output,
	)

	var sink worker.Sink
	var writer *mbtiles.Writer
	if strings.HasSuffix(strings.ToLower(output), ".mbtiles") {
		writer, err = mbtiles.Create(output, mbtiles.Metadata{
			Name:        viper.GetString("tiles.name"),
			Format:      "png",
			Description: "Visited regions and pins",
			Type:        "overlay",
			Version:     "1.0",
			Bounds:      orb.Bound{Min: orb.Point{bbox[0], bbox[1]}, Max: orb.Point{bbox[2], bbox[3]}},
			Center:      orb.Point{(bbox[0] + bbox[2]) / 2, (bbox[1] + bbox[3]) / 2},
			CenterZoom:  (zoomMin + zoomMax) / 2,
			MinZoom:     zoomMin,
			MaxZoom:     zoomMax,
			Theme:       ctrl.Config().Palette.Name,
			VisitedOnly: visitedOnly,
		})
		if err != nil {
			return fmt.Errorf("failed to create MBTiles writer: %w", err)
		}
		defer writer.Close()
		sink = writer
	} else {
		sink = worker.DirSink{Dir: output}
	}

	scene := lockedScene(func(t viewport.Transform) compose.Scene {
		sc := ctrl.SceneFor(t, compose.UIState{}, nil)
		if visitedOnly {
			sc.Pins = nil
		}
		return sc
	})

	opts := render.DefaultRasterOptions()
	opts.Paper = viper.GetBool("tiles.paper")
	renderer := worker.NewSceneRenderer(scene, tileSize, opts)

	progress := worker.NewProgress(len(tiles), viper.GetBool("tiles.progress"))
	if !viper.GetBool("tiles.progress") {
		progress.WithLogger(logger, 100)
	}
	pool := worker.New(worker.Config{
		Workers:    workers,
		Renderer:   renderer,
		Sink:       sink,
		OnProgress: progress.Update,
	})

	results := pool.Run(ctx, tiles)
	progress.Done()

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			if !errors.Is(r.Err, context.Canceled) {
				logger.Error("Tile rendering failed", "tile", r.Coords.String(), "error", r.Err)
			}
		}
	}
	logger.Info(progress.Summary())

	if writer != nil {
		if err := writer.Flush(); err != nil {
			return fmt.Errorf("failed to flush tiles: %w", err)
		}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("tile rendering interrupted")
	}
	if failed > 0 {
		if viper.GetBool("tiles.allow_failures") {
			logger.Warn("Some tiles failed to render", "failed_count", failed)
			return nil
		}
		return fmt.Errorf("%d tiles failed to render", failed)
	}
	return nil
}

// lockedScene serializes calls into the controller; rasterization itself
// runs in parallel on the returned scenes.
func lockedScene(f worker.SceneFunc) worker.SceneFunc {
	var mu sync.Mutex
	return func(t viewport.Transform) compose.Scene {
		mu.Lock()
		defer mu.Unlock()
		return f(t)
	}
}

func runTilesConvert(cmd *cobra.Command, args []string) error {
	inputDir, outputFile := args[0], args[1]
	if _, err := os.Stat(inputDir); os.IsNotExist(err) {
		return fmt.Errorf("input directory does not exist: %s", inputDir)
	}

	tiles, minZoom, maxZoom, err := scanTilesDirectory(inputDir)
	if err != nil {
		return fmt.Errorf("failed to scan tiles directory: %w", err)
	}
	if len(tiles) == 0 {
		return fmt.Errorf("no tiles found in %s", inputDir)
	}
	logger.Info("Found tiles", "count", len(tiles), "min_zoom", minZoom, "max_zoom", maxZoom)

	writer, err := mbtiles.Create(outputFile, mbtiles.Metadata{
		Name:    filepath.Base(inputDir),
		Format:  "png",
		Type:    "overlay",
		Version: "1.0",
		Bounds:  orb.Bound{Min: orb.Point{tile.WorldBBox[0], tile.WorldBBox[1]}, Max: orb.Point{tile.WorldBBox[2], tile.WorldBBox[3]}},
		MinZoom: minZoom,
		MaxZoom: maxZoom,
	})
	if err != nil {
		return fmt.Errorf("failed to create MBTiles writer: %w", err)
	}
	defer writer.Close()

	for i, t := range tiles {
		data, err := os.ReadFile(t.path)
		if err != nil {
			logger.Error("Failed to read tile", "path", t.path, "error", err)
			continue
		}
		if err := writer.Put(t.coords, data); err != nil {
			logger.Error("Failed to write tile", "tile", t.coords.String(), "error", err)
			continue
		}
		if (i+1)%100 == 0 {
			logger.Info("Progress", "converted", i+1, "total", len(tiles))
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush tiles: %w", err)
	}

	logger.Info("Conversion complete", "output", outputFile, "tiles", writer.Written())
	return nil
}

type tileFile struct {
	coords tile.Coords
	path   string
}

var tileFilePattern = regexp.MustCompile(`^z(\d+)_x(\d+)_y(\d+)\.png$`)

// scanTilesDirectory finds z{z}_x{x}_y{y}.png files below dir.
func scanTilesDirectory(dir string) ([]tileFile, int, int, error) {
	var tiles []tileFile
	minZoom, maxZoom := tile.MaxZoom, 0

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		m := tileFilePattern.FindStringSubmatch(d.Name())
		if m == nil {
			return nil
		}
		var n [3]uint32
		for i := range n {
			v, err := strconv.ParseUint(m[i+1], 10, 32)
			if err != nil {
				return nil
			}
			n[i] = uint32(v)
		}
		c := tile.NewCoords(n[0], n[1], n[2])
		if !c.Valid() {
			return nil
		}
		tiles = append(tiles, tileFile{coords: c, path: path})
		minZoom = min(minZoom, int(c.Z))
		maxZoom = max(maxZoom, int(c.Z))
		return nil
	})
	if err != nil {
		return nil, 0, 0, err
	}
	if len(tiles) == 0 {
		minZoom, maxZoom = 0, 0
	}
	return tiles, minZoom, maxZoom, nil
}

// parseBBox parses "minLon,minLat,maxLon,maxLat".
func parseBBox(s string) ([4]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return [4]float64{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	var bbox [4]float64
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return [4]float64{}, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		bbox[i] = val
	}

	if bbox[0] >= bbox[2] {
		return [4]float64{}, fmt.Errorf("minLon (%.4f) must be < maxLon (%.4f)", bbox[0], bbox[2])
	}
	if bbox[1] >= bbox[3] {
		return [4]float64{}, fmt.Errorf("minLat (%.4f) must be < maxLat (%.4f)", bbox[1], bbox[3])
	}
	return bbox, nil
}
