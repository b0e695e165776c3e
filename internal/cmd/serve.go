package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/pinmap/internal/mbtiles"
	"github.com/MeKo-Tech/pinmap/internal/server"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the map, pin API and tiles over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Bool("can-edit", false, "Allow placing, editing and deleting pins")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for rendered images and tiles")
	serveCmd.Flags().String("mbtiles", "", "Serve tiles from this MBTiles file instead of rendering on demand")
	serveCmd.Flags().String("geoip-db", "", "GeoLite2/GeoIP2 City database for /api/view/locate")
	serveCmd.Flags().String("redis-addr", "", "Redis address for the shared lookup cache")
	serveCmd.Flags().Int("tile-size", 256, "Tile size in pixels")
	serveCmd.Flags().Int("max-renders", 4, "Max concurrent on-demand tile renders")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.can_edit", "can-edit")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.mbtiles", "mbtiles")
	mustBind("serve.geoip_db", "geoip-db")
	mustBind("serve.redis_addr", "redis-addr")
	mustBind("serve.tile_size", "tile-size")
	mustBind("serve.max_renders", "max-renders")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	sc := cfg.Serve

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl, closeStore, err := newController(ctx, cfg, sc.CanEdit, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	ctrl.Attach(viewport.IdentitySurface{})

	opts := []server.Option{}
	if cache := newLookupCache(cfg, logger); cache != nil {
		opts = append(opts, server.WithLookupCache(cache))
	}
	if sc.GeoIPDB != "" {
		loc, err := server.OpenGeoIP(sc.GeoIPDB)
		if err != nil {
			return err
		}
		defer loc.Close()
		opts = append(opts, server.WithLocator(loc))
	}
	if sc.MBTiles != "" {
		reader, err := mbtiles.Open(sc.MBTiles)
		if err != nil {
			return fmt.Errorf("failed to open MBTiles: %w", err)
		}
		defer reader.Close()
		opts = append(opts, server.WithMBTiles(reader))
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = sc.Addr
	srvCfg.CacheControl = sc.CacheControl
	srvCfg.LookupPrecision = sc.LookupPrecision
	srvCfg.TileSize = sc.TileSize
	srvCfg.MaxRenders = sc.MaxRenders
	srvCfg.RenderTimeout = sc.RenderTimeout

	srv := server.New(ctrl, srvCfg, logger, opts...)

	// The map serves a loading state until the regions arrive.
	go func() {
		regions, err := loadRegions(ctx, cfg, logger)
		if err != nil {
			logger.Error("Region loading failed; the map stays in its loading state", "error", err)
			return
		}
		srv.SetRegions(regions)
	}()

	logger.Info("Serving map",
		"addr", sc.Addr,
		"can_edit", sc.CanEdit,
		"mbtiles", sc.MBTiles,
		"geoip", sc.GeoIPDB != "",
	)
	return srv.ListenAndServe(ctx)
}
