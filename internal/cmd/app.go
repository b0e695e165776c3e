package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/pinmap/internal/config"
	"github.com/MeKo-Tech/pinmap/internal/controller"
	"github.com/MeKo-Tech/pinmap/internal/geodata"
	"github.com/MeKo-Tech/pinmap/internal/pins"
	"github.com/MeKo-Tech/pinmap/internal/spatial"
	"github.com/MeKo-Tech/pinmap/internal/types"
)

// openPinStore opens the configured store. The returned close function is
// never nil.
func openPinStore(cfg *config.Config) (pins.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Pins.Store {
	case "none":
		return nil, noop, nil
	case "file":
		return pins.NewFileStore(cfg.Pins.Path), noop, nil
	case pins.DriverSQLite, pins.DriverPostgres:
		dsn := cfg.Pins.DSN
		if dsn == "" && cfg.Pins.Store == pins.DriverSQLite {
			dsn = cfg.Pins.Path
		}
		s, err := pins.OpenSQLStore(cfg.Pins.Store, dsn)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open pin store: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown pin store %q", cfg.Pins.Store)
	}
}

// loadPins reads the store, then the remote list, then the embedded fallback.
func loadPins(ctx context.Context, cfg *config.Config, store pins.Store, log *slog.Logger) []types.Pin {
	var sources []pins.Source
	if store != nil {
		sources = append(sources, store)
	}
	if cfg.Pins.Remote != "" {
		sources = append(sources, pins.NewRemoteSource(cfg.Pins.Remote, cfg.Pins.Timeout))
	}
	list, fallback := pins.LoadOrFallback(ctx, log, sources...)
	log.Info("Pins loaded", "count", len(list), "fallback", fallback)
	return list
}

// newRegionLoader wires the country and subdivision sources.
func newRegionLoader(cfg *config.Config, log *slog.Logger) *geodata.Loader {
	countries := geodata.OpenSource(cfg.Regions.Countries, cfg.Regions.OverpassEndpoint)

	decomps := cfg.Decompositions()
	subs := make([]geodata.SubdivisionSource, 0, len(decomps))
	for i, d := range decomps {
		subs = append(subs, geodata.SubdivisionSource{
			Decomposition: d,
			Source:        geodata.OpenSource(cfg.Regions.Subdivisions[i].Source, cfg.Regions.OverpassEndpoint),
		})
	}
	return geodata.NewLoader(countries, subs, cfg.MergeOptions(), log)
}

// loadRegions fetches the region snapshot within the configured timeout.
func loadRegions(ctx context.Context, cfg *config.Config, log *slog.Logger) ([]types.Region, error) {
	if cfg.Regions.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Regions.Timeout)
		defer cancel()
	}
	regions, err := newRegionLoader(cfg, log).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load regions: %w", err)
	}
	return regions, nil
}

// newLookupCache prefers Redis when an address is configured.
func newLookupCache(cfg *config.Config, log *slog.Logger) spatial.Cache {
	if cfg.Serve.RedisAddr != "" {
		client := spatial.OpenRedis(cfg.Serve.RedisAddr, cfg.Serve.RedisPassword, cfg.Serve.RedisDB)
		log.Info("Using Redis lookup cache", "addr", cfg.Serve.RedisAddr)
		return spatial.NewRedisCache(client, "pinmap:lookup:", cfg.Serve.LookupCacheTTL, log)
	}
	if cfg.Serve.LookupCacheSize <= 0 {
		return nil
	}
	return spatial.NewLRU(cfg.Serve.LookupCacheSize, cfg.Serve.LookupCacheTTL)
}

// newController builds a controller with pins from the configured store.
func newController(ctx context.Context, cfg *config.Config, canEdit bool, log *slog.Logger) (*controller.Controller, func() error, error) {
	ctrlCfg, err := cfg.Controller(canEdit)
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := openPinStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	ctrl := controller.New(ctrlCfg, loadPins(ctx, cfg, store, log), log)
	if store != nil && canEdit {
		ctrl.SetStore(store)
	}
	return ctrl, closeStore, nil
}
