package geodata

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/types"
)

// SubdivisionSource pairs a decomposition with the source of its regions.
type SubdivisionSource struct {
	Decomposition Decomposition
	Source        Source
}

// Loader fetches the country and subdivision sources concurrently and
// merges them into one region snapshot. The snapshot is produced once; later
// calls to Load return the same result.
type Loader struct {
	Countries    Source
	Subdivisions []SubdivisionSource
	Options      MergeOptions

	logger *slog.Logger

	once    sync.Once
	regions []types.Region
	err     error
}

// NewLoader creates a loader.
func NewLoader(countries Source, subdivisions []SubdivisionSource, opts MergeOptions, logger *slog.Logger) *Loader {
	return &Loader{
		Countries:    countries,
		Subdivisions: subdivisions,
		Options:      opts,
		logger:       logger,
	}
}

func (l *Loader) log() *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return slog.Default()
}

// Load returns the merged region list. A failed subdivision source is
// logged and its country is kept whole; a failed country source is an error.
func (l *Loader) Load(ctx context.Context) ([]types.Region, error) {
	l.once.Do(func() {
		l.regions, l.err = l.load(ctx)
	})
	return l.regions, l.err
}

func (l *Loader) load(ctx context.Context) ([]types.Region, error) {
	if l.Countries == nil {
		return nil, fmt.Errorf("no country source configured")
	}
	start := time.Now()

	var (
		wg        sync.WaitGroup
		countries []types.Region
		countErr  error
		sets      = make([]SubdivisionSet, len(l.Subdivisions))
		setErrs   = make([]error, len(l.Subdivisions))
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		countries, countErr = l.Countries.Load(ctx)
	}()

	for i, sub := range l.Subdivisions {
		wg.Add(1)
		go func(i int, sub SubdivisionSource) {
			defer wg.Done()
			regions, err := sub.Source.Load(ctx)
			sets[i] = SubdivisionSet{Decomposition: sub.Decomposition, Regions: regions}
			setErrs[i] = err
		}(i, sub)
	}
	wg.Wait()

	if countErr != nil {
		return nil, fmt.Errorf("failed to load countries from %s: %w", l.Countries.Name(), countErr)
	}

	usable := sets[:0:0]
	for i, s := range sets {
		if setErrs[i] != nil {
			l.log().Warn("Subdivision source failed, keeping country whole",
				"country", s.Decomposition.Country,
				"source", l.Subdivisions[i].Source.Name(),
				"error", setErrs[i])
			continue
		}
		if len(s.Regions) == 0 {
			l.log().Warn("Subdivision source returned no regions, keeping country whole",
				"country", s.Decomposition.Country)
			continue
		}
		usable = append(usable, s)
	}

	regions := Merge(l.Options, countries, usable...)
	l.log().Info("Regions loaded",
		"countries", len(countries),
		"subdivision_sets", len(usable),
		"total", len(regions),
		"duration", time.Since(start))
	return regions, nil
}
