// Package worker renders map tiles in parallel and hands them to a sink.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/tile"
)

// Renderer produces the encoded image of one tile.
type Renderer interface {
	RenderTile(ctx context.Context, c tile.Coords) ([]byte, error)
}

// Sink stores rendered tiles. Implementations must be safe for concurrent use.
type Sink interface {
	Put(c tile.Coords, data []byte) error
}

// Result is the outcome of one tile.
type Result struct {
	Coords  tile.Coords
	Bytes   int
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each tile completes.
type ProgressFunc func(completed, total, failed int)

// Config configures the pool.
type Config struct {
	Workers    int
	Renderer   Renderer
	Sink       Sink
	OnProgress ProgressFunc
}

// Pool renders tiles with a fixed number of workers.
type Pool struct {
	workers    int
	renderer   Renderer
	sink       Sink
	onProgress ProgressFunc
}

// New creates a pool. Fewer than one worker means one.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		workers:    workers,
		renderer:   cfg.Renderer,
		sink:       cfg.Sink,
		onProgress: cfg.OnProgress,
	}
}

// Run renders every tile and blocks until all are done or ctx is cancelled.
// Tiles not started before cancellation are reported with ctx.Err().
func (p *Pool) Run(ctx context.Context, tiles []tile.Coords) []Result {
	if len(tiles) == 0 {
		return nil
	}

	taskCh := make(chan tile.Coords)
	resultCh := make(chan Result, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range taskCh {
				resultCh <- p.process(ctx, c)
			}
		}()
	}

	go func() {
		defer close(taskCh)
		for i, c := range tiles {
			select {
			case taskCh <- c:
			case <-ctx.Done():
				for _, rest := range tiles[i:] {
					resultCh <- Result{Coords: rest, Err: ctx.Err()}
				}
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]Result, 0, len(tiles))
	failed := 0
	for r := range resultCh {
		results = append(results, r)
		if r.Err != nil {
			failed++
		}
		if p.onProgress != nil {
			p.onProgress(len(results), len(tiles), failed)
		}
	}
	return results
}

func (p *Pool) process(ctx context.Context, c tile.Coords) Result {
	if err := ctx.Err(); err != nil {
		return Result{Coords: c, Err: err}
	}

	start := time.Now()
	data, err := p.renderer.RenderTile(ctx, c)
	if err == nil && p.sink != nil {
		err = p.sink.Put(c, data)
	}
	return Result{Coords: c, Bytes: len(data), Err: err, Elapsed: time.Since(start)}
}
