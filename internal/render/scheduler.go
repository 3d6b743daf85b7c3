package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/pixel"
)

// Default maximum tile dimensions. 256x256 uint16 samples is 128 KiB per
// plane, small enough to stay cache-resident per worker.
const (
	DefaultTileWidth  = 256
	DefaultTileHeight = 256
)

// Scheduler fans the tiles of one AreaTask out over a worker pool. Tile
// execution order is unspecified; a fan-in barrier guarantees every tile has
// completed before Run returns, so a subsequent task always reads fully
// materialized output.
//
// The pool is created on the first parallel Run and reused by every Run
// after it; call Close when the scheduler is no longer needed. A Scheduler
// drives one task at a time: Run must not be called concurrently on the
// same Scheduler.
type Scheduler struct {
	// MaxTileWidth and MaxTileHeight bound the tile size. Zero selects the
	// defaults.
	MaxTileWidth  int32
	MaxTileHeight int32

	// Workers is the number of concurrent workers. Values <= 1 run all
	// tiles inline on the calling goroutine.
	Workers int

	pool *workerpool.Pool
}

// Close releases the scheduler's worker pool. Calling Close more than once,
// or without a prior parallel Run, is safe; a Run after Close executes its
// tiles sequentially.
func (s *Scheduler) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Run executes task over every tile of bounds, reading from src and writing
// to dst. Cancellation of ctx is polled before each tile is started:
// in-flight tiles run to completion, no further tiles are dispatched, and
// ctx's error is returned.
//
// dst must cover bounds. Tiles write disjoint regions of dst, so no
// synchronization of the pixel data itself is needed.
func (s *Scheduler) Run(ctx context.Context, task AreaTask, src, dst *pixel.Buffer, bounds geom.Rect) error {
	if !dst.Bounds().ContainsRect(bounds) {
		return fmt.Errorf("scheduler bounds %+v outside destination %+v", bounds, dst.Bounds())
	}

	tileW := s.MaxTileWidth
	if tileW <= 0 {
		tileW = DefaultTileWidth
	}
	tileH := s.MaxTileHeight
	if tileH <= 0 {
		tileH = DefaultTileHeight
	}

	it, err := geom.NewTileIterator(bounds, tileW, tileH)
	if err != nil {
		return err
	}
	n := it.Count()
	if n == 0 {
		return ctx.Err()
	}

	if s.Workers <= 1 || n == 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.runTile(task, src, dst, it.Tile(i)); err != nil {
				return err
			}
		}
		return nil
	}

	// Workers persist across Run calls, so a multi-stage pass pays the
	// spawn cost once.
	if s.pool == nil {
		s.pool = workerpool.New(s.Workers)
	}

	var (
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	s.pool.ParallelForAtomic(n, func(i int) {
		// Poll cancellation and prior failure at tile granularity; a tile
		// already running is allowed to finish.
		if failed() {
			return
		}
		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}
		if err := s.runTile(task, src, dst, it.Tile(i)); err != nil {
			fail(err)
		}
	})

	mu.Lock()
	defer mu.Unlock()
	return firstErr
}

// runTile executes task for one tile. The task receives the whole src buffer
// (its contract restricts reads to the clamped input area) and a dst window
// covering exactly the tile, which structurally prevents out-of-tile writes.
func (s *Scheduler) runTile(task AreaTask, src, dst *pixel.Buffer, tile geom.Rect) error {
	win, err := dst.Window(tile)
	if err != nil {
		return err
	}
	if err := task.Process(src, win, tile); err != nil {
		return fmt.Errorf("tile %+v: %w", tile, err)
	}
	return nil
}
