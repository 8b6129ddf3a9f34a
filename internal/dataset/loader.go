package dataset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"studiocharts/internal/core"
	"studiocharts/internal/log"
	"studiocharts/internal/sheets"
)

// Loader owns the current Dataset. Both tables are fetched concurrently and
// the new snapshot is published only once both have arrived and validated; a
// failed load leaves the previous snapshot in place.
type Loader struct {
	source sheets.TableReader
	topN   int
	logger *log.Logger

	mu        sync.RWMutex
	current   *Dataset
	version   uint64
	listeners []func(*Dataset)
}

func NewLoader(source sheets.TableReader, topN int, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Discard()
	}
	return &Loader{
		source: source,
		topN:   topN,
		logger: logger.WithComponent(log.ComponentDataset),
	}
}

// OnReload registers fn to run after every successful load.
func (l *Loader) OnReload(fn func(*Dataset)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Current returns the latest snapshot or ErrNotLoaded.
func (l *Loader) Current() (*Dataset, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.current == nil {
		return nil, ErrNotLoaded
	}
	return l.current, nil
}

// Load reads both sources and swaps in the new snapshot.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	start := time.Now()

	var brands, movies core.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if brands, err = l.source.ReadBrands(gctx); err != nil {
			return fmt.Errorf("read brands: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if movies, err = l.source.ReadMovies(gctx); err != nil {
			return fmt.Errorf("read movies: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		l.logger.ErrorContext(ctx, "Dataset load failed", log.FieldOperation, log.OpLoad, log.FieldError, err)
		return nil, err
	}

	d, err := Build(brands, movies)
	if err != nil {
		l.logger.ErrorContext(ctx, "Dataset rejected", log.FieldOperation, log.OpLoad, log.FieldError, err)
		return nil, err
	}
	d.LoadedAt = time.Now()

	l.mu.Lock()
	l.version++
	d.Version = l.version
	l.current = d
	listeners := append([]func(*Dataset)(nil), l.listeners...)
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "Dataset loaded",
		log.FieldDatasetVersion, d.Version,
		"brands", len(brands.Records),
		"movies", len(movies.Records),
		"studios", len(d.Studios),
		"dropped_rows", d.Dropped,
		log.FieldDuration, time.Since(start).Milliseconds())

	for _, cat := range d.TopBrands(l.topN).Poisoned() {
		l.logger.WarnContext(ctx, "Non-numeric total in ranking", "brand", cat)
	}
	for _, cat := range d.TopStudios(l.topN).Poisoned() {
		l.logger.WarnContext(ctx, "Non-numeric revenue in ranking", log.FieldStudio, cat)
	}

	for _, fn := range listeners {
		fn(d)
	}
	return d, nil
}
