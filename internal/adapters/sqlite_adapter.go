package adapters

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"studiocharts/internal/core"
	"studiocharts/internal/log"
	"studiocharts/internal/sheets"
	"studiocharts/internal/storage"
)

// SQLiteAdapter serves both tables from SQLite. When the database has never
// been imported into and a seed source is set, the first read copies the seed
// tables in and records a "seed" import.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	seed    sheets.TableReader
	logger  *log.Logger

	seedOnce sync.Mutex
	seeded   bool
}

var (
	_ sheets.TableReader = (*SQLiteAdapter)(nil)
	_ sheets.TableWriter = (*SQLiteAdapter)(nil)
)

func NewSQLiteAdapter(storage *storage.SQLiteRepository, seed sheets.TableReader, logger *log.Logger) *SQLiteAdapter {
	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteAdapter{
		storage: storage,
		seed:    seed,
		logger:  logger.WithComponent(log.ComponentStorage),
	}
}

// ReadBrands implements sheets.BrandReader
func (a *SQLiteAdapter) ReadBrands(ctx context.Context) (core.Table, error) {
	if err := a.ensureSeeded(ctx); err != nil {
		return core.Table{}, err
	}
	return a.storage.ReadBrands(ctx)
}

// ReadMovies implements sheets.MovieReader
func (a *SQLiteAdapter) ReadMovies(ctx context.Context) (core.Table, error) {
	if err := a.ensureSeeded(ctx); err != nil {
		return core.Table{}, err
	}
	return a.storage.ReadMovies(ctx)
}

// ReplaceBrands implements sheets.TableWriter
func (a *SQLiteAdapter) ReplaceBrands(ctx context.Context, t core.Table) error {
	return a.storage.ReplaceBrands(ctx, t)
}

// ReplaceMovies implements sheets.TableWriter
func (a *SQLiteAdapter) ReplaceMovies(ctx context.Context, t core.Table) error {
	return a.storage.ReplaceMovies(ctx, t)
}

// RecordImport implements services.ImportRecorder
func (a *SQLiteAdapter) RecordImport(ctx context.Context, source string, brandRows, movieRows int) (int64, error) {
	return a.storage.RecordImport(ctx, source, brandRows, movieRows)
}

// LatestImport implements worker.ImportHistory
func (a *SQLiteAdapter) LatestImport(ctx context.Context) (storage.Import, error) {
	return a.storage.LatestImport(ctx)
}

func (a *SQLiteAdapter) ensureSeeded(ctx context.Context) error {
	if a.seed == nil {
		return nil
	}
	a.seedOnce.Lock()
	defer a.seedOnce.Unlock()
	if a.seeded {
		return nil
	}

	_, err := a.storage.LatestImport(ctx)
	if err == nil {
		a.seeded = true
		return nil
	}
	if !errors.Is(err, storage.ErrNoImport) {
		return err
	}

	brands, err := a.seed.ReadBrands(ctx)
	if err != nil {
		return fmt.Errorf("seed brands: %w", err)
	}
	movies, err := a.seed.ReadMovies(ctx)
	if err != nil {
		return fmt.Errorf("seed movies: %w", err)
	}
	if err := a.storage.ReplaceBrands(ctx, brands); err != nil {
		return err
	}
	if err := a.storage.ReplaceMovies(ctx, movies); err != nil {
		return err
	}
	id, err := a.storage.RecordImport(ctx, "seed", len(brands.Records), len(movies.Records))
	if err != nil {
		return err
	}
	a.seeded = true

	a.logger.InfoContext(ctx, "Database seeded",
		log.FieldOperation, log.OpImport,
		"import_id", id,
		"brands", len(brands.Records),
		"movies", len(movies.Records))
	return nil
}

// Close closes the underlying database.
func (a *SQLiteAdapter) Close() error {
	return a.storage.Close()
}
