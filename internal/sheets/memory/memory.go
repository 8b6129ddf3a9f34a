package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"studiocharts/internal/core"
	"studiocharts/internal/sheets"
)

// Store serves both tables either from fixed in-memory content or from two
// CSV files that are re-read on every call.
type Store struct {
	mu         sync.Mutex
	brands     core.Table
	movies     core.Table
	brandsPath string
	moviesPath string
}

var (
	_ sheets.TableReader = (*Store)(nil)
	_ sheets.TableWriter = (*Store)(nil)
)

func New(brands, movies core.Table) *Store {
	return &Store{brands: brands, movies: movies}
}

// NewFromFiles returns a Store backed by the two CSV files.
func NewFromFiles(brandsPath, moviesPath string) *Store {
	return &Store{brandsPath: brandsPath, moviesPath: moviesPath}
}

func (s *Store) ReadBrands(ctx context.Context) (core.Table, error) {
	return s.read(ctx, s.brandsPath, &s.brands)
}

func (s *Store) ReadMovies(ctx context.Context) (core.Table, error) {
	return s.read(ctx, s.moviesPath, &s.movies)
}

// ReplaceBrands swaps the brand table; a file-backed store rewrites its file.
func (s *Store) ReplaceBrands(ctx context.Context, t core.Table) error {
	return s.replace(ctx, s.brandsPath, &s.brands, t, core.BrandColumns)
}

// ReplaceMovies swaps the movie table; a file-backed store rewrites its file.
func (s *Store) ReplaceMovies(ctx context.Context, t core.Table) error {
	return s.replace(ctx, s.moviesPath, &s.movies, t, core.MovieColumns)
}

func (s *Store) read(ctx context.Context, path string, mem *core.Table) (core.Table, error) {
	if err := ctx.Err(); err != nil {
		return core.Table{}, err
	}
	if path != "" {
		return sheets.ReadCSVFile(path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTable(*mem), nil
}

func (s *Store) replace(ctx context.Context, path string, mem *core.Table, t core.Table, cols []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		*mem = cloneTable(t)
		return nil
	}

	// Write next to the target and rename so readers never see a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := sheets.WriteCSV(tmp, t, cols); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func cloneTable(t core.Table) core.Table {
	out := core.Table{
		Header:  append([]string(nil), t.Header...),
		Records: make([]core.Record, len(t.Records)),
	}
	for i, r := range t.Records {
		out.Records[i] = r.Clone()
	}
	return out
}
