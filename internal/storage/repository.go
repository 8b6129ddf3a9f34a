package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studiocharts/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNoImport is returned by LatestImport on a database never imported into.
var ErrNoImport = errors.New("no import recorded")

// Cells are stored as the raw source text so numbers parse exactly as they
// would from the CSV files.
var (
	brandColumns = []string{"brand", "total", "releases", "top_release", "lifetime_gross"}
	movieColumns = []string{"studio", "year", "revenue", "title", "director"}
)

type SQLiteRepository struct {
	db *sql.DB
}

// Import is one completed load of both tables.
type Import struct {
	ID         int64
	Source     string
	BrandRows  int
	MovieRows  int
	ImportedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReadBrands implements sheets.BrandReader
func (r *SQLiteRepository) ReadBrands(ctx context.Context) (core.Table, error) {
	return r.readTable(ctx, "brands", brandColumns, core.BrandColumns)
}

// ReadMovies implements sheets.MovieReader
func (r *SQLiteRepository) ReadMovies(ctx context.Context) (core.Table, error) {
	return r.readTable(ctx, "movies", movieColumns, core.MovieColumns)
}

// ReplaceBrands implements sheets.TableWriter
func (r *SQLiteRepository) ReplaceBrands(ctx context.Context, t core.Table) error {
	return r.replaceTable(ctx, "brands", brandColumns, core.BrandColumns, t)
}

// ReplaceMovies implements sheets.TableWriter
func (r *SQLiteRepository) ReplaceMovies(ctx context.Context, t core.Table) error {
	return r.replaceTable(ctx, "movies", movieColumns, core.MovieColumns, t)
}

func (r *SQLiteRepository) readTable(ctx context.Context, table string, dbCols, header []string) (core.Table, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", joinColumns(dbCols), table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return core.Table{}, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var raw [][]string
	for rows.Next() {
		row := make([]string, len(dbCols))
		dest := make([]any, len(dbCols))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return core.Table{}, fmt.Errorf("scan %s: %w", table, err)
		}
		raw = append(raw, row)
	}
	if err := rows.Err(); err != nil {
		return core.Table{}, fmt.Errorf("iterate %s: %w", table, err)
	}
	return core.NewTable(header, raw), nil
}

// replaceTable swaps the whole table content in one transaction.
func (r *SQLiteRepository) replaceTable(ctx context.Context, table string, dbCols, header []string, t core.Table) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}

	placeholders := "?"
	for i := 1; i < len(dbCols); i++ {
		placeholders += ", ?"
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, joinColumns(dbCols), placeholders))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range t.Rows(header) {
		args := make([]any, len(row))
		for i, v := range row {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RecordImport stores an import marker and returns its id.
func (r *SQLiteRepository) RecordImport(ctx context.Context, source string, brandRows, movieRows int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO imports (source, brand_rows, movie_rows) VALUES (?, ?, ?)",
		source, brandRows, movieRows)
	if err != nil {
		return 0, fmt.Errorf("record import: %w", err)
	}
	return res.LastInsertId()
}

// LatestImport returns the most recent import marker.
func (r *SQLiteRepository) LatestImport(ctx context.Context) (Import, error) {
	var (
		imp Import
		at  string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, source, brand_rows, movie_rows, imported_at FROM imports ORDER BY id DESC LIMIT 1").
		Scan(&imp.ID, &imp.Source, &imp.BrandRows, &imp.MovieRows, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Import{}, ErrNoImport
	}
	if err != nil {
		return Import{}, fmt.Errorf("latest import: %w", err)
	}
	if imp.ImportedAt, err = parseTimestamp(at); err != nil {
		return Import{}, fmt.Errorf("latest import: %w", err)
	}
	return imp, nil
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

// parseTimestamp accepts both the driver's RFC 3339 rendering and SQLite's
// CURRENT_TIMESTAMP text.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
