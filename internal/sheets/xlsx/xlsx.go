// Package xlsx reads and writes both tables as sheets of one Excel workbook.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"studiocharts/internal/core"
	"studiocharts/internal/sheets"
)

// Sheet names, matching the default Google Sheets ranges.
const (
	BrandsSheet = "brand"
	MoviesSheet = "peliculas"
)

var ErrNoHeader = errors.New("sheet has no header row")

// Workbook is a file-backed table store. The file is re-opened on every
// read, so edits made in a spreadsheet application are picked up on reload.
type Workbook struct {
	mu   sync.Mutex
	path string
}

var (
	_ sheets.TableReader = (*Workbook)(nil)
	_ sheets.TableWriter = (*Workbook)(nil)
)

func New(path string) *Workbook {
	return &Workbook{path: path}
}

func (w *Workbook) ReadBrands(ctx context.Context) (core.Table, error) {
	return w.read(ctx, BrandsSheet)
}

func (w *Workbook) ReadMovies(ctx context.Context) (core.Table, error) {
	return w.read(ctx, MoviesSheet)
}

func (w *Workbook) ReplaceBrands(ctx context.Context, t core.Table) error {
	return w.replace(ctx, BrandsSheet, t, core.BrandColumns)
}

func (w *Workbook) ReplaceMovies(ctx context.Context, t core.Table) error {
	return w.replace(ctx, MoviesSheet, t, core.MovieColumns)
}

func (w *Workbook) read(ctx context.Context, sheet string) (core.Table, error) {
	if err := ctx.Err(); err != nil {
		return core.Table{}, err
	}
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return core.Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readSheet(f, sheet)
}

// Parse reads both tables from a workbook stream.
func Parse(r io.Reader) (brands, movies core.Table, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return core.Table{}, core.Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if brands, err = readSheet(f, BrandsSheet); err != nil {
		return core.Table{}, core.Table{}, err
	}
	if movies, err = readSheet(f, MoviesSheet); err != nil {
		return core.Table{}, core.Table{}, err
	}
	return brands, movies, nil
}

func readSheet(f *excelize.File, sheet string) (core.Table, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return core.Table{}, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return core.Table{}, fmt.Errorf("sheet %q: %w", sheet, ErrNoHeader)
	}
	return core.NewTable(rows[0], rows[1:]), nil
}

// replace rewrites one sheet and keeps the other. A missing workbook is
// created.
func (w *Workbook) replace(ctx context.Context, sheet string, t core.Table, cols []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(sheet); idx >= 0 {
		if err := clearSheet(f, sheet); err != nil {
			return err
		}
	} else if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	if err := WriteSheet(f, sheet, t, cols); err != nil {
		return err
	}

	tmp := filepath.Join(filepath.Dir(w.path), "."+filepath.Base(w.path)+".tmp")
	if err := f.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save workbook: %w", err)
	}
	return os.Rename(tmp, w.path)
}

// clearSheet empties a sheet in place so its position in the workbook is kept.
func clearSheet(f *excelize.File, sheet string) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return err
	}
	for i := len(rows); i >= 1; i-- {
		if err := f.RemoveRow(sheet, i); err != nil {
			return err
		}
	}
	return nil
}

// WriteSheet writes cols as the header row followed by the records of t.
func WriteSheet(f *excelize.File, sheet string, t core.Table, cols []string) error {
	rows := append([][]string{cols}, t.Rows(cols)...)
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("sheet %q row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
