// Package export writes the rankings of a dataset snapshot to an Excel
// workbook.
package export

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"studiocharts/internal/core"
	"studiocharts/internal/dataset"
)

// Sheet names of the exported workbook.
const (
	SheetBrands  = "Productoras"
	SheetStudios = "Estudios"
	SheetBubbles = "Estrenos"
)

// Workbook builds a workbook with the top n brands by total, the top n
// studios by worldwide revenue and the top n brand rows used by the bubble
// chart. Non-finite numbers are left as empty cells.
func Workbook(d *dataset.Dataset, n int) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetBrands); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetStudios); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetBubbles); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	if err := writeRanking(f, SheetBrands, []string{"#", core.ColBrand, core.ColTotal}, d.TopBrands(n)); err != nil {
		return nil, err
	}
	if err := writeRanking(f, SheetStudios, []string{"#", core.ColStudio, core.ColRevenue}, d.TopStudios(n)); err != nil {
		return nil, err
	}
	if err := writeBrandRows(f, d.TopBrandRows(n)); err != nil {
		return nil, err
	}

	for _, sheet := range []string{SheetBrands, SheetStudios, SheetBubbles} {
		if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
			return nil, err
		}
		_ = f.SetColWidth(sheet, "A", "A", 6)
		_ = f.SetColWidth(sheet, "B", "B", 30)
		_ = f.SetColWidth(sheet, "C", "F", 22)
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write builds the workbook and writes it to w.
func Write(w io.Writer, d *dataset.Dataset, n int) error {
	f, err := Workbook(d, n)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRanking(f *excelize.File, sheet string, headers []string, top core.RankedTopN) error {
	if err := writeHeader(f, sheet, headers); err != nil {
		return err
	}
	for i, e := range top {
		row := []interface{}{i + 1, e.Category, cellNumber(e.Total)}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeBrandRows(f *excelize.File, rows []core.BrandRow) error {
	if err := writeHeader(f, SheetBubbles, append([]string{"#"}, core.BrandColumns...)); err != nil {
		return err
	}
	for i, r := range rows {
		row := []interface{}{
			i + 1,
			r.Brand,
			cellNumber(r.Total),
			cellNumber(r.Releases),
			r.TopRelease,
			cellNumber(r.LifetimeGross),
		}
		if err := setRow(f, SheetBubbles, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return setRow(f, sheet, 1, row)
}

func setRow(f *excelize.File, sheet string, n int, row []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, n, err)
	}
	return nil
}

func cellNumber(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return v
}
