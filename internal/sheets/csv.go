package sheets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"studiocharts/internal/core"
)

// ErrEmptyFile is returned for a CSV source without a header row.
var ErrEmptyFile = errors.New("csv has no header row")

// ParseCSV reads a header row followed by data rows. Ragged rows and stray
// quotes are tolerated.
func ParseCSV(r io.Reader) (core.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return core.Table{}, ErrEmptyFile
	}
	if err != nil {
		return core.Table{}, fmt.Errorf("read header: %w", err)
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return core.Table{}, fmt.Errorf("read rows: %w", err)
	}
	return core.NewTable(header, rows), nil
}

// ReadCSVFile opens and parses path.
func ReadCSVFile(path string) (core.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Table{}, err
	}
	defer f.Close()

	t, err := ParseCSV(f)
	if err != nil {
		return core.Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteCSV writes t as CSV using cols as the header.
func WriteCSV(w io.Writer, t core.Table, cols []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows(cols)); err != nil {
		return err
	}
	return cw.Error()
}
