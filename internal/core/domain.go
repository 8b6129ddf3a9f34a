package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Column names of the two known input schemas.
const (
	// Schema A: one row per brand.
	ColBrand         = "Brand"
	ColTotal         = "Total"
	ColReleases      = "Releases"
	ColTopRelease    = "#1 Release"
	ColLifetimeGross = "Lifetime Gross"

	// Schema B: one row per title.
	ColStudio   = "Productora"
	ColYear     = "Año de estreno"
	ColRevenue  = "Recaudacion mundial (Millones) (USD)"
	ColTitle    = "Película"
	ColDirector = "Director"
)

// UnknownDirector replaces a missing or blank Director field.
const UnknownDirector = "Desconocido"

// AllStudios is the filter value selecting every studio.
const AllStudios = "all"

var ErrMissingColumn = errors.New("missing column")

type (
	// Record is one parsed row keyed by header name. Treat as read-only.
	Record map[string]string

	// AggregatedEntry is the summed value of one category.
	AggregatedEntry struct {
		Category string  `json:"category"`
		Total    float64 `json:"total"`
	}

	// RankedTopN holds entries ordered by Total, highest first.
	RankedTopN []AggregatedEntry

	// TimeSeriesPoint is one title placed on the release-year axis.
	TimeSeriesPoint struct {
		Category string  `json:"category"`
		Year     int     `json:"year"`
		Value    float64 `json:"value"`
		Label    string  `json:"label"`
		Director string  `json:"director"`
	}

	// Series is the ordered list of points for one category.
	Series struct {
		Category string            `json:"category"`
		Points   []TimeSeriesPoint `json:"points"`
	}

	// Table is a parsed tabular source: its header and one Record per
	// non-blank row.
	Table struct {
		Header  []string
		Records []Record
	}

	// BrandRow is a typed Schema A row. Numeric fields may be NaN.
	BrandRow struct {
		Brand         string  `json:"brand"`
		Total         float64 `json:"total"`
		Releases      float64 `json:"releases"`
		TopRelease    string  `json:"top_release"`
		LifetimeGross float64 `json:"lifetime_gross"`
	}
)

// Get returns the trimmed value of a field, "" when absent.
func (r Record) Get(field string) string {
	return strings.TrimSpace(r[field])
}

// Number parses a field permissively; see ParseNumber.
func (r Record) Number(field string) float64 {
	return ParseNumber(r[field])
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Finite reports whether the entry total is a usable number.
func (e AggregatedEntry) Finite() bool {
	return !math.IsNaN(e.Total) && !math.IsInf(e.Total, 0)
}

// Categories returns the category names in rank order.
func (r RankedTopN) Categories() []string {
	out := make([]string, len(r))
	for i, e := range r {
		out[i] = e.Category
	}
	return out
}

// Totals returns the totals in rank order.
func (r RankedTopN) Totals() []float64 {
	out := make([]float64, len(r))
	for i, e := range r {
		out[i] = e.Total
	}
	return out
}

// Poisoned lists the categories whose total is not finite.
func (r RankedTopN) Poisoned() []string {
	var out []string
	for _, e := range r {
		if !e.Finite() {
			out = append(out, e.Category)
		}
	}
	return out
}

// Size is the marker size used for a point: revenue scaled down by 7.
func (p TimeSeriesPoint) Size() float64 {
	return p.Value / 7
}

// Years returns the point years in order.
func (s Series) Years() []int {
	out := make([]int, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Year
	}
	return out
}

// BrandRowFromRecord converts a Schema A record.
func BrandRowFromRecord(r Record) BrandRow {
	return BrandRow{
		Brand:         r.Get(ColBrand),
		Total:         r.Number(ColTotal),
		Releases:      ParseInt(r[ColReleases]),
		TopRelease:    r.Get(ColTopRelease),
		LifetimeGross: r.Number(ColLifetimeGross),
	}
}

// PointFromRecord converts a Schema B record. ok is false when the studio is
// blank or the year or revenue is missing, zero or not a number; such rows
// never reach the time series.
func PointFromRecord(r Record) (TimeSeriesPoint, bool) {
	p := TimeSeriesPoint{
		Category: r.Get(ColStudio),
		Value:    r.Number(ColRevenue),
		Label:    r.Get(ColTitle),
		Director: r.Get(ColDirector),
	}
	if p.Director == "" {
		p.Director = UnknownDirector
	}
	year := ParseInt(r[ColYear])
	if p.Category == "" || math.IsNaN(year) || year == 0 || math.IsNaN(p.Value) || p.Value == 0 {
		return p, false
	}
	p.Year = int(year)
	return p, true
}

// BrandColumns and MovieColumns are the headers of the two schemas in their
// canonical order.
var (
	BrandColumns = []string{ColBrand, ColTotal, ColReleases, ColTopRelease, ColLifetimeGross}
	MovieColumns = []string{ColStudio, ColYear, ColRevenue, ColTitle, ColDirector}
)

// NewTable builds a Table from a header and raw rows. Header names are
// trimmed and a leading byte order mark is dropped. Short rows leave the
// missing fields empty; rows with no non-blank cell are skipped.
func NewTable(header []string, rows [][]string) Table {
	h := make([]string, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		h[i] = strings.TrimSpace(name)
	}
	t := Table{Header: h, Records: make([]Record, 0, len(rows))}
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		rec := make(Record, len(h))
		for i, name := range h {
			if name == "" {
				continue
			}
			if i < len(row) {
				rec[name] = row[i]
			} else {
				rec[name] = ""
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t
}

// Require checks the table header; see RequireColumns.
func (t Table) Require(cols ...string) error {
	return RequireColumns(t.Header, cols...)
}

// Rows renders the records back into rows following cols.
func (t Table) Rows(cols []string) [][]string {
	out := make([][]string, len(t.Records))
	for i, r := range t.Records {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = r[c]
		}
		out[i] = row
	}
	return out
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// RequireColumns checks a header against the columns a schema needs.
func RequireColumns(header []string, cols ...string) error {
	have := make(map[string]struct{}, len(header))
	for _, h := range header {
		have[strings.TrimSpace(h)] = struct{}{}
	}
	var missing []string
	for _, c := range cols {
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}
