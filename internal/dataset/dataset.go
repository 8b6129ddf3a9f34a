// Package dataset turns the two raw tables into the read-only view every
// chart is computed from, and reloads it on demand.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"studiocharts/internal/aggregate"
	"studiocharts/internal/core"
)

var (
	ErrNotLoaded     = errors.New("dataset not loaded")
	ErrUnknownStudio = errors.New("unknown studio")
)

// Required columns per schema. Director is optional in Schema B and the
// bubble-only columns are optional in Schema A.
var (
	requiredBrandColumns = []string{core.ColBrand, core.ColTotal}
	requiredMovieColumns = []string{core.ColStudio, core.ColYear, core.ColRevenue, core.ColTitle}
)

// Dataset is an immutable snapshot of both sources. Build a new one on every
// reload instead of mutating.
type Dataset struct {
	Version  uint64
	LoadedAt time.Time

	Brands core.Table
	Movies core.Table

	// Studios is every studio with at least one usable title, sorted.
	Studios []string
	// Series holds one entry per studio in Studios order.
	Series []core.Series

	// Dropped counts Schema B rows left out of the series.
	Dropped int
}

// Build validates both headers and derives the time series.
func Build(brands, movies core.Table) (*Dataset, error) {
	if err := brands.Require(requiredBrandColumns...); err != nil {
		return nil, fmt.Errorf("brands: %w", err)
	}
	if err := movies.Require(requiredMovieColumns...); err != nil {
		return nil, fmt.Errorf("movies: %w", err)
	}

	d := &Dataset{Brands: brands, Movies: movies}

	byStudio := make(map[string][]core.TimeSeriesPoint)
	for _, r := range movies.Records {
		p, ok := core.PointFromRecord(r)
		if !ok {
			d.Dropped++
			continue
		}
		byStudio[p.Category] = append(byStudio[p.Category], p)
	}

	d.Studios = make([]string, 0, len(byStudio))
	for s := range byStudio {
		d.Studios = append(d.Studios, s)
	}
	sort.Strings(d.Studios)

	d.Series = make([]core.Series, len(d.Studios))
	for i, s := range d.Studios {
		d.Series[i] = core.Series{Category: s, Points: byStudio[s]}
	}
	return d, nil
}

// SeriesFor returns every series for core.AllStudios (or ""), otherwise the
// single series of studio.
func (d *Dataset) SeriesFor(studio string) ([]core.Series, error) {
	if studio == "" || studio == core.AllStudios {
		return d.Series, nil
	}
	i := sort.SearchStrings(d.Studios, studio)
	if i == len(d.Studios) || d.Studios[i] != studio {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStudio, studio)
	}
	return d.Series[i : i+1], nil
}

// StudioIndex is the position of studio in Studios, -1 when absent. Colors
// are assigned by this index so they stay stable under filtering.
func (d *Dataset) StudioIndex(studio string) int {
	i := sort.SearchStrings(d.Studios, studio)
	if i == len(d.Studios) || d.Studios[i] != studio {
		return -1
	}
	return i
}

// YearRange returns the lowest and highest year over all usable titles.
func (d *Dataset) YearRange() (lo, hi int, ok bool) {
	for _, s := range d.Series {
		for _, p := range s.Points {
			if !ok || p.Year < lo {
				lo = p.Year
			}
			if !ok || p.Year > hi {
				hi = p.Year
			}
			ok = true
		}
	}
	return lo, hi, ok
}

// TopBrands sums Total per Brand and keeps the n highest.
func (d *Dataset) TopBrands(n int) core.RankedTopN {
	return aggregate.Aggregate(d.Brands.Records, core.ColBrand, core.ColTotal, n)
}

// TopStudios sums worldwide revenue per studio over all titles.
func (d *Dataset) TopStudios(n int) core.RankedTopN {
	return aggregate.Aggregate(d.Movies.Records, core.ColStudio, core.ColRevenue, n)
}

// TopBrandRows ranks individual brand rows by Total, used by the bubble
// chart which needs every column of the row.
func (d *Dataset) TopBrandRows(n int) []core.BrandRow {
	rows := aggregate.TopRows(d.Brands.Records, core.ColTotal, n)
	out := make([]core.BrandRow, len(rows))
	for i, r := range rows {
		out[i] = core.BrandRowFromRecord(r)
	}
	return out
}
