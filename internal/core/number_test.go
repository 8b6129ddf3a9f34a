package core

import (
	"errors"
	"math"
	"testing"
)

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		nan bool
	}{
		{"12.5", 12.5, false},
		{" 7e2 USD", 700, false},
		{"1,234", 1, false},
		{"-3", -3, false},
		{".5", 0.5, false},
		{"5.", 5, false},
		{"2e", 2, false},
		{"Infinity", math.Inf(1), false},
		{"", 0, true},
		{"n/a", 0, true},
		{".", 0, true},
		{"$100", 0, true},
	}
	for _, tc := range cases {
		got := ParseNumber(tc.in)
		if tc.nan {
			if !math.IsNaN(got) {
				t.Fatalf("%q expected NaN, got %v", tc.in, got)
			}
			continue
		}
		if got != tc.out {
			t.Fatalf("%q expected %v, got %v", tc.in, tc.out, got)
		}
	}
}

func TestParseInt(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		nan bool
	}{
		{"1997", 1997, false},
		{" 2001 ", 2001, false},
		{"12.9", 12, false},
		{"-4x", -4, false},
		{"", 0, true},
		{"year", 0, true},
	}
	for _, tc := range cases {
		got := ParseInt(tc.in)
		if tc.nan != math.IsNaN(got) || (!tc.nan && got != tc.out) {
			t.Fatalf("%q expected %v (nan=%v), got %v", tc.in, tc.out, tc.nan, got)
		}
	}
}

func TestPointFromRecord(t *testing.T) {
	rec := Record{
		ColStudio:  "Disney",
		ColYear:    "2019",
		ColRevenue: "2797.5",
		ColTitle:   "Avengers: Endgame",
	}
	p, ok := PointFromRecord(rec)
	if !ok {
		t.Fatalf("expected usable point")
	}
	if p.Year != 2019 || p.Value != 2797.5 || p.Category != "Disney" {
		t.Fatalf("unexpected point: %+v", p)
	}
	if p.Director != UnknownDirector {
		t.Fatalf("missing director should default, got %q", p.Director)
	}
	if p.Size() != 2797.5/7 {
		t.Fatalf("unexpected size %v", p.Size())
	}

	for name, broken := range map[string]Record{
		"no studio":   {ColYear: "2019", ColRevenue: "10"},
		"bad year":    {ColStudio: "A", ColYear: "soon", ColRevenue: "10"},
		"zero value":  {ColStudio: "A", ColYear: "2019", ColRevenue: "0"},
		"nan revenue": {ColStudio: "A", ColYear: "2019", ColRevenue: "?"},
	} {
		if _, ok := PointFromRecord(broken); ok {
			t.Fatalf("%s: expected row to be dropped", name)
		}
	}
}

func TestBrandRowFromRecordKeepsNaN(t *testing.T) {
	row := BrandRowFromRecord(Record{ColBrand: " Pixar ", ColTotal: "oops", ColReleases: "26"})
	if row.Brand != "Pixar" || row.Releases != 26 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if !math.IsNaN(row.Total) || !math.IsNaN(row.LifetimeGross) {
		t.Fatalf("malformed numbers must stay NaN: %+v", row)
	}
}

func TestRequireColumns(t *testing.T) {
	if err := RequireColumns([]string{"Brand", " Total "}, ColBrand, ColTotal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := RequireColumns([]string{"Brand"}, ColBrand, ColTotal, ColReleases)
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if err.Error() != "missing column: Total, Releases" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRankedTopNHelpers(t *testing.T) {
	r := RankedTopN{{"A", 3}, {"B", math.NaN()}}
	if got := r.Poisoned(); len(got) != 1 || got[0] != "B" {
		t.Fatalf("Poisoned() = %v", got)
	}
	if got := r.Categories(); got[0] != "A" || got[1] != "B" {
		t.Fatalf("Categories() = %v", got)
	}
}
