package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"studiocharts/internal/core"
	"studiocharts/internal/sheets"
)

func TestMemoryStoreReplaceAndRead(t *testing.T) {
	ctx := context.Background()
	s := New(core.Table{}, core.Table{})

	brands := core.NewTable(core.BrandColumns, [][]string{{"Pixar", "15000000000", "26", "Incredibles 2", "1242805359"}})
	if err := s.ReplaceBrands(ctx, brands); err != nil {
		t.Fatalf("replace: %v", err)
	}
	brands.Records[0][core.ColBrand] = "mutated"

	got, err := s.ReadBrands(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Records) != 1 || got.Records[0][core.ColBrand] != "Pixar" {
		t.Fatalf("unexpected brands: %+v", got.Records)
	}

	got.Records[0][core.ColBrand] = "mutated again"
	again, _ := s.ReadBrands(ctx)
	if again.Records[0][core.ColBrand] != "Pixar" {
		t.Fatalf("read must return a copy")
	}
}

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return path
	}
	brandsPath := mustWrite("brand.csv", "Brand,Total,Releases,#1 Release,Lifetime Gross\nPixar,15000000000,26,Incredibles 2,1242805359\n\n")
	moviesPath := mustWrite("movies.csv", "Productora,Año de estreno,Recaudacion mundial (Millones) (USD),Película,Director\nDisney,2019,2797.5,\"Avengers: Endgame\",\n")

	s := NewFromFiles(brandsPath, moviesPath)

	brands, err := s.ReadBrands(context.Background())
	if err != nil {
		t.Fatalf("read brands: %v", err)
	}
	if len(brands.Records) != 1 || brands.Records[0][core.ColTopRelease] != "Incredibles 2" {
		t.Fatalf("unexpected brands: %+v", brands.Records)
	}

	movies, err := s.ReadMovies(context.Background())
	if err != nil {
		t.Fatalf("read movies: %v", err)
	}
	if movies.Records[0][core.ColTitle] != "Avengers: Endgame" {
		t.Fatalf("unexpected movies: %+v", movies.Records)
	}

	// Files are re-read on each call.
	mustWrite("brand.csv", "Brand,Total\nA,1\nB,2\n")
	brands, _ = s.ReadBrands(context.Background())
	if len(brands.Records) != 2 {
		t.Fatalf("expected fresh read, got %d records", len(brands.Records))
	}
}

func TestFileBackedReplaceRewritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brand.csv")
	s := NewFromFiles(path, filepath.Join(dir, "movies.csv"))

	table := core.NewTable(core.BrandColumns, [][]string{{"Marvel", "30000000000", "31", "Avengers: Endgame", "2797501328"}})
	if err := s.ReplaceBrands(context.Background(), table); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := sheets.ReadCSVFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got.Records) != 1 || got.Records[0][core.ColReleases] != "31" {
		t.Fatalf("unexpected content: %+v", got.Records)
	}
}

func TestMissingFile(t *testing.T) {
	s := NewFromFiles(filepath.Join(t.TempDir(), "nope.csv"), "")
	if _, err := s.ReadBrands(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
