package dataset

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiocharts/internal/core"
	"studiocharts/internal/sheets/memory"
)

func brandsTable() core.Table {
	return core.NewTable(core.BrandColumns, [][]string{
		{"Pixar", "15000000000", "26", "Incredibles 2", "1242805359"},
		{"Marvel Studios", "30000000000", "31", "Avengers: Endgame", "2797501328"},
		{"Broken", "n/a", "3", "Nothing", "0"},
		{"DreamWorks", "16000000000", "44", "Shrek 2", "935253524"},
	})
}

func moviesTable() core.Table {
	return core.NewTable(core.MovieColumns, [][]string{
		{"Universal", "2015", "1671.5", "Jurassic World", "Colin Trevorrow"},
		{"Disney", "2019", "2797.5", "Avengers: Endgame", "Anthony Russo"},
		{"Disney", "2015", "2068.2", "Star Wars: The Force Awakens", ""},
		{"", "2001", "974.8", "Orphan row", ""},
		{"Warner Bros.", "", "1342", "No year", ""},
		{"Warner Bros.", "2011", "1342.3", "Harry Potter 7B", "David Yates"},
	})
}

func TestBuild(t *testing.T) {
	d, err := Build(brandsTable(), moviesTable())
	require.NoError(t, err)

	assert.Equal(t, []string{"Disney", "Universal", "Warner Bros."}, d.Studios)
	assert.Equal(t, 2, d.Dropped)
	require.Len(t, d.Series, 3)
	assert.Equal(t, []int{2019, 2015}, d.Series[0].Years(), "row order is kept inside a series")

	lo, hi, ok := d.YearRange()
	assert.True(t, ok)
	assert.Equal(t, 2011, lo)
	assert.Equal(t, 2019, hi)
}

func TestBuildMissingColumns(t *testing.T) {
	movies := core.NewTable([]string{core.ColStudio, core.ColTitle}, nil)

	_, err := Build(brandsTable(), movies)

	require.ErrorIs(t, err, core.ErrMissingColumn)
	assert.Contains(t, err.Error(), core.ColYear)
}

func TestSeriesFor(t *testing.T) {
	d, err := Build(brandsTable(), moviesTable())
	require.NoError(t, err)

	all, err := d.SeriesFor(core.AllStudios)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	one, err := d.SeriesFor("Universal")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "Universal", one[0].Category)
	assert.Equal(t, 1, d.StudioIndex("Universal"))

	_, err = d.SeriesFor("Ghibli")
	assert.ErrorIs(t, err, ErrUnknownStudio)
	assert.Equal(t, -1, d.StudioIndex("Ghibli"))
}

func TestRankings(t *testing.T) {
	d, err := Build(brandsTable(), moviesTable())
	require.NoError(t, err)

	top := d.TopBrands(3)
	assert.Equal(t, []string{"Marvel Studios", "DreamWorks", "Pixar"}, top.Categories())

	all := d.TopBrands(10)
	require.Len(t, all, 4)
	assert.True(t, math.IsNaN(all[3].Total))

	studios := d.TopStudios(10)
	assert.Equal(t, "Disney", studios[0].Category)
	assert.InDelta(t, 2797.5+2068.2, studios[0].Total, 1e-9)

	rows := d.TopBrandRows(2)
	require.Len(t, rows, 2)
	assert.Equal(t, "Marvel Studios", rows[0].Brand)
	assert.Equal(t, 31.0, rows[0].Releases)
}

type gatedSource struct {
	brands, movies core.Table
	moviesStarted  chan struct{}
	brandsErr      error
}

func (g *gatedSource) ReadBrands(ctx context.Context) (core.Table, error) {
	select {
	case <-g.moviesStarted:
	case <-ctx.Done():
		return core.Table{}, ctx.Err()
	case <-time.After(5 * time.Second):
		return core.Table{}, errors.New("movies were never requested concurrently")
	}
	return g.brands, g.brandsErr
}

func (g *gatedSource) ReadMovies(context.Context) (core.Table, error) {
	close(g.moviesStarted)
	return g.movies, nil
}

func TestLoaderFetchesConcurrently(t *testing.T) {
	src := &gatedSource{brands: brandsTable(), movies: moviesTable(), moviesStarted: make(chan struct{})}
	l := NewLoader(src, 10, nil)

	d, err := l.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, uint64(1), d.Version)
}

func TestLoaderKeepsPreviousSnapshotOnFailure(t *testing.T) {
	store := memory.New(brandsTable(), moviesTable())
	l := NewLoader(store, 10, nil)

	_, err := l.Current()
	require.ErrorIs(t, err, ErrNotLoaded)

	first, err := l.Load(context.Background())
	require.NoError(t, err)

	require.NoError(t, store.ReplaceMovies(context.Background(), core.NewTable([]string{"Wrong"}, nil)))
	_, err = l.Load(context.Background())
	require.ErrorIs(t, err, core.ErrMissingColumn)

	cur, err := l.Current()
	require.NoError(t, err)
	assert.Same(t, first, cur)
}

func TestLoaderSourceError(t *testing.T) {
	src := &gatedSource{moviesStarted: make(chan struct{}), brandsErr: errors.New("boom")}
	l := NewLoader(src, 10, nil)

	_, err := l.Load(context.Background())

	assert.ErrorContains(t, err, "read brands: boom")
	_, err = l.Current()
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestLoaderNotifiesListeners(t *testing.T) {
	l := NewLoader(memory.New(brandsTable(), moviesTable()), 10, nil)

	var (
		mu       sync.Mutex
		versions []uint64
	)
	l.OnReload(func(d *Dataset) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, d.Version)
	})

	for i := 0; i < 2; i++ {
		_, err := l.Load(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []uint64{1, 2}, versions)
}
