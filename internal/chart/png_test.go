package chart

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiocharts/internal/core"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestBarPNG(t *testing.T) {
	top := core.RankedTopN{
		{Category: "Marvel Studios", Total: 30e9},
		{Category: "Pixar", Total: 15e9},
		{Category: "Broken", Total: math.NaN()},
	}
	var buf bytes.Buffer

	require.NoError(t, BarPNG(&buf, "Top brands", top))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestBarPNGNoData(t *testing.T) {
	var buf bytes.Buffer
	err := BarPNG(&buf, "Top brands", core.RankedTopN{{Category: "Broken", Total: math.NaN()}})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestBubblePNG(t *testing.T) {
	rows := []core.BrandRow{
		{Brand: "Marvel Studios", Total: 30e9, Releases: 31, LifetimeGross: 858373000},
		{Brand: "Pixar", Total: 15e9, Releases: 26, LifetimeGross: 608581744},
		{Brand: "Broken", Total: math.NaN(), Releases: 3},
	}
	var buf bytes.Buffer

	require.NoError(t, BubblePNG(&buf, rows))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestScatterPNG(t *testing.T) {
	series := []core.Series{
		{Category: "Disney", Points: []core.TimeSeriesPoint{
			{Category: "Disney", Year: 2015, Value: 2068.2},
			{Category: "Disney", Year: 2019, Value: 2797.5},
		}},
		{Category: "Universal", Points: []core.TimeSeriesPoint{
			{Category: "Universal", Year: 2015, Value: 1671.5},
		}},
	}
	colors := StudioColors([]string{"Disney", "Universal"})
	var buf bytes.Buffer

	require.NoError(t, ScatterPNG(&buf, series, colors, 2015, 2019))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	assert.ErrorIs(t, ScatterPNG(&bytes.Buffer{}, nil, colors, 1, 0), ErrNoData)
}
