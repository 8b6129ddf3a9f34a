// Command studiocharts-render writes the static charts and the ranking
// workbook of the configured backend into a directory.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"studiocharts/internal/chart"
	"studiocharts/internal/cli"
	"studiocharts/internal/core"
	"studiocharts/internal/dataset"
	"studiocharts/internal/export"
	"studiocharts/internal/log"
)

func main() {
	outDir := flag.String("out", "charts", "output directory")
	studio := flag.String("studio", core.AllStudios, "studio shown in releases.png")
	topN := flag.Int("n", 0, "ranking length, TOP_N when zero")
	flag.Parse()

	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentChart)
	n := *topN
	if n <= 0 {
		n = cfg.TopN
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res := cli.InitBackend(ctx, cfg, logger)
	defer res.Close()

	d, err := dataset.NewLoader(res.Backend, n, logger).Load(ctx)
	if err != nil {
		logger.Error("Failed to load dataset", log.FieldOperation, log.OpLoad, log.FieldError, err)
		os.Exit(1)
	}
	series, err := d.SeriesFor(*studio)
	if err != nil {
		logger.Error("Unknown studio", log.FieldStudio, *studio, log.FieldError, err)
		os.Exit(1)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Error("Failed to create output directory", log.FieldError, err)
		os.Exit(1)
	}

	lo, hi, ok := d.YearRange()
	if !ok {
		lo, hi = 1, 0
	}
	renders := []struct {
		name   string
		render func(*bytes.Buffer) error
	}{
		{"top-brands.png", func(b *bytes.Buffer) error {
			return chart.BarPNG(b, fmt.Sprintf("Top %d productoras por ganancias totales", n), d.TopBrands(n))
		}},
		{"bubbles.png", func(b *bytes.Buffer) error { return chart.BubblePNG(b, d.TopBrandRows(n)) }},
		{"releases.png", func(b *bytes.Buffer) error {
			return chart.ScatterPNG(b, series, chart.StudioColors(d.Studios), lo, hi)
		}},
		{"top.xlsx", func(b *bytes.Buffer) error { return export.Write(b, d, n) }},
	}

	failed := false
	for _, r := range renders {
		start := time.Now()
		var buf bytes.Buffer
		err := r.render(&buf)
		if errors.Is(err, chart.ErrNoData) {
			logger.Warn("Nothing to render", log.FieldChart, r.name)
			continue
		}
		if err == nil {
			err = os.WriteFile(filepath.Join(*outDir, r.name), buf.Bytes(), 0o644)
		}
		if err != nil {
			logger.Error("Render failed", log.FieldChart, r.name, log.FieldError, err)
			failed = true
			continue
		}
		logger.Info("Rendered",
			log.FieldOperation, log.OpRender,
			log.FieldChart, r.name,
			log.FieldDatasetVersion, d.Version,
			log.FieldDuration, time.Since(start),
			"bytes", buf.Len())
	}
	if failed {
		os.Exit(1)
	}
}
