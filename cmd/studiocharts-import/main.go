// Command studiocharts-import replaces the configured backend's tables with
// the contents of two CSV files or one workbook, then tells running servers
// to reload.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"studiocharts/internal/amqp"
	"studiocharts/internal/cli"
	"studiocharts/internal/core"
	"studiocharts/internal/log"
	"studiocharts/internal/services"
	"studiocharts/internal/sheets"
	"studiocharts/internal/sheets/xlsx"
)

func main() {
	brandsPath := flag.String("brands", "", "brand ranking CSV")
	moviesPath := flag.String("movies", "", "top grossing releases CSV")
	workbookPath := flag.String("workbook", "", "workbook with brand and peliculas sheets, instead of -brands and -movies")
	flag.Parse()

	cfg, logger := cli.LoadAndValidateConfig()

	source, brands, movies, err := readInput(*brandsPath, *moviesPath, *workbookPath)
	if err != nil {
		logger.Error("Failed to read import input", log.FieldOperation, log.OpImport, log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res := cli.InitBackend(ctx, cfg, logger)
	defer res.Close()

	var publisher services.ReloadPublisher
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, servers will not be notified", log.FieldError, err)
		} else {
			publisher = c
		}
	}

	svc := services.NewImportService(res.Backend, res.History, publisher, nil, logger)
	defer svc.Close()

	result, err := svc.Import(ctx, source, brands, movies)
	if err != nil {
		logger.Error("Import failed", log.FieldOperation, log.OpImport, log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Import complete",
		log.FieldSource, source,
		"backend", cfg.DataBackend,
		"import_id", result.ImportID,
		"brands", result.BrandRows,
		"movies", result.MovieRows)
}

func readInput(brandsPath, moviesPath, workbookPath string) (source string, brands, movies core.Table, err error) {
	if workbookPath != "" {
		f, err := os.Open(workbookPath)
		if err != nil {
			return "", core.Table{}, core.Table{}, err
		}
		defer f.Close()
		brands, movies, err = xlsx.Parse(f)
		return "xlsx", brands, movies, err
	}

	if brandsPath == "" || moviesPath == "" {
		return "", core.Table{}, core.Table{}, fmt.Errorf("either -workbook or both -brands and -movies are required")
	}
	if brands, err = sheets.ReadCSVFile(brandsPath); err != nil {
		return "", core.Table{}, core.Table{}, fmt.Errorf("brands: %w", err)
	}
	if movies, err = sheets.ReadCSVFile(moviesPath); err != nil {
		return "", core.Table{}, core.Table{}, fmt.Errorf("movies: %w", err)
	}
	return "csv", brands, movies, nil
}
