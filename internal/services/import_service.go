package services

import (
	"context"
	"errors"
	"fmt"

	"studiocharts/internal/amqp"
	"studiocharts/internal/core"
	"studiocharts/internal/dataset"
	"studiocharts/internal/log"
	"studiocharts/internal/sheets"
)

type (
	// ImportRecorder keeps the import history.
	ImportRecorder interface {
		RecordImport(ctx context.Context, source string, brandRows, movieRows int) (int64, error)
	}

	// ReloadPublisher announces a data change to other instances.
	ReloadPublisher interface {
		PublishReload(ctx context.Context, msg *amqp.ReloadMessage) error
	}

	// Reloader rebuilds the in-process dataset.
	Reloader interface {
		Load(ctx context.Context) (*dataset.Dataset, error)
	}
)

// ImportResult describes a finished import.
type ImportResult struct {
	ImportID  int64
	BrandRows int
	MovieRows int
	// Version is the local dataset version after reload, 0 without a Reloader.
	Version uint64
}

// ImportService replaces the stored tables and tells every instance to
// reload. Recorder, Publisher and Reloader are optional.
type ImportService struct {
	writer    sheets.TableWriter
	recorder  ImportRecorder
	publisher ReloadPublisher
	reloader  Reloader
	logger    *log.Logger
}

func NewImportService(writer sheets.TableWriter, recorder ImportRecorder, publisher ReloadPublisher, reloader Reloader, logger *log.Logger) *ImportService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ImportService{
		writer:    writer,
		recorder:  recorder,
		publisher: publisher,
		reloader:  reloader,
		logger:    logger.WithComponent(log.ComponentApp),
	}
}

// Import validates both tables, stores them and triggers reloads. Nothing is
// written when either header is missing a required column. Once the tables
// are stored, history, reload and publish failures are logged but do not fail
// the import.
func (s *ImportService) Import(ctx context.Context, source string, brands, movies core.Table) (ImportResult, error) {
	if s.writer == nil {
		return ImportResult{}, errors.New("no writable backend configured")
	}
	if _, err := dataset.Build(brands, movies); err != nil {
		return ImportResult{}, fmt.Errorf("validate import: %w", err)
	}

	if err := s.writer.ReplaceBrands(ctx, brands); err != nil {
		return ImportResult{}, fmt.Errorf("store brands: %w", err)
	}
	if err := s.writer.ReplaceMovies(ctx, movies); err != nil {
		return ImportResult{}, fmt.Errorf("store movies: %w", err)
	}

	res := ImportResult{BrandRows: len(brands.Records), MovieRows: len(movies.Records)}
	s.logger.InfoContext(ctx, "Tables imported",
		log.FieldOperation, log.OpImport,
		log.FieldSource, source,
		"brands", res.BrandRows,
		"movies", res.MovieRows)

	if s.recorder != nil {
		id, err := s.recorder.RecordImport(ctx, source, res.BrandRows, res.MovieRows)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to record import", log.FieldError, err)
		}
		res.ImportID = id
	}

	if s.reloader != nil {
		d, err := s.reloader.Load(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "Local reload after import failed", log.FieldError, err)
		} else {
			res.Version = d.Version
		}
	}

	if err := s.publishReload(ctx, res.ImportID, source); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish reload message", log.FieldError, err)
	}
	return res, nil
}

func (s *ImportService) publishReload(ctx context.Context, id int64, source string) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping reload message")
		return nil
	}
	return s.publisher.PublishReload(ctx, amqp.NewReloadMessage(id, source, "import"))
}

// Close releases the publisher when it owns a connection.
func (s *ImportService) Close() error {
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close import service: %w", err)
		}
	}
	return nil
}
