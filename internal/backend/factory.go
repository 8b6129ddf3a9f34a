package backend

import (
	"context"
	"fmt"
	"os"

	"studiocharts/internal/adapters"
	"studiocharts/internal/log"
	"studiocharts/internal/sheets"
	gsheet "studiocharts/internal/sheets/google"
	"studiocharts/internal/sheets/memory"
	"studiocharts/internal/sheets/xlsx"
	"studiocharts/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentSource),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVBackend:
		return f.createCSVBackend(config), nil
	case XLSXBackend:
		return f.createXLSXBackend(config), nil
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createCSVBackend(config Config) *BackendResult {
	f.logger.Info("Initialized csv backend",
		"brands_path", config.BrandsPath,
		"movies_path", config.MoviesPath)

	return &BackendResult{Backend: memory.NewFromFiles(config.BrandsPath, config.MoviesPath)}
}

func (f *DefaultFactory) createXLSXBackend(config Config) *BackendResult {
	f.logger.Info("Initialized xlsx backend", "workbook_path", config.WorkbookPath)

	return &BackendResult{Backend: xlsx.New(config.WorkbookPath)}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	var seed sheets.TableReader
	if fileExists(config.BrandsPath) && fileExists(config.MoviesPath) {
		seed = memory.NewFromFiles(config.BrandsPath, config.MoviesPath)
	}
	adapter := adapters.NewSQLiteAdapter(repo, seed, f.logger)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"seed_enabled", seed != nil)

	return &BackendResult{
		Backend: adapter,
		History: adapter,
		Cleanup: adapter.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		BrandsRange:     config.GoogleBrandsRange,
		MoviesRange:     config.GoogleMoviesRange,
		OAuthClientFile: config.GoogleOAuthClientFile,
		OAuthTokenFile:  config.GoogleOAuthTokenFile,
		OAuthClientJSON: config.GoogleOAuthClientJSON,
		OAuthTokenJSON:  config.GoogleOAuthTokenJSON,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", config.GoogleSpreadsheetID)

	return &BackendResult{Backend: cli}, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
