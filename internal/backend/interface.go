package backend

import (
	"context"

	"studiocharts/internal/sheets"
	"studiocharts/internal/storage"
)

// Backend serves and replaces both tables.
type Backend interface {
	sheets.TableReader
	sheets.TableWriter
}

// History records imports and reports the most recent one. Only the sqlite
// backend keeps one.
type History interface {
	RecordImport(ctx context.Context, source string, brandRows, movieRows int) (int64, error)
	LatestImport(ctx context.Context) (storage.Import, error)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance, the optional import history
// and an optional cleanup function.
type BackendResult struct {
	Backend Backend
	History History
	Cleanup CleanupFunc
}

// Close runs the cleanup function when there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// csv backend, and seed files for an empty sqlite database
	BrandsPath string
	MoviesPath string

	// xlsx backend
	WorkbookPath string

	// sqlite backend
	SQLiteDBPath string

	// Google Sheets backend
	GoogleSpreadsheetID   string
	GoogleBrandsRange     string
	GoogleMoviesRange     string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenJSON  string
}

// BackendType represents the type of backend
type BackendType string

const (
	CSVBackend    BackendType = "csv"
	XLSXBackend   BackendType = "xlsx"
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case CSVBackend, XLSXBackend, SQLiteBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
