package sheets

import (
	"context"

	"studiocharts/internal/core"
)

// Ports for outbound adapters.
type (
	// BrandReader returns the Schema A table (one row per brand).
	BrandReader interface {
		ReadBrands(ctx context.Context) (core.Table, error)
	}

	// MovieReader returns the Schema B table (one row per title).
	MovieReader interface {
		ReadMovies(ctx context.Context) (core.Table, error)
	}

	// TableReader reads both schemas.
	TableReader interface {
		BrandReader
		MovieReader
	}

	// TableWriter replaces the stored content of each schema.
	TableWriter interface {
		ReplaceBrands(ctx context.Context, t core.Table) error
		ReplaceMovies(ctx context.Context, t core.Table) error
	}
)
