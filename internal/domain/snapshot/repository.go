package snapshot

import (
	"context"

	"rxledger/internal/core/id"
)

// Repository defines persistence for snapshot rows.
type Repository interface {
	// Upsert writes the full row by its (company, item, branch) key.
	// Every refresh recomputes the complete row, so concurrent upserts
	// of the same key are commutative and last-write-wins is safe.
	Upsert(ctx context.Context, row *Row) error

	// GetByKey retrieves one row. Returns NotFound if absent.
	GetByKey(ctx context.Context, key Key) (*Row, error)

	// Search runs the primary branch-scoped query: fuzzy match against
	// search_text, exact-prefix matches ordered first, then name.
	Search(ctx context.Context, filter SearchFilter) ([]Row, error)
}

// SearchFilter parameterizes the primary snapshot query.
type SearchFilter struct {
	CompanyID id.ID
	BranchID  id.ID
	// Text is matched case-insensitively as a substring of search_text.
	Text  string
	Limit int
}
