package catalog

import (
	"context"

	"rxledger/internal/core/id"
	"rxledger/internal/core/types"
)

// ItemRepository defines persistence for items.
type ItemRepository interface {
	// GetByID retrieves an item scoped to a company. Returns NotFound if
	// the item does not exist or belongs to another company.
	GetByID(ctx context.Context, companyID, itemID id.ID) (*Item, error)

	// Update modifies an item with optimistic locking on version.
	Update(ctx context.Context, item *Item) error

	// ListIDsAfter returns up to limit item ids of a company, ordered by
	// id, strictly after the given id. Pass id.Nil() to start from the
	// beginning. Used for keyset-paged branch-wide refreshes.
	ListIDsAfter(ctx context.Context, companyID, afterID id.ID, limit int) ([]id.ID, error)

	// SearchWithStock is the reduced fallback lookup: name/sku/barcode
	// match over the catalog, optionally joined with the ledger stock
	// aggregate when a branch is given.
	SearchWithStock(ctx context.Context, companyID id.ID, branchID *id.ID, text string, limit int) ([]FallbackRow, error)
}

// FallbackRow is the catalog-side result of the reduced fallback search.
// Pricing and expiry fields are absent; the search service fills nulls.
type FallbackRow struct {
	Item
	CurrentStock types.Quantity `db:"current_stock"`
}

// BranchRepository defines persistence for branches.
type BranchRepository interface {
	GetByID(ctx context.Context, companyID, branchID id.ID) (*Branch, error)
	ListByCompany(ctx context.Context, companyID id.ID) ([]Branch, error)
}

// CompanyRepository exposes company pricing settings.
type CompanyRepository interface {
	GetSettings(ctx context.Context, companyID id.ID) (*CompanySettings, error)
}
