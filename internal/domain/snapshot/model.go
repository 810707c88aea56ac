// Package snapshot provides the denormalized per-(item, branch) search
// row, the engine that recomputes it, and the scope router that couples
// business writes to refreshes.
//
// A row exists for every (item, branch) pair of a company once the
// backfill has run; an absent row after that point is a defect, never a
// valid "no data" state. Search therefore trusts empty results.
package snapshot

import (
	"time"

	"rxledger/internal/core/id"
	"rxledger/internal/core/types"
	"rxledger/internal/domain/catalog"
)

// Row is one snapshot record, answering a branch-scoped item search
// with a single lookup. Only the Refresher writes it.
type Row struct {
	CompanyID id.ID `db:"company_id" json:"companyId"`
	ItemID    id.ID `db:"item_id" json:"itemId"`
	BranchID  id.ID `db:"branch_id" json:"branchId"`

	// Descriptive fields copied from the catalog.
	Name        string              `db:"name" json:"name"`
	SKU         string              `db:"sku" json:"sku"`
	Barcode     string              `db:"barcode" json:"barcode"`
	PackSize    string              `db:"pack_size" json:"packSize"`
	BaseUnit    string              `db:"base_unit" json:"baseUnit"`
	VATRate     types.Money         `db:"vat_rate" json:"vatRate"`
	VATCategory catalog.VATCategory `db:"vat_category" json:"vatCategory"`

	// Computed fields, fully rederived from the ledger and pricing
	// rules on every refresh. Nothing here is ever patched in place.
	CurrentStock      types.Quantity `db:"current_stock" json:"currentStock"`
	AverageCost       types.Money    `db:"average_cost" json:"averageCost"`
	LastPurchasePrice types.Money    `db:"last_purchase_price" json:"lastPurchasePrice"`
	SellingPrice      *types.Money   `db:"selling_price" json:"sellingPrice,omitempty"`
	MarginPercent     *types.Money   `db:"margin_percent" json:"marginPercent,omitempty"`
	NextExpiryDate    *time.Time     `db:"next_expiry_date" json:"nextExpiryDate,omitempty"`

	// SearchText is the lowercased match target: name, sku, barcode and
	// trade-name aliases.
	SearchText string `db:"search_text" json:"-"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Key identifies a snapshot row.
type Key struct {
	CompanyID id.ID
	BranchID  id.ID
	ItemID    id.ID
}
