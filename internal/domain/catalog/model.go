// Package catalog provides the descriptive side of the pharmacy domain:
// items, branches, and per-company pricing settings. The snapshot
// refresher reads from here; it never writes back.
package catalog

import (
	"context"
	"time"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/core/types"
)

// VATCategory groups items for tax reporting.
type VATCategory string

const (
	VATStandard VATCategory = "standard"
	VATReduced  VATCategory = "reduced"
	VATExempt   VATCategory = "exempt"
)

// Item is a sellable pharmacy product.
type Item struct {
	ID        id.ID  `db:"id" json:"id"`
	CompanyID id.ID  `db:"company_id" json:"companyId"`
	Name      string `db:"name" json:"name"`
	SKU       string `db:"sku" json:"sku"`
	Barcode   string `db:"barcode" json:"barcode"`
	PackSize  string `db:"pack_size" json:"packSize"`
	BaseUnit  string `db:"base_unit" json:"baseUnit"`

	VATRate     types.Money `db:"vat_rate" json:"vatRate"`
	VATCategory VATCategory `db:"vat_category" json:"vatCategory"`

	// Category feeds the tier-mapping rules when no explicit tier is set.
	Category string `db:"category" json:"category"`

	// MarginTier is the explicit pricing tier, if assigned.
	MarginTier *string `db:"margin_tier" json:"marginTier,omitempty"`

	// MarginOverride is an item-level margin percent that wins over any
	// tier or company default.
	MarginOverride *types.Money `db:"margin_override" json:"marginOverride,omitempty"`

	// DefaultCost is the last-resort cost when the ledger resolves nothing.
	DefaultCost types.Money `db:"default_cost" json:"defaultCost"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Validate checks item invariants before persistence.
func (i *Item) Validate(ctx context.Context) error {
	if i.Name == "" {
		return apperror.NewValidation("item name is required").WithDetail("field", "name")
	}
	if id.IsNil(i.CompanyID) {
		return apperror.NewValidation("company_id is required").WithDetail("field", "companyId")
	}
	if i.VATRate.IsNegative() {
		return apperror.NewValidation("vat rate cannot be negative").WithDetail("field", "vatRate")
	}
	if i.DefaultCost.IsNegative() {
		return apperror.NewValidation("default cost cannot be negative").WithDetail("field", "defaultCost")
	}
	return nil
}

// Branch is a pharmacy location of a company.
type Branch struct {
	ID        id.ID     `db:"id" json:"id"`
	CompanyID id.ID     `db:"company_id" json:"companyId"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// TierRule maps an item to a pricing tier via a CEL expression evaluated
// against the item's attributes. Rules run in priority order; the first
// match wins.
type TierRule struct {
	Priority   int    `db:"priority" json:"priority"`
	Expression string `db:"expression" json:"expression"`
	Tier       string `db:"tier" json:"tier"`
}

// CompanySettings holds the pricing configuration of one company plus
// the per-tenant snapshot routing flag passed into search calls.
type CompanySettings struct {
	CompanyID            id.ID
	DefaultMarginPercent types.Money
	// TierDefaults maps tier name to margin percent.
	TierDefaults map[string]types.Money
	TierRules    []TierRule
	// SnapshotEnabled routes branch-scoped search through the snapshot
	// when true. Carried here so the search service receives it as an
	// explicit argument, never from ambient global state.
	SnapshotEnabled bool
}
