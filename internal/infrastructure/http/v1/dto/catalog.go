package dto

import (
	"rxledger/internal/core/types"
	"rxledger/internal/domain/catalog"
)

// UpdateItemRequest carries a descriptive item edit. Version enables
// optimistic locking; a stale version is rejected with a conflict.
type UpdateItemRequest struct {
	Name           string       `json:"name" binding:"required"`
	SKU            string       `json:"sku"`
	Barcode        string       `json:"barcode"`
	PackSize       string       `json:"packSize"`
	BaseUnit       string       `json:"baseUnit"`
	VATRate        types.Money  `json:"vatRate"`
	VATCategory    string       `json:"vatCategory"`
	Category       string       `json:"category"`
	MarginTier     *string      `json:"marginTier"`
	MarginOverride *types.Money `json:"marginOverride"`
	DefaultCost    types.Money  `json:"defaultCost"`
	Version        int          `json:"version" binding:"required"`
}

// Apply copies the request onto an item loaded from storage.
func (r *UpdateItemRequest) Apply(item *catalog.Item) {
	item.Name = r.Name
	item.SKU = r.SKU
	item.Barcode = r.Barcode
	item.PackSize = r.PackSize
	item.BaseUnit = r.BaseUnit
	item.VATRate = r.VATRate
	item.VATCategory = catalog.VATCategory(r.VATCategory)
	item.Category = r.Category
	item.MarginTier = r.MarginTier
	item.MarginOverride = r.MarginOverride
	item.DefaultCost = r.DefaultCost
	item.Version = r.Version
}

// SetMarginRequest updates a company or tier margin percent.
type SetMarginRequest struct {
	MarginPercent types.Money `json:"marginPercent"`
}
