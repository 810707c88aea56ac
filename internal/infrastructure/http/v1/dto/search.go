package dto

import (
	"time"

	"rxledger/internal/core/types"
	"rxledger/internal/domain/search"
)

// SearchRequest binds item search query parameters.
type SearchRequest struct {
	Text           string `form:"q" binding:"required"`
	BranchID       string `form:"branch_id"`
	Limit          int    `form:"limit"`
	IncludePricing bool   `form:"include_pricing"`
}

// SearchItem is one search result row. Nil pricing and expiry fields
// mean the answering source could not provide them.
type SearchItem struct {
	ItemID            string         `json:"itemId"`
	BranchID          *string        `json:"branchId,omitempty"`
	Name              string         `json:"name"`
	SKU               string         `json:"sku"`
	Barcode           string         `json:"barcode"`
	PackSize          string         `json:"packSize"`
	BaseUnit          string         `json:"baseUnit"`
	VATRate           types.Money    `json:"vatRate"`
	VATCategory       string         `json:"vatCategory"`
	CurrentStock      types.Quantity `json:"currentStock"`
	AverageCost       *types.Money   `json:"averageCost,omitempty"`
	LastPurchasePrice *types.Money   `json:"lastPurchasePrice,omitempty"`
	SellingPrice      *types.Money   `json:"sellingPrice,omitempty"`
	MarginPercent     *types.Money   `json:"marginPercent,omitempty"`
	NextExpiryDate    *time.Time     `json:"nextExpiryDate,omitempty"`
}

// SearchResponse wraps search results with their source.
type SearchResponse struct {
	Source string       `json:"source"`
	Count  int          `json:"count"`
	Items  []SearchItem `json:"items"`
}

// NewSearchResponse maps a domain result.
func NewSearchResponse(res *search.Result) SearchResponse {
	items := make([]SearchItem, 0, len(res.Items))
	for _, it := range res.Items {
		item := SearchItem{
			ItemID:            it.ItemID.String(),
			Name:              it.Name,
			SKU:               it.SKU,
			Barcode:           it.Barcode,
			PackSize:          it.PackSize,
			BaseUnit:          it.BaseUnit,
			VATRate:           it.VATRate,
			VATCategory:       string(it.VATCategory),
			CurrentStock:      it.CurrentStock,
			AverageCost:       it.AverageCost,
			LastPurchasePrice: it.LastPurchasePrice,
			SellingPrice:      it.SellingPrice,
			MarginPercent:     it.MarginPercent,
			NextExpiryDate:    it.NextExpiryDate,
		}
		if it.BranchID != nil {
			s := it.BranchID.String()
			item.BranchID = &s
		}
		items = append(items, item)
	}
	return SearchResponse{
		Source: string(res.Source),
		Count:  len(items),
		Items:  items,
	}
}
