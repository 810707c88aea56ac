package dto

import (
	"time"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/core/types"
	"rxledger/internal/domain/ledger"
)

// LedgerEntryRequest is one movement line of a posting.
type LedgerEntryRequest struct {
	BranchID    string         `json:"branchId" binding:"required"`
	ItemID      string         `json:"itemId" binding:"required"`
	BatchNumber string         `json:"batchNumber"`
	ExpiryDate  *time.Time     `json:"expiryDate"`
	TxnType     string         `json:"txnType" binding:"required"`
	Quantity    types.Quantity `json:"quantity"`
	UnitCost    types.Money    `json:"unitCost"`
}

// PostLedgerRequest is a business posting: one or more movement lines
// committed atomically with their snapshot refreshes.
type PostLedgerRequest struct {
	Reason  string               `json:"reason"`
	Entries []LedgerEntryRequest `json:"entries" binding:"required,min=1"`
}

// ToEntries converts the request into domain entries.
func (r *PostLedgerRequest) ToEntries(companyID id.ID) ([]ledger.Entry, error) {
	entries := make([]ledger.Entry, 0, len(r.Entries))
	for i, e := range r.Entries {
		branchID, err := id.Parse(e.BranchID)
		if err != nil {
			return nil, apperror.NewValidation("invalid branch id").
				WithDetail("line", i).WithDetail("value", e.BranchID)
		}
		itemID, err := id.Parse(e.ItemID)
		if err != nil {
			return nil, apperror.NewValidation("invalid item id").
				WithDetail("line", i).WithDetail("value", e.ItemID)
		}
		entries = append(entries, ledger.Entry{
			CompanyID:   companyID,
			BranchID:    branchID,
			ItemID:      itemID,
			BatchNumber: e.BatchNumber,
			ExpiryDate:  e.ExpiryDate,
			TxnType:     ledger.TxnType(e.TxnType),
			Quantity:    e.Quantity,
			UnitCost:    e.UnitCost,
		})
	}
	return entries, nil
}

// PostLedgerResponse acknowledges a posting.
type PostLedgerResponse struct {
	EntryIDs []string `json:"entryIds"`
	Posted   int      `json:"posted"`
}

// LedgerHistoryResponse lists recent movements of a key.
type LedgerHistoryResponse struct {
	Entries []ledger.Entry `json:"entries"`
}
