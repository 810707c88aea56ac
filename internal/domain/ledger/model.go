// Package ledger provides the append-only stock movement log, the
// canonical source of quantity and cost history. Entries are never
// mutated or deleted; every derived value (balances, snapshot rows) is
// recomputed from them.
package ledger

import (
	"context"
	"time"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/core/types"
)

// TxnType classifies a stock movement.
type TxnType string

const (
	TxnPurchase       TxnType = "PURCHASE"
	TxnSale           TxnType = "SALE"
	TxnAdjustment     TxnType = "ADJUSTMENT"
	TxnTransferIn     TxnType = "TRANSFER_IN"
	TxnTransferOut    TxnType = "TRANSFER_OUT"
	TxnStockTake      TxnType = "STOCK_TAKE"
	TxnOpeningBalance TxnType = "OPENING_BALANCE"
)

// Entry is one immutable stock movement.
type Entry struct {
	ID          id.ID      `db:"id" json:"id"`
	CompanyID   id.ID      `db:"company_id" json:"companyId"`
	BranchID    id.ID      `db:"branch_id" json:"branchId"`
	ItemID      id.ID      `db:"item_id" json:"itemId"`
	BatchNumber string     `db:"batch_number" json:"batchNumber"`
	ExpiryDate  *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
	TxnType     TxnType    `db:"txn_type" json:"txnType"`

	// Quantity is a signed delta: positive for receipts, negative for issues.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	UnitCost  types.Money `db:"unit_cost" json:"unitCost"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
}

// Key identifies the (company, branch, item) a movement affects. The
// snapshot subsystem refreshes per key.
type Key struct {
	CompanyID id.ID
	BranchID  id.ID
	ItemID    id.ID
}

// Key returns the snapshot key of the entry.
func (e Entry) Key() Key {
	return Key{CompanyID: e.CompanyID, BranchID: e.BranchID, ItemID: e.ItemID}
}

// Validate checks entry invariants before posting.
func (e *Entry) Validate(ctx context.Context) error {
	if id.IsNil(e.CompanyID) || id.IsNil(e.BranchID) || id.IsNil(e.ItemID) {
		return apperror.NewValidation("company_id, branch_id and item_id are required")
	}
	if !isValidTxnType(e.TxnType) {
		return apperror.NewValidation("invalid transaction type").
			WithDetail("field", "txnType").
			WithDetail("value", string(e.TxnType))
	}
	if e.Quantity.IsZero() {
		return apperror.NewValidation("quantity delta cannot be zero")
	}
	if e.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost cannot be negative")
	}
	return nil
}

func isValidTxnType(t TxnType) bool {
	switch t {
	case TxnPurchase, TxnSale, TxnAdjustment, TxnTransferIn,
		TxnTransferOut, TxnStockTake, TxnOpeningBalance:
		return true
	}
	return false
}

// BatchBalance is the net remaining quantity of one (batch, expiry)
// group. Fully consumed batches have Remaining <= 0 and must not feed
// expiry resolution.
type BatchBalance struct {
	BatchNumber string         `db:"batch_number"`
	ExpiryDate  *time.Time     `db:"expiry_date"`
	Remaining   types.Quantity `db:"remaining"`
}
