package snapshot

import (
	"context"
	"fmt"
	"time"

	"rxledger/internal/core/id"
	"rxledger/internal/core/types"
	"rxledger/internal/domain/catalog"
	"rxledger/internal/domain/ledger"
	"rxledger/internal/domain/pricing"
)

// Refresher is the snapshot engine: it derives one full row from ledger,
// catalog and pricing state and upserts it. The same engine serves
// synchronous in-transaction refreshes, background chunk processing and
// the backfill tool, so cost, margin and expiry resolution can never
// diverge between paths.
type Refresher struct {
	items     catalog.ItemRepository
	branches  catalog.BranchRepository
	companies catalog.CompanyRepository
	entries   ledger.Repository
	margins   *pricing.Resolver
	rows      Repository

	// now is swappable for tests.
	now func() time.Time
}

// NewRefresher creates the refresh engine.
func NewRefresher(
	items catalog.ItemRepository,
	branches catalog.BranchRepository,
	companies catalog.CompanyRepository,
	entries ledger.Repository,
	margins *pricing.Resolver,
	rows Repository,
) *Refresher {
	return &Refresher{
		items:     items,
		branches:  branches,
		companies: companies,
		entries:   entries,
		margins:   margins,
		rows:      rows,
		now:       time.Now,
	}
}

// Refresh recomputes and upserts the snapshot row for one key. Fails
// with NotFound if the item or branch does not resolve under the
// company. Idempotent: unchanged inputs produce an identical row except
// updated_at.
func (r *Refresher) Refresh(ctx context.Context, companyID, branchID, itemID id.ID) error {
	item, err := r.items.GetByID(ctx, companyID, itemID)
	if err != nil {
		return err
	}
	if _, err := r.branches.GetByID(ctx, companyID, branchID); err != nil {
		return err
	}
	settings, err := r.companies.GetSettings(ctx, companyID)
	if err != nil {
		return fmt.Errorf("load company settings: %w", err)
	}

	key := ledger.Key{CompanyID: companyID, BranchID: branchID, ItemID: itemID}

	stock, err := r.entries.CurrentStock(ctx, key)
	if err != nil {
		return fmt.Errorf("current stock: %w", err)
	}

	lastPurchase, err := r.entries.LastPurchaseCost(ctx, key)
	if err != nil {
		return fmt.Errorf("last purchase cost: %w", err)
	}
	avgCost, err := r.entries.WeightedAverageCost(ctx, key)
	if err != nil {
		return fmt.Errorf("weighted average cost: %w", err)
	}

	cost, err := r.resolveCost(ctx, key, item, lastPurchase, avgCost)
	if err != nil {
		return err
	}

	marginPercent := r.margins.ResolveMarginPercent(ctx, item, settings)
	sellingPrice := pricing.SellingPrice(cost, marginPercent)

	nextExpiry, err := r.resolveNextExpiry(ctx, key)
	if err != nil {
		return err
	}

	row := &Row{
		CompanyID:   companyID,
		ItemID:      itemID,
		BranchID:    branchID,
		Name:        item.Name,
		SKU:         item.SKU,
		Barcode:     item.Barcode,
		PackSize:    item.PackSize,
		BaseUnit:    item.BaseUnit,
		VATRate:     item.VATRate,
		VATCategory: item.VATCategory,

		CurrentStock:      stock,
		AverageCost:       moneyOrZero(avgCost),
		LastPurchasePrice: moneyOrZero(lastPurchase),
		SellingPrice:      sellingPrice,
		MarginPercent:     &marginPercent,
		NextExpiryDate:    nextExpiry,
		SearchText:        BuildSearchText(item.Name, item.SKU, item.Barcode),
		UpdatedAt:         r.now().UTC(),
	}

	if err := r.rows.Upsert(ctx, row); err != nil {
		return fmt.Errorf("upsert snapshot row: %w", err)
	}

	return nil
}

// resolveCost walks the fixed priority chain: last purchase, last
// opening balance, weighted average, item default. An empty chain
// resolves to zero and the caller turns the selling price into null.
func (r *Refresher) resolveCost(ctx context.Context, key ledger.Key, item *catalog.Item, lastPurchase, avgCost *types.Money) (types.Money, error) {
	if lastPurchase != nil {
		return *lastPurchase, nil
	}

	opening, err := r.entries.LastOpeningCost(ctx, key)
	if err != nil {
		return types.Zero(), fmt.Errorf("last opening cost: %w", err)
	}
	if opening != nil {
		return *opening, nil
	}

	if avgCost != nil {
		return *avgCost, nil
	}

	if item.DefaultCost.IsPositive() {
		return item.DefaultCost, nil
	}

	return types.Zero(), nil
}

// resolveNextExpiry returns the earliest expiry date among batches with
// strictly positive remaining quantity. Consumed batches never count.
func (r *Refresher) resolveNextExpiry(ctx context.Context, key ledger.Key) (*time.Time, error) {
	batches, err := r.entries.BatchBalances(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("batch balances: %w", err)
	}

	var next *time.Time
	for _, b := range batches {
		if !b.Remaining.IsPositive() || b.ExpiryDate == nil {
			continue
		}
		if next == nil || b.ExpiryDate.Before(*next) {
			d := *b.ExpiryDate
			next = &d
		}
	}
	return next, nil
}

func moneyOrZero(m *types.Money) types.Money {
	if m == nil {
		return types.Zero()
	}
	return *m
}
