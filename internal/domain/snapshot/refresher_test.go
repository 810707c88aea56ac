package snapshot

import (
	"context"
	"strings"
	"testing"
	"time"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/core/types"
	"rxledger/internal/domain/catalog"
	"rxledger/internal/domain/ledger"
	"rxledger/internal/domain/pricing"
)

// --- fakes shared by the snapshot package tests ---

type fakeItems struct {
	items map[id.ID]*catalog.Item
	ids   []id.ID
}

func (f *fakeItems) GetByID(_ context.Context, _ id.ID, itemID id.ID) (*catalog.Item, error) {
	if item, ok := f.items[itemID]; ok {
		cp := *item
		return &cp, nil
	}
	return nil, apperror.NewNotFound("item", itemID)
}

func (f *fakeItems) Update(_ context.Context, _ *catalog.Item) error { return nil }

func (f *fakeItems) ListIDsAfter(_ context.Context, _ id.ID, afterID id.ID, limit int) ([]id.ID, error) {
	var out []id.ID
	for _, v := range f.ids {
		if v.String() > afterID.String() {
			out = append(out, v)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeItems) SearchWithStock(_ context.Context, _ id.ID, _ *id.ID, _ string, _ int) ([]catalog.FallbackRow, error) {
	return nil, nil
}

type fakeBranches struct {
	branches map[id.ID]*catalog.Branch
}

func (f *fakeBranches) GetByID(_ context.Context, _ id.ID, branchID id.ID) (*catalog.Branch, error) {
	if b, ok := f.branches[branchID]; ok {
		return b, nil
	}
	return nil, apperror.NewNotFound("branch", branchID)
}

func (f *fakeBranches) ListByCompany(_ context.Context, _ id.ID) ([]catalog.Branch, error) {
	var out []catalog.Branch
	for _, b := range f.branches {
		out = append(out, *b)
	}
	return out, nil
}

type fakeCompanies struct {
	settings *catalog.CompanySettings
}

func (f *fakeCompanies) GetSettings(_ context.Context, _ id.ID) (*catalog.CompanySettings, error) {
	return f.settings, nil
}

type fakeLedger struct {
	stock        types.Quantity
	lastPurchase *types.Money
	lastOpening  *types.Money
	avg          *types.Money
	batches      []ledger.BatchBalance
}

func (f *fakeLedger) Insert(_ context.Context, _ []ledger.Entry) error { return nil }

func (f *fakeLedger) CurrentStock(_ context.Context, _ ledger.Key) (types.Quantity, error) {
	return f.stock, nil
}

func (f *fakeLedger) LastPurchaseCost(_ context.Context, _ ledger.Key) (*types.Money, error) {
	return f.lastPurchase, nil
}

func (f *fakeLedger) LastOpeningCost(_ context.Context, _ ledger.Key) (*types.Money, error) {
	return f.lastOpening, nil
}

func (f *fakeLedger) WeightedAverageCost(_ context.Context, _ ledger.Key) (*types.Money, error) {
	return f.avg, nil
}

func (f *fakeLedger) BatchBalances(_ context.Context, _ ledger.Key) ([]ledger.BatchBalance, error) {
	return f.batches, nil
}

func (f *fakeLedger) History(_ context.Context, _ ledger.Key, _ int) ([]ledger.Entry, error) {
	return nil, nil
}

type fakeRows struct {
	rows map[Key]*Row
}

func newFakeRows() *fakeRows {
	return &fakeRows{rows: make(map[Key]*Row)}
}

func (f *fakeRows) Upsert(_ context.Context, row *Row) error {
	cp := *row
	f.rows[Key{CompanyID: row.CompanyID, BranchID: row.BranchID, ItemID: row.ItemID}] = &cp
	return nil
}

func (f *fakeRows) GetByKey(_ context.Context, key Key) (*Row, error) {
	if row, ok := f.rows[key]; ok {
		return row, nil
	}
	return nil, apperror.NewNotFound("snapshot row", key.ItemID)
}

func (f *fakeRows) Search(_ context.Context, _ SearchFilter) ([]Row, error) {
	return nil, nil
}

// --- fixture helpers ---

func money(s string) types.Money { return types.MustMoney(s) }

func moneyPtr(s string) *types.Money {
	m := types.MustMoney(s)
	return &m
}

type fixture struct {
	companyID id.ID
	branchID  id.ID
	itemID    id.ID

	items     *fakeItems
	branches  *fakeBranches
	companies *fakeCompanies
	entries   *fakeLedger
	rows      *fakeRows

	refresher *Refresher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	companyID := id.New()
	branchID := id.New()
	itemID := id.New()

	items := &fakeItems{items: map[id.ID]*catalog.Item{
		itemID: {
			ID:          itemID,
			CompanyID:   companyID,
			Name:        "Paracetamol 500mg",
			SKU:         "PARA-500",
			Barcode:     "6291001234567",
			PackSize:    "20 tablets",
			BaseUnit:    "tablet",
			VATRate:     money("5"),
			VATCategory: catalog.VATStandard,
			Category:    "analgesic",
			DefaultCost: money("1.50"),
		},
	}}
	branches := &fakeBranches{branches: map[id.ID]*catalog.Branch{
		branchID: {ID: branchID, CompanyID: companyID, Code: "MAIN", Name: "Main Branch"},
	}}
	companies := &fakeCompanies{settings: &catalog.CompanySettings{
		CompanyID:            companyID,
		DefaultMarginPercent: money("25"),
		SnapshotEnabled:      true,
	}}
	entries := &fakeLedger{}
	rows := newFakeRows()

	resolver, err := pricing.NewResolver()
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	refresher := NewRefresher(items, branches, companies, entries, resolver, rows)
	refresher.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	return &fixture{
		companyID: companyID,
		branchID:  branchID,
		itemID:    itemID,
		items:     items,
		branches:  branches,
		companies: companies,
		entries:   entries,
		rows:      rows,
		refresher: refresher,
	}
}

func (f *fixture) refresh(t *testing.T) *Row {
	t.Helper()
	if err := f.refresher.Refresh(context.Background(), f.companyID, f.branchID, f.itemID); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	row, ok := f.rows.rows[Key{CompanyID: f.companyID, BranchID: f.branchID, ItemID: f.itemID}]
	if !ok {
		t.Fatal("no snapshot row written")
	}
	return row
}

// --- tests ---

func TestRefresh_CostPriority(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*fixture)
		wantSelling string
	}{
		{
			name: "last purchase wins over everything",
			setup: func(f *fixture) {
				f.entries.lastPurchase = moneyPtr("10")
				f.entries.lastOpening = moneyPtr("8")
				f.entries.avg = moneyPtr("9")
			},
			wantSelling: "12.5", // 10 * 1.25
		},
		{
			name: "opening balance when no purchase",
			setup: func(f *fixture) {
				f.entries.lastOpening = moneyPtr("8")
				f.entries.avg = moneyPtr("9")
			},
			wantSelling: "10", // 8 * 1.25
		},
		{
			name: "weighted average when no purchase or opening",
			setup: func(f *fixture) {
				f.entries.avg = moneyPtr("4")
			},
			wantSelling: "5", // 4 * 1.25
		},
		{
			name:        "item default cost as last resort",
			setup:       func(f *fixture) {},
			wantSelling: "1.875", // 1.50 * 1.25
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			row := f.refresh(t)
			if row.SellingPrice == nil {
				t.Fatal("expected a selling price")
			}
			if !row.SellingPrice.Equal(money(tt.wantSelling)) {
				t.Errorf("selling price = %s, want %s", row.SellingPrice, tt.wantSelling)
			}
		})
	}
}

func TestRefresh_NoCostMeansNullPrice(t *testing.T) {
	f := newFixture(t)
	f.items.items[f.itemID].DefaultCost = types.Zero()

	row := f.refresh(t)
	if row.SellingPrice != nil {
		t.Errorf("selling price = %s, want nil", row.SellingPrice)
	}
	// The margin itself still resolves; only the price is null.
	if row.MarginPercent == nil || !row.MarginPercent.Equal(money("25")) {
		t.Errorf("margin percent = %v, want 25", row.MarginPercent)
	}
}

func TestRefresh_NextExpirySkipsConsumedBatches(t *testing.T) {
	early := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	f := newFixture(t)
	f.entries.batches = []ledger.BatchBalance{
		{BatchNumber: "B1", ExpiryDate: &early, Remaining: 0},                              // consumed
		{BatchNumber: "B2", ExpiryDate: &late, Remaining: types.NewQuantityFromFloat64(5)}, // live
		{BatchNumber: "B3", ExpiryDate: nil, Remaining: types.NewQuantityFromFloat64(3)},   // no expiry
	}

	row := f.refresh(t)
	if row.NextExpiryDate == nil {
		t.Fatal("expected a next expiry date")
	}
	if !row.NextExpiryDate.Equal(late) {
		t.Errorf("next expiry = %s, want %s (consumed batch must not count)", row.NextExpiryDate, late)
	}
}

func TestRefresh_NoLiveBatchesMeansNoExpiry(t *testing.T) {
	early := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	f := newFixture(t)
	f.entries.batches = []ledger.BatchBalance{
		{BatchNumber: "B1", ExpiryDate: &early, Remaining: types.NewQuantityFromFloat64(-2)},
	}

	row := f.refresh(t)
	if row.NextExpiryDate != nil {
		t.Errorf("next expiry = %s, want nil", row.NextExpiryDate)
	}
}

func TestRefresh_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.entries.stock = types.NewQuantityFromFloat64(42)
	f.entries.lastPurchase = moneyPtr("10")

	first := *f.refresh(t)
	second := *f.refresh(t)

	if first.SearchText != second.SearchText {
		t.Errorf("search text changed between refreshes: %q vs %q", first.SearchText, second.SearchText)
	}
	if !first.SellingPrice.Equal(*second.SellingPrice) {
		t.Errorf("selling price changed between refreshes: %s vs %s", first.SellingPrice, second.SellingPrice)
	}
	if first.CurrentStock != second.CurrentStock {
		t.Errorf("stock changed between refreshes: %s vs %s", first.CurrentStock, second.CurrentStock)
	}
}

func TestRefresh_UnknownItemFailsWithoutWriting(t *testing.T) {
	f := newFixture(t)
	unknown := id.New()

	err := f.refresher.Refresh(context.Background(), f.companyID, f.branchID, unknown)
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if len(f.rows.rows) != 0 {
		t.Error("no row should be written for an unknown item")
	}
}

func TestRefresh_SearchTextIncludesAliases(t *testing.T) {
	f := newFixture(t)

	row := f.refresh(t)
	for _, want := range []string{"paracetamol 500mg", "para-500", "6291001234567", "panadol"} {
		if !strings.Contains(row.SearchText, want) {
			t.Errorf("search text %q missing %q", row.SearchText, want)
		}
	}
}
