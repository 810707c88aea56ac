package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/core/types"
	"rxledger/internal/domain/catalog"
	"rxledger/internal/domain/snapshot"
)

type fakeRows struct {
	rows    []snapshot.Row
	err     error
	calls   int
	filters []snapshot.SearchFilter
}

func (f *fakeRows) Upsert(_ context.Context, _ *snapshot.Row) error { return nil }

func (f *fakeRows) GetByKey(_ context.Context, _ snapshot.Key) (*snapshot.Row, error) {
	return nil, apperror.NewNotFound("snapshot row", "none")
}

func (f *fakeRows) Search(_ context.Context, filter snapshot.SearchFilter) ([]snapshot.Row, error) {
	f.calls++
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeItems struct {
	rows  []catalog.FallbackRow
	err   error
	calls int
}

func (f *fakeItems) GetByID(_ context.Context, _, itemID id.ID) (*catalog.Item, error) {
	return nil, apperror.NewNotFound("item", itemID)
}

func (f *fakeItems) Update(_ context.Context, _ *catalog.Item) error { return nil }

func (f *fakeItems) ListIDsAfter(_ context.Context, _, _ id.ID, _ int) ([]id.ID, error) {
	return nil, nil
}

func (f *fakeItems) SearchWithStock(_ context.Context, _ id.ID, _ *id.ID, _ string, _ int) ([]catalog.FallbackRow, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func snapshotRow(itemID id.ID) snapshot.Row {
	price := types.MustMoney("12.50")
	margin := types.MustMoney("25")
	expiry := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	return snapshot.Row{
		ItemID:            itemID,
		Name:              "Panadol Extra",
		SKU:               "PAN-EX",
		Barcode:           "555",
		VATRate:           types.MustMoney("5"),
		VATCategory:       catalog.VATStandard,
		CurrentStock:      types.NewQuantityFromFloat64(30),
		AverageCost:       types.MustMoney("9.80"),
		LastPurchasePrice: types.MustMoney("10"),
		SellingPrice:      &price,
		MarginPercent:     &margin,
		NextExpiryDate: func() *time.Time {
			d := expiry
			return &d
		}(),
	}
}

func fallbackRow(itemID id.ID) catalog.FallbackRow {
	return catalog.FallbackRow{
		Item: catalog.Item{
			ID:          itemID,
			Name:        "Panadol Extra",
			SKU:         "PAN-EX",
			VATRate:     types.MustMoney("5"),
			VATCategory: catalog.VATStandard,
		},
		CurrentStock: types.NewQuantityFromFloat64(30),
	}
}

func branchQuery(companyID, branchID id.ID) Query {
	return Query{
		CompanyID:       companyID,
		BranchID:        &branchID,
		Text:            "panadol",
		IncludePricing:  true,
		SnapshotEnabled: true,
	}
}

func TestSearch_PrimaryPath(t *testing.T) {
	itemID := id.New()
	rows := &fakeRows{rows: []snapshot.Row{snapshotRow(itemID)}}
	items := &fakeItems{}
	svc := NewService(rows, items, DefaultConfig())

	res, err := svc.Search(context.Background(), branchQuery(id.New(), id.New()))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Source != SourcePrimary {
		t.Errorf("source = %s, want primary", res.Source)
	}
	if items.calls != 0 {
		t.Error("fallback must not run when the primary succeeds")
	}
	if len(res.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(res.Items))
	}
	got := res.Items[0]
	if got.SellingPrice == nil || !got.SellingPrice.Equal(types.MustMoney("12.50")) {
		t.Errorf("selling price = %v, want 12.50", got.SellingPrice)
	}
	if !got.VATRate.Equal(types.MustMoney("5")) || got.VATCategory != catalog.VATStandard {
		t.Errorf("vat = %v/%s, want 5/%s", got.VATRate, got.VATCategory, catalog.VATStandard)
	}
	if got.AverageCost == nil || !got.AverageCost.Equal(types.MustMoney("9.80")) {
		t.Errorf("average cost = %v, want 9.80", got.AverageCost)
	}
	if got.LastPurchasePrice == nil || !got.LastPurchasePrice.Equal(types.MustMoney("10")) {
		t.Errorf("last purchase price = %v, want 10", got.LastPurchasePrice)
	}
	if got.NextExpiryDate == nil {
		t.Error("primary results must carry expiry")
	}
}

func TestSearch_ResultFieldSet(t *testing.T) {
	itemID := id.New()
	rows := &fakeRows{rows: []snapshot.Row{snapshotRow(itemID)}}
	svc := NewService(rows, &fakeItems{}, DefaultConfig())

	res, err := svc.Search(context.Background(), branchQuery(id.New(), id.New()))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	raw, err := json.Marshal(res.Items[0])
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{
		"itemId", "name", "sku", "barcode", "packSize", "baseUnit",
		"vatRate", "vatCategory", "currentStock",
		"averageCost", "lastPurchasePrice", "sellingPrice",
	} {
		if _, ok := doc[key]; !ok {
			t.Errorf("result row lacks %q though the snapshot row carries it", key)
		}
	}
}

func TestSearch_EmptyPrimaryIsTrusted(t *testing.T) {
	rows := &fakeRows{rows: nil}
	items := &fakeItems{rows: []catalog.FallbackRow{fallbackRow(id.New())}}
	svc := NewService(rows, items, DefaultConfig())

	res, err := svc.Search(context.Background(), branchQuery(id.New(), id.New()))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Source != SourcePrimary {
		t.Errorf("source = %s, want primary", res.Source)
	}
	if len(res.Items) != 0 {
		t.Errorf("items = %d, want 0 (empty snapshot answer is authoritative)", len(res.Items))
	}
	if items.calls != 0 {
		t.Error("an empty primary result must not trigger the fallback")
	}
}

func TestSearch_TransientPrimaryErrorFallsBack(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"store unavailable", apperror.NewStoreUnavailable(errors.New("connection refused"))},
		{"deadline exceeded", context.DeadlineExceeded},
		{"wrapped deadline", errors.Join(errors.New("query"), context.DeadlineExceeded)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			itemID := id.New()
			rows := &fakeRows{err: tt.err}
			items := &fakeItems{rows: []catalog.FallbackRow{fallbackRow(itemID)}}
			svc := NewService(rows, items, DefaultConfig())

			res, err := svc.Search(context.Background(), branchQuery(id.New(), id.New()))
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if res.Source != SourceFallback {
				t.Errorf("source = %s, want fallback", res.Source)
			}
			if len(res.Items) != 1 || res.Items[0].ItemID != itemID {
				t.Errorf("items = %v, want the fallback row", res.Items)
			}
			// Reduced surface: no pricing, no costs, no expiry.
			got := res.Items[0]
			if got.SellingPrice != nil || got.NextExpiryDate != nil {
				t.Error("fallback results must not fabricate pricing or expiry")
			}
			if got.AverageCost != nil || got.LastPurchasePrice != nil {
				t.Error("fallback results must not fabricate costs")
			}
			if got.VATCategory != catalog.VATStandard {
				t.Errorf("vat category = %s, want %s from the catalog", got.VATCategory, catalog.VATStandard)
			}
		})
	}
}

func TestSearch_NonTransientErrorDoesNotFallBack(t *testing.T) {
	rows := &fakeRows{err: errors.New("syntax error in query")}
	items := &fakeItems{rows: []catalog.FallbackRow{fallbackRow(id.New())}}
	svc := NewService(rows, items, DefaultConfig())

	_, err := svc.Search(context.Background(), branchQuery(id.New(), id.New()))
	if err == nil {
		t.Fatal("expected the error to surface")
	}
	if items.calls != 0 {
		t.Error("non-transient errors must not degrade to the fallback")
	}
}

func TestSearch_BothPathsDownIsStoreUnavailable(t *testing.T) {
	rows := &fakeRows{err: apperror.NewStoreUnavailable(errors.New("primary down"))}
	items := &fakeItems{err: errors.New("fallback down too")}
	svc := NewService(rows, items, DefaultConfig())

	_, err := svc.Search(context.Background(), branchQuery(id.New(), id.New()))
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeStoreUnavailable {
		t.Fatalf("expected StoreUnavailable, got %v", err)
	}
}

func TestSearch_NoBranchUsesFallback(t *testing.T) {
	rows := &fakeRows{rows: []snapshot.Row{snapshotRow(id.New())}}
	items := &fakeItems{rows: []catalog.FallbackRow{fallbackRow(id.New())}}
	svc := NewService(rows, items, DefaultConfig())

	q := Query{CompanyID: id.New(), Text: "panadol", SnapshotEnabled: true}
	res, err := svc.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Source != SourceFallback {
		t.Errorf("source = %s, want fallback for a company-wide query", res.Source)
	}
	if rows.calls != 0 {
		t.Error("the snapshot is branch-scoped and must not serve branchless queries")
	}
}

func TestSearch_SnapshotDisabledUsesFallback(t *testing.T) {
	rows := &fakeRows{rows: []snapshot.Row{snapshotRow(id.New())}}
	items := &fakeItems{rows: []catalog.FallbackRow{fallbackRow(id.New())}}
	svc := NewService(rows, items, DefaultConfig())

	q := branchQuery(id.New(), id.New())
	q.SnapshotEnabled = false

	res, err := svc.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.Source != SourceFallback {
		t.Errorf("source = %s, want fallback when the tenant flag is off", res.Source)
	}
	if rows.calls != 0 {
		t.Error("a disabled tenant must never touch the snapshot")
	}
}

func TestSearch_PricingExcludedWhenNotRequested(t *testing.T) {
	rows := &fakeRows{rows: []snapshot.Row{snapshotRow(id.New())}}
	svc := NewService(rows, &fakeItems{}, DefaultConfig())

	q := branchQuery(id.New(), id.New())
	q.IncludePricing = false

	res, err := svc.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	got := res.Items[0]
	if got.SellingPrice != nil || got.MarginPercent != nil {
		t.Error("pricing must be stripped when not requested")
	}
	if got.AverageCost != nil || got.LastPurchasePrice != nil {
		t.Error("costs are pricing data and must be stripped too")
	}
	if got.NextExpiryDate == nil {
		t.Error("expiry is not pricing and must stay")
	}
	if got.VATRate.IsZero() {
		t.Error("vat is not pricing and must stay")
	}
}

func TestSearch_Normalization(t *testing.T) {
	rows := &fakeRows{}
	svc := NewService(rows, &fakeItems{}, Config{DefaultLimit: 25, MaxLimit: 100, PrimaryTimeout: time.Second})

	t.Run("empty text rejected", func(t *testing.T) {
		q := branchQuery(id.New(), id.New())
		q.Text = "   "
		_, err := svc.Search(context.Background(), q)
		appErr, ok := apperror.AsAppError(err)
		if !ok || appErr.Code != apperror.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("missing company rejected", func(t *testing.T) {
		q := branchQuery(id.Nil(), id.New())
		_, err := svc.Search(context.Background(), q)
		appErr, ok := apperror.AsAppError(err)
		if !ok || appErr.Code != apperror.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("text lowercased and trimmed, limits clamped", func(t *testing.T) {
		q := branchQuery(id.New(), id.New())
		q.Text = "  PanaDOL  "
		q.Limit = 10000
		if _, err := svc.Search(context.Background(), q); err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		filter := rows.filters[len(rows.filters)-1]
		if filter.Text != "panadol" {
			t.Errorf("filter text = %q, want panadol", filter.Text)
		}
		if filter.Limit != 100 {
			t.Errorf("filter limit = %d, want clamped to 100", filter.Limit)
		}
	})

	t.Run("default limit applied", func(t *testing.T) {
		q := branchQuery(id.New(), id.New())
		if _, err := svc.Search(context.Background(), q); err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		filter := rows.filters[len(rows.filters)-1]
		if filter.Limit != 25 {
			t.Errorf("filter limit = %d, want default 25", filter.Limit)
		}
	})
}
