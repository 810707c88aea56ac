package snapshot

import (
	"context"
	"sort"
	"testing"
	"time"

	"rxledger/internal/core/id"
	"rxledger/internal/core/types"
	"rxledger/internal/domain/catalog"
	"rxledger/internal/domain/ledger"
	"rxledger/internal/domain/pricing"
	"rxledger/internal/domain/refreshqueue"
)

// directTx runs fn inline; the fakes have no transaction semantics.
type directTx struct{}

func (directTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// convergenceWorld wires a router, a queue processor and a refresher
// over one shared set of fakes, with several items in the catalog.
type convergenceWorld struct {
	companyID id.ID
	branchID  id.ID
	itemIDs   []id.ID

	items     *fakeItems
	companies *fakeCompanies
	entries   *fakeLedger
	rows      *fakeRows

	router    *Router
	queue     *fakeQueue
	processor *refreshqueue.Processor

	newRefresher func(rows *fakeRows) *Refresher
}

func newConvergenceWorld(t *testing.T, itemCount int) *convergenceWorld {
	t.Helper()

	companyID := id.New()
	branchID := id.New()

	itemIDs := make([]id.ID, itemCount)
	catalogItems := make(map[id.ID]*catalog.Item, itemCount)
	names := []string{"Paracetamol 500mg", "Ibuprofen 400mg", "Amoxicillin 250mg", "Cetirizine 10mg", "Omeprazole 20mg"}
	for i := range itemIDs {
		itemID := id.New()
		itemIDs[i] = itemID
		catalogItems[itemID] = &catalog.Item{
			ID:          itemID,
			CompanyID:   companyID,
			Name:        names[i%len(names)],
			SKU:         names[i%len(names)][:4],
			VATRate:     money("5"),
			VATCategory: catalog.VATStandard,
			DefaultCost: money("2"),
		}
	}
	sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i].String() < itemIDs[j].String() })

	items := &fakeItems{items: catalogItems, ids: itemIDs}
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

	newRefresher := func(rows *fakeRows) *Refresher {
		r := NewRefresher(items, branches, companies, entries, resolver, rows)
		r.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
		return r
	}

	refresher := newRefresher(rows)
	queue := &fakeQueue{}
	processor := refreshqueue.NewProcessor(queue, items, refresher, directTx{},
		refreshqueue.Config{ChunkSize: 2, ClaimLease: time.Minute})

	return &convergenceWorld{
		companyID:    companyID,
		branchID:     branchID,
		itemIDs:      itemIDs,
		items:        items,
		companies:    companies,
		entries:      entries,
		rows:         rows,
		router:       NewRouter(refresher, queue),
		queue:        queue,
		processor:    processor,
		newRefresher: newRefresher,
	}
}

func (w *convergenceWorld) key(itemID id.ID) ledger.Key {
	return ledger.Key{CompanyID: w.companyID, BranchID: w.branchID, ItemID: itemID}
}

func (w *convergenceWorld) drain(t *testing.T) {
	t.Helper()
	for {
		worked, err := w.processor.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("RunOnce failed: %v", err)
		}
		if !worked {
			return
		}
	}
}

// Whatever mix of synchronous refreshes and queued jobs a sequence of
// changes produces, draining the queue must leave every row identical
// to a direct recomputation from the final state.
func TestRefreshConvergence(t *testing.T) {
	w := newConvergenceWorld(t, 5)
	ctx := context.Background()

	// A purchase lands on one item: single key, refreshed inline.
	w.entries.stock = types.NewQuantityFromFloat64(40)
	w.entries.lastPurchase = moneyPtr("9")
	if err := w.router.RouteKeys(ctx, []ledger.Key{w.key(w.itemIDs[0])}, "purchase"); err != nil {
		t.Fatalf("RouteKeys failed: %v", err)
	}

	// A multi-line sale touches three items: queued, not yet drained.
	w.entries.stock = types.NewQuantityFromFloat64(35)
	keys := []ledger.Key{w.key(w.itemIDs[0]), w.key(w.itemIDs[1]), w.key(w.itemIDs[2])}
	if err := w.router.RouteKeys(ctx, keys, "sale"); err != nil {
		t.Fatalf("RouteKeys failed: %v", err)
	}

	// The margin changes while those jobs are still pending.
	w.companies.settings.DefaultMarginPercent = money("30")
	if err := w.router.BranchChanged(ctx, w.companyID, w.branchID, "margin_changed"); err != nil {
		t.Fatalf("BranchChanged failed: %v", err)
	}

	// Another synchronous refresh interleaves with the pending backlog.
	w.entries.lastPurchase = moneyPtr("11")
	if err := w.router.RouteKeys(ctx, []ledger.Key{w.key(w.itemIDs[3])}, "purchase"); err != nil {
		t.Fatalf("RouteKeys failed: %v", err)
	}

	w.drain(t)

	for _, job := range w.queue.jobs {
		if job.ProcessedAt == nil {
			t.Fatalf("job %s left unprocessed after drain", job.ID)
		}
	}

	// Recompute every row directly from the final state and compare.
	want := newFakeRows()
	direct := w.newRefresher(want)
	for _, itemID := range w.itemIDs {
		if err := direct.Refresh(ctx, w.companyID, w.branchID, itemID); err != nil {
			t.Fatalf("direct refresh failed: %v", err)
		}
	}

	for _, itemID := range w.itemIDs {
		k := Key{CompanyID: w.companyID, BranchID: w.branchID, ItemID: itemID}
		got, ok := w.rows.rows[k]
		if !ok {
			t.Fatalf("no row for item %s after drain", itemID)
		}
		assertSameRow(t, got, want.rows[k])
	}
}

func assertSameRow(t *testing.T, got, want *Row) {
	t.Helper()
	if got.Name != want.Name || got.SKU != want.SKU || got.SearchText != want.SearchText {
		t.Errorf("descriptive fields diverge: got %q/%q, want %q/%q", got.Name, got.SKU, want.Name, want.SKU)
	}
	if got.CurrentStock != want.CurrentStock {
		t.Errorf("stock = %s, want %s", got.CurrentStock, want.CurrentStock)
	}
	if !got.AverageCost.Equal(want.AverageCost) {
		t.Errorf("average cost = %s, want %s", got.AverageCost, want.AverageCost)
	}
	if !got.LastPurchasePrice.Equal(want.LastPurchasePrice) {
		t.Errorf("last purchase price = %s, want %s", got.LastPurchasePrice, want.LastPurchasePrice)
	}
	if !samePrice(got.SellingPrice, want.SellingPrice) {
		t.Errorf("selling price = %v, want %v", got.SellingPrice, want.SellingPrice)
	}
	if !samePrice(got.MarginPercent, want.MarginPercent) {
		t.Errorf("margin percent = %v, want %v", got.MarginPercent, want.MarginPercent)
	}
	if (got.NextExpiryDate == nil) != (want.NextExpiryDate == nil) {
		t.Errorf("next expiry = %v, want %v", got.NextExpiryDate, want.NextExpiryDate)
	}
}

func samePrice(a, b *types.Money) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
