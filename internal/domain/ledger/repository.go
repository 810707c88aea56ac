package ledger

import (
	"context"

	"rxledger/internal/core/types"
)

// Repository defines persistence for the ledger. The write surface is
// insert-only; reads are the aggregates the refresh engine needs.
type Repository interface {
	// Insert appends entries. Must be called inside a transaction when
	// posting business operations.
	Insert(ctx context.Context, entries []Entry) error

	// CurrentStock sums quantity deltas for the key.
	CurrentStock(ctx context.Context, key Key) (types.Quantity, error)

	// LastPurchaseCost returns the unit cost of the most recent PURCHASE
	// entry with positive quantity, or nil if none exists.
	LastPurchaseCost(ctx context.Context, key Key) (*types.Money, error)

	// LastOpeningCost returns the unit cost of the most recent
	// OPENING_BALANCE entry, or nil if none exists.
	LastOpeningCost(ctx context.Context, key Key) (*types.Money, error)

	// WeightedAverageCost returns sum(qty*cost)/sum(qty) over all
	// positive-quantity entries, or nil when there are none.
	WeightedAverageCost(ctx context.Context, key Key) (*types.Money, error)

	// BatchBalances groups entries by (batch_number, expiry_date) and
	// returns the net remaining quantity per group.
	BatchBalances(ctx context.Context, key Key) ([]BatchBalance, error)

	// History returns recent entries for a key, newest first. Diagnostic.
	History(ctx context.Context, key Key, limit int) ([]Entry, error)
}

// RefreshRouter is the scope-routing contract the posting service calls.
// One affected key means a synchronous refresh inside the posting
// transaction; several mean enqueued jobs. Implemented by
// snapshot.Router.
type RefreshRouter interface {
	RouteKeys(ctx context.Context, keys []Key, reason string) error
}
