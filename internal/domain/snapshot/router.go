package snapshot

import (
	"context"
	"fmt"

	"rxledger/internal/core/id"
	"rxledger/internal/domain/ledger"
	"rxledger/internal/domain/refreshqueue"
	"rxledger/pkg/logger"
)

// Scope is the routing decision for a change.
type Scope int

const (
	// ScopeSync refreshes inline, inside the triggering transaction.
	ScopeSync Scope = iota
	// ScopeBulk enqueues background jobs and lets the write commit.
	ScopeBulk
)

// DecideScope is a pure function of how many (item, branch) keys a
// change touches. Nothing else — no flags, no configuration — may
// influence the decision.
func DecideScope(keyCount int) Scope {
	if keyCount == 1 {
		return ScopeSync
	}
	return ScopeBulk
}

// Router is the single entry point for every operation that changes
// ledger or catalog state relevant to search. A synchronous refresh
// failure propagates to the caller's transaction and aborts it, so no
// business write can commit without its snapshot update.
type Router struct {
	refresher *Refresher
	queue     refreshqueue.Repository
}

// NewRouter creates a scope router.
func NewRouter(refresher *Refresher, queue refreshqueue.Repository) *Router {
	return &Router{
		refresher: refresher,
		queue:     queue,
	}
}

// RouteKeys handles the affected keys of one business write. One key is
// refreshed synchronously; several are enqueued one job per key.
// Implements ledger.RefreshRouter.
func (r *Router) RouteKeys(ctx context.Context, keys []ledger.Key, reason string) error {
	if len(keys) == 0 {
		return nil
	}

	if DecideScope(len(keys)) == ScopeSync {
		k := keys[0]
		if err := r.refresher.Refresh(ctx, k.CompanyID, k.BranchID, k.ItemID); err != nil {
			return fmt.Errorf("sync refresh %s/%s: %w", k.BranchID, k.ItemID, err)
		}
		return nil
	}

	for _, k := range keys {
		if err := r.enqueueItem(ctx, k.CompanyID, k.BranchID, k.ItemID, reason); err != nil {
			return err
		}
	}
	return nil
}

// ItemChanged refreshes a single key synchronously inside the caller's
// transaction.
func (r *Router) ItemChanged(ctx context.Context, companyID, branchID, itemID id.ID, reason string) error {
	return r.RouteKeys(ctx, []ledger.Key{{CompanyID: companyID, BranchID: branchID, ItemID: itemID}}, reason)
}

// ItemChangedAllBranches enqueues one item-scoped job per branch. Used
// for catalog edits, which affect the item's row in every branch.
func (r *Router) ItemChangedAllBranches(ctx context.Context, companyID, itemID id.ID, branchIDs []id.ID, reason string) error {
	for _, branchID := range branchIDs {
		if err := r.enqueueItem(ctx, companyID, branchID, itemID, reason); err != nil {
			return err
		}
	}
	return nil
}

// BranchChanged enqueues a branch-wide refresh job. The triggering
// write commits independently of when the job runs.
func (r *Router) BranchChanged(ctx context.Context, companyID, branchID id.ID, reason string) error {
	job := refreshqueue.Job{
		ID:        id.New(),
		CompanyID: companyID,
		BranchID:  branchID,
		Reason:    reason,
	}
	if err := r.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue branch refresh: %w", err)
	}

	logger.Info(ctx, "enqueued branch-wide refresh",
		"company_id", companyID,
		"branch_id", branchID,
		"reason", reason,
	)
	return nil
}

func (r *Router) enqueueItem(ctx context.Context, companyID, branchID, itemID id.ID, reason string) error {
	item := itemID
	job := refreshqueue.Job{
		ID:        id.New(),
		CompanyID: companyID,
		BranchID:  branchID,
		ItemID:    &item,
		Reason:    reason,
	}
	if err := r.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue item refresh %s: %w", itemID, err)
	}
	return nil
}
