package snapshot

import (
	"context"
	"fmt"

	"rxledger/internal/core/id"
	"rxledger/internal/core/tx"
	"rxledger/internal/domain/catalog"
	"rxledger/pkg/logger"
)

// Backfiller rebuilds the snapshot table for a whole company. It runs
// the same per-key recompute as any other refresh, committed in chunks
// so an interrupted run leaves only complete chunks behind.
type Backfiller struct {
	items     catalog.ItemRepository
	branches  catalog.BranchRepository
	refresher *Refresher
	txm       tx.Manager
	chunkSize int
}

func NewBackfiller(
	items catalog.ItemRepository,
	branches catalog.BranchRepository,
	refresher *Refresher,
	txm tx.Manager,
	chunkSize int,
) *Backfiller {
	if chunkSize <= 0 {
		chunkSize = 200
	}
	return &Backfiller{
		items:     items,
		branches:  branches,
		refresher: refresher,
		txm:       txm,
		chunkSize: chunkSize,
	}
}

// Run refreshes every (item, branch) pair of the company. Returns the
// number of rows written.
func (b *Backfiller) Run(ctx context.Context, companyID id.ID) (int, error) {
	branches, err := b.branches.ListByCompany(ctx, companyID)
	if err != nil {
		return 0, fmt.Errorf("list branches: %w", err)
	}

	total := 0
	for _, branch := range branches {
		n, err := b.runBranch(ctx, companyID, branch.ID)
		total += n
		if err != nil {
			return total, fmt.Errorf("backfill branch %s: %w", branch.ID, err)
		}

		logger.Info(ctx, "backfill branch done",
			"company_id", companyID,
			"branch_id", branch.ID,
			"rows", n,
		)
	}
	return total, nil
}

func (b *Backfiller) runBranch(ctx context.Context, companyID, branchID id.ID) (int, error) {
	after := id.Nil()
	total := 0

	for {
		ids, err := b.items.ListIDsAfter(ctx, companyID, after, b.chunkSize)
		if err != nil {
			return total, fmt.Errorf("page items after %s: %w", after, err)
		}
		if len(ids) == 0 {
			return total, nil
		}

		err = b.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			for _, itemID := range ids {
				if err := b.refresher.Refresh(ctx, companyID, branchID, itemID); err != nil {
					return fmt.Errorf("refresh %s: %w", itemID, err)
				}
			}
			return nil
		})
		if err != nil {
			return total, err
		}

		total += len(ids)
		after = ids[len(ids)-1]

		if len(ids) < b.chunkSize {
			return total, nil
		}
	}
}
