package catalog

import (
	"context"
	"fmt"
	"time"

	"rxledger/internal/core/id"
	"rxledger/internal/core/tx"
	"rxledger/pkg/logger"
)

// SnapshotNotifier receives item-change notifications. An item edit
// affects the item's snapshot row in every branch, so the notifier
// fans out one job per branch.
type SnapshotNotifier interface {
	ItemChangedAllBranches(ctx context.Context, companyID, itemID id.ID, branchIDs []id.ID, reason string) error
}

// Service handles catalog writes and their snapshot fan-out.
type Service struct {
	items    ItemRepository
	branches BranchRepository
	notifier SnapshotNotifier
	txm      tx.Manager
}

func NewService(items ItemRepository, branches BranchRepository, notifier SnapshotNotifier, txm tx.Manager) *Service {
	return &Service{
		items:    items,
		branches: branches,
		notifier: notifier,
		txm:      txm,
	}
}

// GetItem loads one item.
func (s *Service) GetItem(ctx context.Context, companyID, itemID id.ID) (*Item, error) {
	return s.items.GetByID(ctx, companyID, itemID)
}

// UpdateItem persists a descriptive edit and enqueues refresh jobs for
// the item in every branch of the company. Jobs are inserted in the
// same transaction as the edit, so a committed edit is never silently
// unreflected in search.
func (s *Service) UpdateItem(ctx context.Context, item *Item) error {
	if err := item.Validate(ctx); err != nil {
		return err
	}

	branches, err := s.branches.ListByCompany(ctx, item.CompanyID)
	if err != nil {
		return fmt.Errorf("list branches: %w", err)
	}
	branchIDs := make([]id.ID, 0, len(branches))
	for _, b := range branches {
		branchIDs = append(branchIDs, b.ID)
	}

	item.UpdatedAt = time.Now().UTC()

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.items.Update(ctx, item); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		if err := s.notifier.ItemChangedAllBranches(ctx, item.CompanyID, item.ID, branchIDs, "item_updated"); err != nil {
			return fmt.Errorf("notify item change: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "item updated",
		"company_id", item.CompanyID,
		"item_id", item.ID,
		"branches", len(branchIDs),
	)
	return nil
}
