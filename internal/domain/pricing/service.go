package pricing

import (
	"context"
	"fmt"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/core/tx"
	"rxledger/internal/core/types"
	"rxledger/internal/domain/catalog"
	"rxledger/pkg/logger"
)

// SettingsStore persists company pricing settings.
type SettingsStore interface {
	GetSettings(ctx context.Context, companyID id.ID) (*catalog.CompanySettings, error)
	SetDefaultMargin(ctx context.Context, companyID id.ID, marginPercent types.Money) error
	SetTierDefault(ctx context.Context, companyID id.ID, tier string, marginPercent types.Money) error
}

// BranchInvalidator enqueues a branch-wide snapshot refresh. Implemented
// by snapshot.Router.
type BranchInvalidator interface {
	BranchChanged(ctx context.Context, companyID, branchID id.ID, reason string) error
}

// Service applies bulk pricing changes. A margin change touches every
// item of the company, so it never refreshes inline: it enqueues one
// branch-wide job per branch and commits together with the setting.
type Service struct {
	store       SettingsStore
	branches    catalog.BranchRepository
	invalidator BranchInvalidator
	txm         tx.Manager
}

// NewService creates a pricing service.
func NewService(store SettingsStore, branches catalog.BranchRepository, invalidator BranchInvalidator, txm tx.Manager) *Service {
	return &Service{
		store:       store,
		branches:    branches,
		invalidator: invalidator,
		txm:         txm,
	}
}

// SetCompanyMargin updates the company-wide default margin percent.
func (s *Service) SetCompanyMargin(ctx context.Context, companyID id.ID, marginPercent types.Money) error {
	if marginPercent.IsNegative() {
		return apperror.NewValidation("margin percent cannot be negative").WithDetail("field", "marginPercent")
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.SetDefaultMargin(ctx, companyID, marginPercent); err != nil {
			return fmt.Errorf("set default margin: %w", err)
		}
		return s.invalidateAllBranches(ctx, companyID, "company margin change")
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "company margin updated",
		"company_id", companyID,
		"margin_percent", marginPercent,
	)
	return nil
}

// SetTierDefault updates one tier's margin percent.
func (s *Service) SetTierDefault(ctx context.Context, companyID id.ID, tier string, marginPercent types.Money) error {
	if tier == "" {
		return apperror.NewValidation("tier is required").WithDetail("field", "tier")
	}
	if marginPercent.IsNegative() {
		return apperror.NewValidation("margin percent cannot be negative").WithDetail("field", "marginPercent")
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.SetTierDefault(ctx, companyID, tier, marginPercent); err != nil {
			return fmt.Errorf("set tier default: %w", err)
		}
		return s.invalidateAllBranches(ctx, companyID, "tier margin change: "+tier)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "tier margin updated",
		"company_id", companyID,
		"tier", tier,
		"margin_percent", marginPercent,
	)
	return nil
}

func (s *Service) invalidateAllBranches(ctx context.Context, companyID id.ID, reason string) error {
	branches, err := s.branches.ListByCompany(ctx, companyID)
	if err != nil {
		return fmt.Errorf("list branches: %w", err)
	}
	for _, b := range branches {
		if err := s.invalidator.BranchChanged(ctx, companyID, b.ID, reason); err != nil {
			return fmt.Errorf("enqueue branch refresh %s: %w", b.ID, err)
		}
	}
	return nil
}
