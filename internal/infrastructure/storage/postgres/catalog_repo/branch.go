package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/domain/catalog"
	"rxledger/internal/infrastructure/storage/postgres"
)

const branchesTable = "cat_branches"

var branchColumns = []string{
	"id", "company_id", "code", "name", "version", "created_at", "updated_at",
}

// BranchRepo implements catalog.BranchRepository.
type BranchRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewBranchRepo creates a new branch repository.
func NewBranchRepo(txm *postgres.TxManager) *BranchRepo {
	return &BranchRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID retrieves a branch scoped to a company.
func (r *BranchRepo) GetByID(ctx context.Context, companyID, branchID id.ID) (*catalog.Branch, error) {
	q := r.builder.Select(branchColumns...).
		From(branchesTable).
		Where(squirrel.Eq{"id": branchID, "company_id": companyID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var branch catalog.Branch
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &branch, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("branch", branchID)
		}
		return nil, fmt.Errorf("get branch: %w", err)
	}

	return &branch, nil
}

// ListByCompany returns all branches of a company, ordered by code.
func (r *BranchRepo) ListByCompany(ctx context.Context, companyID id.ID) ([]catalog.Branch, error) {
	q := r.builder.Select(branchColumns...).
		From(branchesTable).
		Where(squirrel.Eq{"company_id": companyID}).
		OrderBy("code ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var branches []catalog.Branch
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &branches, sql, args...); err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}

	return branches, nil
}

// Ensure interface compliance.
var _ catalog.BranchRepository = (*BranchRepo)(nil)
