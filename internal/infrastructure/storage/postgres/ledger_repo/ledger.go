// Package ledger_repo provides the PostgreSQL implementation of the
// stock ledger. The table is append-only: no UPDATE or DELETE statement
// exists here.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"rxledger/internal/core/types"
	"rxledger/internal/domain/ledger"
	"rxledger/internal/infrastructure/storage/postgres"
)

const entriesTable = "ledger_entries"

var entryColumns = []string{
	"id", "company_id", "branch_id", "item_id", "batch_number",
	"expiry_date", "txn_type", "quantity", "unit_cost", "created_at",
}

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm     *postgres.TxManager
	batch   *postgres.BatchInserter
	builder squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		batch:   postgres.NewBatchInserter(txm),
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert appends entries. Inside a transaction it uses COPY; outside it
// falls back to a multi-row INSERT.
func (r *LedgerRepo) Insert(ctx context.Context, entries []ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	if r.txm.GetTx(ctx) != nil {
		rows := make([][]any, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []any{
				e.ID, e.CompanyID, e.BranchID, e.ItemID, e.BatchNumber,
				e.ExpiryDate, e.TxnType, e.Quantity, e.UnitCost, e.CreatedAt,
			})
		}
		if _, err := r.batch.CopyFromSlice(ctx, entriesTable, entryColumns, rows); err != nil {
			return fmt.Errorf("copy entries: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(entriesTable).Columns(entryColumns...)
	for _, e := range entries {
		q = q.Values(
			e.ID, e.CompanyID, e.BranchID, e.ItemID, e.BatchNumber,
			e.ExpiryDate, e.TxnType, e.Quantity, e.UnitCost, e.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert entries: %w", err)
	}

	return nil
}

// CurrentStock sums quantity deltas for the key.
func (r *LedgerRepo) CurrentStock(ctx context.Context, key ledger.Key) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(SUM(quantity), 0)::bigint
		FROM ledger_entries
		WHERE company_id = $1 AND branch_id = $2 AND item_id = $3
	`

	var scaled int64
	querier := r.txm.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, key.CompanyID, key.BranchID, key.ItemID).Scan(&scaled)
	if err != nil {
		return 0, fmt.Errorf("sum stock: %w", err)
	}

	return types.Quantity(scaled), nil
}

// LastPurchaseCost returns the unit cost of the most recent receipt
// purchase, or nil if the key has never been purchased.
func (r *LedgerRepo) LastPurchaseCost(ctx context.Context, key ledger.Key) (*types.Money, error) {
	return r.lastCost(ctx, key, ledger.TxnPurchase, true)
}

// LastOpeningCost returns the unit cost of the most recent opening
// balance entry, or nil if none exists.
func (r *LedgerRepo) LastOpeningCost(ctx context.Context, key ledger.Key) (*types.Money, error) {
	return r.lastCost(ctx, key, ledger.TxnOpeningBalance, false)
}

func (r *LedgerRepo) lastCost(ctx context.Context, key ledger.Key, txnType ledger.TxnType, receiptsOnly bool) (*types.Money, error) {
	q := r.builder.Select("unit_cost").
		From(entriesTable).
		Where(squirrel.Eq{
			"company_id": key.CompanyID,
			"branch_id":  key.BranchID,
			"item_id":    key.ItemID,
			"txn_type":   txnType,
		}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1)

	if receiptsOnly {
		q = q.Where(squirrel.Gt{"quantity": 0})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var cost types.Money
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &cost, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("last %s cost: %w", txnType, err)
	}

	return &cost, nil
}

// WeightedAverageCost computes sum(qty*cost)/sum(qty) over receipt
// entries, or nil when there are none. The quantity scale cancels out
// in the division.
func (r *LedgerRepo) WeightedAverageCost(ctx context.Context, key ledger.Key) (*types.Money, error) {
	sql := `
		SELECT ROUND(SUM(quantity * unit_cost) / NULLIF(SUM(quantity), 0), 4)
		FROM ledger_entries
		WHERE company_id = $1 AND branch_id = $2 AND item_id = $3
		  AND quantity > 0
	`

	var cost *types.Money
	querier := r.txm.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, key.CompanyID, key.BranchID, key.ItemID).Scan(&cost)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("weighted average cost: %w", err)
	}

	return cost, nil
}

// BatchBalances groups entries by (batch_number, expiry_date) and
// returns the net remaining quantity per group.
func (r *LedgerRepo) BatchBalances(ctx context.Context, key ledger.Key) ([]ledger.BatchBalance, error) {
	sql := `
		SELECT batch_number, expiry_date, COALESCE(SUM(quantity), 0)::bigint AS remaining
		FROM ledger_entries
		WHERE company_id = $1 AND branch_id = $2 AND item_id = $3
		GROUP BY batch_number, expiry_date
		ORDER BY expiry_date ASC NULLS LAST, batch_number ASC
	`

	var balances []ledger.BatchBalance
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &balances, sql, key.CompanyID, key.BranchID, key.ItemID); err != nil {
		return nil, fmt.Errorf("batch balances: %w", err)
	}

	return balances, nil
}

// History returns recent entries for a key, newest first.
func (r *LedgerRepo) History(ctx context.Context, key ledger.Key, limit int) ([]ledger.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	q := r.builder.Select(entryColumns...).
		From(entriesTable).
		Where(squirrel.Eq{
			"company_id": key.CompanyID,
			"branch_id":  key.BranchID,
			"item_id":    key.ItemID,
		}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []ledger.Entry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}

	return entries, nil
}

// Ensure interface compliance.
var _ ledger.Repository = (*LedgerRepo)(nil)
