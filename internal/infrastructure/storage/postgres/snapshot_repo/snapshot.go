// Package snapshot_repo provides the PostgreSQL implementation of the
// search snapshot store.
package snapshot_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"rxledger/internal/core/apperror"
	"rxledger/internal/domain/snapshot"
	"rxledger/internal/infrastructure/storage/postgres"
)

const snapshotTable = "item_search_snapshot"

var snapshotColumns = []string{
	"company_id", "item_id", "branch_id",
	"name", "sku", "barcode", "pack_size", "base_unit", "vat_rate", "vat_category",
	"current_stock", "average_cost", "last_purchase_price",
	"selling_price", "margin_percent", "next_expiry_date",
	"search_text", "updated_at",
}

// SnapshotRepo implements snapshot.Repository.
type SnapshotRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewSnapshotRepo creates a new snapshot repository.
func NewSnapshotRepo(txm *postgres.TxManager) *SnapshotRepo {
	return &SnapshotRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Upsert writes the full row by its key. Every field is recomputed by
// the refresher, so the conflict branch overwrites everything.
func (r *SnapshotRepo) Upsert(ctx context.Context, row *snapshot.Row) error {
	sql := `
		INSERT INTO item_search_snapshot (
			company_id, item_id, branch_id,
			name, sku, barcode, pack_size, base_unit, vat_rate, vat_category,
			current_stock, average_cost, last_purchase_price,
			selling_price, margin_percent, next_expiry_date,
			search_text, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18
		)
		ON CONFLICT (company_id, item_id, branch_id) DO UPDATE SET
			name = EXCLUDED.name,
			sku = EXCLUDED.sku,
			barcode = EXCLUDED.barcode,
			pack_size = EXCLUDED.pack_size,
			base_unit = EXCLUDED.base_unit,
			vat_rate = EXCLUDED.vat_rate,
			vat_category = EXCLUDED.vat_category,
			current_stock = EXCLUDED.current_stock,
			average_cost = EXCLUDED.average_cost,
			last_purchase_price = EXCLUDED.last_purchase_price,
			selling_price = EXCLUDED.selling_price,
			margin_percent = EXCLUDED.margin_percent,
			next_expiry_date = EXCLUDED.next_expiry_date,
			search_text = EXCLUDED.search_text,
			updated_at = EXCLUDED.updated_at
	`

	querier := r.txm.GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		row.CompanyID, row.ItemID, row.BranchID,
		row.Name, row.SKU, row.Barcode, row.PackSize, row.BaseUnit, row.VATRate, row.VATCategory,
		row.CurrentStock, row.AverageCost, row.LastPurchasePrice,
		row.SellingPrice, row.MarginPercent, row.NextExpiryDate,
		row.SearchText, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot row: %w", err)
	}

	return nil
}

// GetByKey retrieves one row.
func (r *SnapshotRepo) GetByKey(ctx context.Context, key snapshot.Key) (*snapshot.Row, error) {
	q := r.builder.Select(snapshotColumns...).
		From(snapshotTable).
		Where(squirrel.Eq{
			"company_id": key.CompanyID,
			"branch_id":  key.BranchID,
			"item_id":    key.ItemID,
		}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row snapshot.Row
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("snapshot row", fmt.Sprintf("%s/%s", key.BranchID, key.ItemID))
		}
		return nil, fmt.Errorf("get snapshot row: %w", err)
	}

	return &row, nil
}

// Search runs the primary branch-scoped query: substring match against
// search_text, name-prefix matches ranked first, then alphabetical.
func (r *SnapshotRepo) Search(ctx context.Context, filter snapshot.SearchFilter) ([]snapshot.Row, error) {
	pattern := "%" + filter.Text + "%"
	prefix := filter.Text + "%"

	sql := `
		SELECT ` + columnList() + `
		FROM item_search_snapshot
		WHERE company_id = $1 AND branch_id = $2
		  AND search_text LIKE $3
		ORDER BY (lower(name) LIKE $4) DESC, name ASC
		LIMIT $5
	`

	var rows []snapshot.Row
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql,
		filter.CompanyID, filter.BranchID, pattern, prefix, filter.Limit,
	); err != nil {
		return nil, fmt.Errorf("search snapshot: %w", err)
	}

	return rows, nil
}

func columnList() string {
	out := ""
	for i, col := range snapshotColumns {
		if i > 0 {
			out += ", "
		}
		out += col
	}
	return out
}

// Ensure interface compliance.
var _ snapshot.Repository = (*SnapshotRepo)(nil)
