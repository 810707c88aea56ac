// Package catalog_repo provides PostgreSQL implementations for catalog
// repositories. All queries are company-scoped; tenant isolation is a
// company_id column, not a separate database.
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

const itemsTable = "cat_items"

var itemColumns = []string{
	"id", "company_id", "name", "sku", "barcode", "pack_size", "base_unit",
	"vat_rate", "vat_category", "category", "margin_tier", "margin_override",
	"default_cost", "version", "created_at", "updated_at",
}

// ItemRepo implements catalog.ItemRepository.
type ItemRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewItemRepo creates a new item repository.
func NewItemRepo(txm *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID retrieves an item scoped to a company.
func (r *ItemRepo) GetByID(ctx context.Context, companyID, itemID id.ID) (*catalog.Item, error) {
	q := r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"id": itemID, "company_id": companyID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var item catalog.Item
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("item", itemID)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	return &item, nil
}

// Update modifies an item with optimistic locking on version.
func (r *ItemRepo) Update(ctx context.Context, item *catalog.Item) error {
	q := r.builder.Update(itemsTable).
		Set("name", item.Name).
		Set("sku", item.SKU).
		Set("barcode", item.Barcode).
		Set("pack_size", item.PackSize).
		Set("base_unit", item.BaseUnit).
		Set("vat_rate", item.VATRate).
		Set("vat_category", item.VATCategory).
		Set("category", item.Category).
		Set("margin_tier", item.MarginTier).
		Set("margin_override", item.MarginOverride).
		Set("default_cost", item.DefaultCost).
		Set("version", item.Version+1).
		Set("updated_at", item.UpdatedAt).
		Where(squirrel.Eq{
			"id":         item.ID,
			"company_id": item.CompanyID,
			"version":    item.Version,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConflict("item was modified concurrently").
			WithDetail("itemId", item.ID).
			WithDetail("version", item.Version)
	}

	item.Version++
	return nil
}

// ListIDsAfter returns up to limit item ids of a company, ordered by id,
// strictly after afterID. Keyset pagination; UUIDv7 ids sort by creation
// time, so the page order is stable across calls.
func (r *ItemRepo) ListIDsAfter(ctx context.Context, companyID, afterID id.ID, limit int) ([]id.ID, error) {
	q := r.builder.Select("id").
		From(itemsTable).
		Where(squirrel.Eq{"company_id": companyID}).
		Where(squirrel.Gt{"id": afterID}).
		OrderBy("id ASC").
		Limit(uint64(limit))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ids []id.ID
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("list item ids: %w", err)
	}

	return ids, nil
}

// SearchWithStock is the reduced fallback lookup. With a branch it joins
// the live ledger aggregate for stock; without one, stock stays zero and
// only descriptive fields are meaningful.
func (r *ItemRepo) SearchWithStock(ctx context.Context, companyID id.ID, branchID *id.ID, text string, limit int) ([]catalog.FallbackRow, error) {
	pattern := "%" + text + "%"
	prefix := text + "%"

	querier := r.txm.GetQuerier(ctx)
	var rows []catalog.FallbackRow

	if branchID == nil {
		sql := `
			SELECT ` + itemColumnList("i") + `, 0::bigint AS current_stock
			FROM cat_items i
			WHERE i.company_id = $1
			  AND (lower(i.name) LIKE $2 OR lower(i.sku) LIKE $2 OR lower(i.barcode) LIKE $2)
			ORDER BY (lower(i.name) LIKE $3) DESC, i.name ASC
			LIMIT $4
		`
		if err := pgxscan.Select(ctx, querier, &rows, sql, companyID, pattern, prefix, limit); err != nil {
			return nil, fmt.Errorf("fallback catalog search: %w", err)
		}
		return rows, nil
	}

	sql := `
		SELECT ` + itemColumnList("i") + `, COALESCE(l.qty, 0)::bigint AS current_stock
		FROM cat_items i
		LEFT JOIN (
			SELECT item_id, SUM(quantity) AS qty
			FROM ledger_entries
			WHERE company_id = $1 AND branch_id = $2
			GROUP BY item_id
		) l ON l.item_id = i.id
		WHERE i.company_id = $1
		  AND (lower(i.name) LIKE $3 OR lower(i.sku) LIKE $3 OR lower(i.barcode) LIKE $3)
		ORDER BY (lower(i.name) LIKE $4) DESC, i.name ASC
		LIMIT $5
	`
	if err := pgxscan.Select(ctx, querier, &rows, sql, companyID, *branchID, pattern, prefix, limit); err != nil {
		return nil, fmt.Errorf("fallback stock search: %w", err)
	}

	return rows, nil
}

func itemColumnList(alias string) string {
	out := ""
	for i, col := range itemColumns {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + col
	}
	return out
}

// Ensure interface compliance.
var _ catalog.ItemRepository = (*ItemRepo)(nil)
