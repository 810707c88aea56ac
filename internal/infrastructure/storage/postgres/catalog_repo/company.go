package catalog_repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/core/types"
	"rxledger/internal/domain/catalog"
	"rxledger/internal/infrastructure/storage/postgres"
)

const companiesTable = "cat_companies"

// companyRow is the storage shape; tier defaults and rules live in
// jsonb columns since they are always read whole.
type companyRow struct {
	ID                   id.ID           `db:"id"`
	DefaultMarginPercent types.Money     `db:"default_margin_percent"`
	TierDefaults         json.RawMessage `db:"tier_defaults"`
	TierRules            json.RawMessage `db:"tier_rules"`
	SnapshotEnabled      bool            `db:"snapshot_enabled"`
}

// CompanyRepo implements catalog.CompanyRepository and
// pricing.SettingsStore.
type CompanyRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewCompanyRepo creates a new company repository.
func NewCompanyRepo(txm *postgres.TxManager) *CompanyRepo {
	return &CompanyRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetSettings loads the pricing settings of a company.
func (r *CompanyRepo) GetSettings(ctx context.Context, companyID id.ID) (*catalog.CompanySettings, error) {
	q := r.builder.Select(
		"id", "default_margin_percent", "tier_defaults", "tier_rules", "snapshot_enabled",
	).From(companiesTable).
		Where(squirrel.Eq{"id": companyID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row companyRow
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("company", companyID)
		}
		return nil, fmt.Errorf("get company settings: %w", err)
	}

	settings := &catalog.CompanySettings{
		CompanyID:            row.ID,
		DefaultMarginPercent: row.DefaultMarginPercent,
		SnapshotEnabled:      row.SnapshotEnabled,
	}
	if len(row.TierDefaults) > 0 {
		if err := json.Unmarshal(row.TierDefaults, &settings.TierDefaults); err != nil {
			return nil, fmt.Errorf("decode tier defaults: %w", err)
		}
	}
	if len(row.TierRules) > 0 {
		if err := json.Unmarshal(row.TierRules, &settings.TierRules); err != nil {
			return nil, fmt.Errorf("decode tier rules: %w", err)
		}
	}

	return settings, nil
}

// SetDefaultMargin updates the company-wide default margin percent.
func (r *CompanyRepo) SetDefaultMargin(ctx context.Context, companyID id.ID, marginPercent types.Money) error {
	q := r.builder.Update(companiesTable).
		Set("default_margin_percent", marginPercent).
		Where(squirrel.Eq{"id": companyID})

	return r.execUpdate(ctx, q, companyID)
}

// SetTierDefault updates one tier's margin percent inside the
// tier_defaults jsonb document.
func (r *CompanyRepo) SetTierDefault(ctx context.Context, companyID id.ID, tier string, marginPercent types.Money) error {
	sql := `
		UPDATE cat_companies
		SET tier_defaults = jsonb_set(COALESCE(tier_defaults, '{}'::jsonb), ARRAY[$2], to_jsonb($3::text))
		WHERE id = $1
	`

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, companyID, tier, marginPercent.String())
	if err != nil {
		return fmt.Errorf("set tier default: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("company", companyID)
	}
	return nil
}

// SetSnapshotEnabled flips the per-tenant snapshot routing flag.
func (r *CompanyRepo) SetSnapshotEnabled(ctx context.Context, companyID id.ID, enabled bool) error {
	q := r.builder.Update(companiesTable).
		Set("snapshot_enabled", enabled).
		Where(squirrel.Eq{"id": companyID})

	return r.execUpdate(ctx, q, companyID)
}

func (r *CompanyRepo) execUpdate(ctx context.Context, q squirrel.UpdateBuilder, companyID id.ID) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("company", companyID)
	}
	return nil
}

// Ensure interface compliance.
var _ catalog.CompanyRepository = (*CompanyRepo)(nil)
