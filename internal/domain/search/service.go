// Package search routes item lookups between the snapshot table and
// the reduced catalog fallback, and normalizes both into one result
// shape.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/core/types"
	"rxledger/internal/domain/catalog"
	"rxledger/internal/domain/snapshot"
	"rxledger/pkg/logger"
)

// Source identifies which store answered a query. Callers surface it so
// a degraded (fallback) answer is distinguishable from a primary one.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// Query is one search request. SnapshotEnabled is the caller-supplied
// tenant flag; the service never reads it from ambient state.
type Query struct {
	CompanyID id.ID
	// BranchID scopes the search to one branch. Nil means a company-wide
	// catalog lookup, which never uses the snapshot.
	BranchID *id.ID
	Text     string
	Limit    int
	// IncludePricing controls whether the cost and pricing fields
	// (average cost, last purchase price, selling price, margin) appear
	// in the result. Stock, vat and expiry are always included.
	IncludePricing  bool
	SnapshotEnabled bool
}

// ResultItem is the uniform result row. Fields the answering source
// cannot provide are nil, never zero; a nil SellingPrice means
// "unpriced", not "free". Both paths resolve the vat fields; the cost
// fields come from the snapshot only and stay nil on the fallback.
type ResultItem struct {
	ItemID   id.ID  `json:"itemId"`
	BranchID *id.ID `json:"branchId,omitempty"`
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Barcode  string `json:"barcode"`
	PackSize string `json:"packSize"`
	BaseUnit string `json:"baseUnit"`

	VATRate     types.Money         `json:"vatRate"`
	VATCategory catalog.VATCategory `json:"vatCategory"`

	CurrentStock      types.Quantity `json:"currentStock"`
	AverageCost       *types.Money   `json:"averageCost,omitempty"`
	LastPurchasePrice *types.Money   `json:"lastPurchasePrice,omitempty"`
	SellingPrice      *types.Money   `json:"sellingPrice,omitempty"`
	MarginPercent     *types.Money   `json:"marginPercent,omitempty"`
	NextExpiryDate    *time.Time     `json:"nextExpiryDate,omitempty"`
}

// Result is a completed search.
type Result struct {
	Source Source       `json:"source"`
	Items  []ResultItem `json:"items"`
}

// Config bounds the primary path.
type Config struct {
	// PrimaryTimeout caps one snapshot query. On expiry the call falls
	// back; it never blocks the caller past this.
	PrimaryTimeout time.Duration
	DefaultLimit   int
	MaxLimit       int
}

func DefaultConfig() Config {
	return Config{
		PrimaryTimeout: 2 * time.Second,
		DefaultLimit:   25,
		MaxLimit:       100,
	}
}

// Service answers item searches.
type Service struct {
	rows  snapshot.Repository
	items catalog.ItemRepository
	cfg   Config
}

func NewService(rows snapshot.Repository, items catalog.ItemRepository, cfg Config) *Service {
	if cfg.PrimaryTimeout <= 0 {
		cfg.PrimaryTimeout = DefaultConfig().PrimaryTimeout
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultConfig().DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = DefaultConfig().MaxLimit
	}
	return &Service{rows: rows, items: items, cfg: cfg}
}

// Search runs one lookup. Branch-scoped queries of a snapshot-enabled
// company hit the snapshot first; a transient snapshot failure degrades
// this one call to the fallback instead of failing it. Zero rows from a
// healthy snapshot is a trusted answer and does not fall back.
func (s *Service) Search(ctx context.Context, q Query) (*Result, error) {
	if err := s.normalize(&q); err != nil {
		return nil, err
	}

	if q.BranchID == nil || !q.SnapshotEnabled {
		return s.searchFallback(ctx, q)
	}

	res, err := s.searchPrimary(ctx, q)
	if err == nil {
		return res, nil
	}
	if !transient(err) {
		return nil, err
	}

	logger.Warn(ctx, "primary search degraded, using fallback",
		"company_id", q.CompanyID,
		"branch_id", *q.BranchID,
		"error", err,
	)

	res, ferr := s.searchFallback(ctx, q)
	if ferr != nil {
		return nil, apperror.NewStoreUnavailable(fmt.Errorf("primary: %v; fallback: %w", err, ferr))
	}
	return res, nil
}

func (s *Service) normalize(q *Query) error {
	q.Text = strings.ToLower(strings.TrimSpace(q.Text))
	if q.Text == "" {
		return apperror.NewValidation("search text is required").WithDetail("field", "q")
	}
	if id.IsNil(q.CompanyID) {
		return apperror.NewValidation("company_id is required").WithDetail("field", "companyId")
	}
	if q.Limit <= 0 {
		q.Limit = s.cfg.DefaultLimit
	}
	if q.Limit > s.cfg.MaxLimit {
		q.Limit = s.cfg.MaxLimit
	}
	return nil
}

func (s *Service) searchPrimary(ctx context.Context, q Query) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PrimaryTimeout)
	defer cancel()

	rows, err := s.rows.Search(ctx, snapshot.SearchFilter{
		CompanyID: q.CompanyID,
		BranchID:  *q.BranchID,
		Text:      q.Text,
		Limit:     q.Limit,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, &apperror.AppError{
				Code:    apperror.CodeTimeout,
				Message: "snapshot search timed out",
				Err:     err,
			}
		}
		return nil, err
	}

	items := make([]ResultItem, 0, len(rows))
	for _, row := range rows {
		it := ResultItem{
			ItemID:         row.ItemID,
			BranchID:       q.BranchID,
			Name:           row.Name,
			SKU:            row.SKU,
			Barcode:        row.Barcode,
			PackSize:       row.PackSize,
			BaseUnit:       row.BaseUnit,
			VATRate:        row.VATRate,
			VATCategory:    row.VATCategory,
			CurrentStock:   row.CurrentStock,
			NextExpiryDate: row.NextExpiryDate,
		}
		if q.IncludePricing {
			avg := row.AverageCost
			last := row.LastPurchasePrice
			it.AverageCost = &avg
			it.LastPurchasePrice = &last
			it.SellingPrice = row.SellingPrice
			it.MarginPercent = row.MarginPercent
		}
		items = append(items, it)
	}
	return &Result{Source: SourcePrimary, Items: items}, nil
}

// searchFallback is the reduced catalog path: descriptive fields plus a
// live stock aggregate when a branch is given. Pricing and expiry are
// always nil here; the snapshot is the only source for those.
func (s *Service) searchFallback(ctx context.Context, q Query) (*Result, error) {
	rows, err := s.items.SearchWithStock(ctx, q.CompanyID, q.BranchID, q.Text, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("fallback search: %w", err)
	}

	items := make([]ResultItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, ResultItem{
			ItemID:       row.ID,
			BranchID:     q.BranchID,
			Name:         row.Name,
			SKU:          row.SKU,
			Barcode:      row.Barcode,
			PackSize:     row.PackSize,
			BaseUnit:     row.BaseUnit,
			VATRate:      row.VATRate,
			VATCategory:  row.VATCategory,
			CurrentStock: row.CurrentStock,
		})
	}
	return &Result{Source: SourceFallback, Items: items}, nil
}

func transient(err error) bool {
	if apperror.IsTransientStore(err) {
		return true
	}
	// pgx wraps context deadline errors; treat any deadline as transient.
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
