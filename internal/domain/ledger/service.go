package ledger

import (
	"context"
	"fmt"
	"time"

	"rxledger/internal/core/id"
	"rxledger/internal/core/tx"
	"rxledger/pkg/logger"
)

// Auditor records posting actions for diagnostics. Implemented by the
// postgres audit store; nil disables auditing.
type Auditor interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}

// Service posts business stock movements. Every post runs the ledger
// insert and the snapshot routing in one transaction: if the refresh of
// a single affected key fails, the whole posting rolls back and no
// ledger entry survives without its snapshot update.
type Service struct {
	repo   Repository
	router RefreshRouter
	txm    tx.ReadOnlyManager
	audit  Auditor
}

// NewService creates a posting service.
func NewService(repo Repository, router RefreshRouter, txm tx.ReadOnlyManager, audit Auditor) *Service {
	return &Service{
		repo:   repo,
		router: router,
		txm:    txm,
		audit:  audit,
	}
}

// Post validates and appends entries, then routes every affected
// (item, branch) key through the scope router. Callers are sale
// posting, purchase posting, adjustments, transfers and stock takes;
// they all go through here so no ledger write can bypass the snapshot
// contract.
func (s *Service) Post(ctx context.Context, entries []Entry, reason string) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for i := range entries {
		if id.IsNil(entries[i].ID) {
			entries[i].ID = id.New()
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
		if err := entries[i].Validate(ctx); err != nil {
			return err
		}
	}

	keys := distinctKeys(entries)

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, entries); err != nil {
			return fmt.Errorf("insert entries: %w", err)
		}
		if err := s.router.RouteKeys(ctx, keys, reason); err != nil {
			return fmt.Errorf("route snapshot refresh: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.audit != nil {
		if auditErr := s.audit.LogChange(ctx, "ledger_posting", entries[0].ID, "post", map[string]any{
			"entries": len(entries),
			"keys":    len(keys),
			"reason":  reason,
		}); auditErr != nil {
			logger.Warn(ctx, "audit log failed", "error", auditErr)
		}
	}

	logger.Info(ctx, "posted ledger entries",
		"count", len(entries),
		"keys", len(keys),
		"reason", reason,
	)

	return nil
}

// History returns recent movements for a key, newest first. Runs in a
// read-only transaction.
func (s *Service) History(ctx context.Context, key Key, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	var entries []Entry
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		entries, err = s.repo.History(ctx, key, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// distinctKeys returns the distinct snapshot keys of a posting batch,
// in first-seen order.
func distinctKeys(entries []Entry) []Key {
	seen := make(map[Key]struct{}, len(entries))
	keys := make([]Key, 0, len(entries))
	for _, e := range entries {
		k := e.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
