// Package queue_repo provides the PostgreSQL implementation of the
// snapshot refresh queue.
package queue_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/domain/refreshqueue"
	"rxledger/internal/infrastructure/storage/postgres"
)

const queueTable = "snapshot_refresh_queue"

var queueColumns = []string{
	"id", "company_id", "branch_id", "item_id", "reason", "cursor",
	"created_at", "claimed_at", "processed_at",
}

// QueueRepo implements refreshqueue.Repository.
//
// Deduplication relies on a partial unique index over (company_id,
// branch_id, COALESCE(item_id, zero-uuid)) WHERE processed_at IS NULL:
// at most one pending job per key, while processed history stays.
type QueueRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewQueueRepo creates a new queue repository.
func NewQueueRepo(txm *postgres.TxManager) *QueueRepo {
	return &QueueRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

// Enqueue inserts a job; a duplicate pending key is a successful no-op.
func (r *QueueRepo) Enqueue(ctx context.Context, job refreshqueue.Job) error {
	if id.IsNil(job.ID) {
		job.ID = id.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = r.now().UTC()
	}

	sql := `
		INSERT INTO snapshot_refresh_queue (id, company_id, branch_id, item_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`

	querier := r.txm.GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		job.ID, job.CompanyID, job.BranchID, job.ItemID, job.Reason, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	return nil
}

// ClaimNext claims the oldest claimable job and commits the claim in a
// single statement. SKIP LOCKED keeps concurrent workers from fighting
// over the same row; the lease cutoff makes jobs of crashed workers
// claimable again.
func (r *QueueRepo) ClaimNext(ctx context.Context, lease time.Duration) (*refreshqueue.Job, error) {
	cutoff := r.now().UTC().Add(-lease)

	sql := `
		WITH next AS (
			SELECT id
			FROM snapshot_refresh_queue
			WHERE processed_at IS NULL
			  AND (claimed_at IS NULL OR claimed_at < $1)
			ORDER BY created_at ASC, id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE snapshot_refresh_queue q
		SET claimed_at = $2
		FROM next
		WHERE q.id = next.id
		RETURNING q.id, q.company_id, q.branch_id, q.item_id, q.reason, q.cursor,
		          q.created_at, q.claimed_at, q.processed_at
	`

	var job refreshqueue.Job
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &job, sql, cutoff, r.now().UTC()); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}

	return &job, nil
}

func (r *QueueRepo) getQuery(jobID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(queueColumns...).
		From(queueTable).
		Where(squirrel.Eq{"id": jobID}).
		Limit(1)
}

func (r *QueueRepo) setCursorQuery(jobID, lastItemID id.ID) squirrel.UpdateBuilder {
	return r.builder.Update(queueTable).
		Set("cursor", lastItemID).
		Where(squirrel.Eq{"id": jobID})
}

func (r *QueueRepo) markProcessedQuery(jobID id.ID, at time.Time) squirrel.UpdateBuilder {
	return r.builder.Update(queueTable).
		Set("processed_at", at).
		Where(squirrel.Eq{"id": jobID}).
		Where("processed_at IS NULL")
}

func (r *QueueRepo) pendingQuery(companyID id.ID, limit int) squirrel.SelectBuilder {
	return r.builder.Select(queueColumns...).
		From(queueTable).
		Where(squirrel.Eq{"company_id": companyID}).
		Where("processed_at IS NULL").
		OrderBy("created_at ASC", "id ASC").
		Limit(uint64(limit))
}

// Get reloads a job.
func (r *QueueRepo) Get(ctx context.Context, jobID id.ID) (*refreshqueue.Job, error) {
	sql, args, err := r.getQuery(jobID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var job refreshqueue.Job
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &job, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("refresh job", jobID)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	return &job, nil
}

// SetCursor records branch-wide paging progress.
func (r *QueueRepo) SetCursor(ctx context.Context, jobID, lastItemID id.ID) error {
	sql, args, err := r.setCursorQuery(jobID, lastItemID).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("refresh job", jobID)
	}

	return nil
}

// MarkProcessed completes the job.
func (r *QueueRepo) MarkProcessed(ctx context.Context, jobID id.ID) error {
	sql, args, err := r.markProcessedQuery(jobID, r.now().UTC()).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("pending refresh job", jobID)
	}

	return nil
}

// Pending lists unprocessed jobs of a company, oldest first.
func (r *QueueRepo) Pending(ctx context.Context, companyID id.ID, limit int) ([]refreshqueue.Job, error) {
	if limit <= 0 {
		limit = 100
	}

	sql, args, err := r.pendingQuery(companyID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var jobs []refreshqueue.Job
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &jobs, sql, args...); err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}

	return jobs, nil
}

// Ensure interface compliance.
var _ refreshqueue.Repository = (*QueueRepo)(nil)
