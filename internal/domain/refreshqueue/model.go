// Package refreshqueue provides the durable, deduplicated job store for
// bulk snapshot refresh work, and the background processor that drains
// it in bounded chunks.
package refreshqueue

import (
	"context"
	"time"

	"rxledger/internal/core/id"
)

// Job is one pending refresh. A nil ItemID means "refresh every item in
// this branch". At most one pending job exists per (company, branch,
// item) key; duplicate enqueues are silent no-ops.
type Job struct {
	ID        id.ID  `db:"id"`
	CompanyID id.ID  `db:"company_id"`
	BranchID  id.ID  `db:"branch_id"`
	ItemID    *id.ID `db:"item_id"`

	// Reason is diagnostic only; it never influences processing.
	Reason string `db:"reason"`

	// Cursor is the last item id committed by a branch-wide chunk. A
	// worker resuming an interrupted job re-pages from here instead of
	// from the beginning.
	Cursor *id.ID `db:"cursor"`

	CreatedAt   time.Time  `db:"created_at"`
	ClaimedAt   *time.Time `db:"claimed_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}

// BranchWide reports whether the job covers a whole branch.
func (j *Job) BranchWide() bool {
	return j.ItemID == nil
}

// Repository defines the queue store. The scope router writes jobs; the
// processor claims and completes them.
type Repository interface {
	// Enqueue inserts a job unless a pending job for the same key
	// already exists, in which case it is a successful no-op.
	Enqueue(ctx context.Context, job Job) error

	// ClaimNext selects one claimable job (unprocessed, and either
	// unclaimed or claimed longer ago than the lease), marks it claimed
	// and commits immediately so concurrent workers skip it. Returns nil
	// when the queue is empty.
	ClaimNext(ctx context.Context, lease time.Duration) (*Job, error)

	// Get reloads a job. Workers re-check processed_at before acting.
	Get(ctx context.Context, jobID id.ID) (*Job, error)

	// SetCursor records branch-wide paging progress. Called inside the
	// chunk transaction so the cursor commits with the chunk.
	SetCursor(ctx context.Context, jobID, lastItemID id.ID) error

	// MarkProcessed completes the job.
	MarkProcessed(ctx context.Context, jobID id.ID) error

	// Pending lists unprocessed jobs for diagnostics.
	Pending(ctx context.Context, companyID id.ID, limit int) ([]Job, error)
}
