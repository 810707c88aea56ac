package refreshqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rxledger/internal/core/id"
	"rxledger/internal/core/tx"
	"rxledger/pkg/logger"
)

// Refresher recomputes one snapshot row. Implemented by
// snapshot.Refresher; redeclared here so the processor does not depend
// on the engine package.
type Refresher interface {
	Refresh(ctx context.Context, companyID, branchID, itemID id.ID) error
}

// ItemPager pages a company's item ids by keyset. Implemented by the
// catalog item repository.
type ItemPager interface {
	ListIDsAfter(ctx context.Context, companyID, afterID id.ID, limit int) ([]id.ID, error)
}

// Config bounds a processor run.
type Config struct {
	// ChunkSize is the number of items refreshed per transaction in a
	// branch-wide job.
	ChunkSize int

	// ClaimLease makes a claimed job visible again after this long, so a
	// crashed worker's branch job is eventually reclaimed.
	ClaimLease time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:  200,
		ClaimLease: 15 * time.Minute,
	}
}

// Processor drains the refresh queue. Branch-wide jobs commit one chunk
// at a time, trading whole-job atomicity for a bounded lock and memory
// footprint; the idempotent refresh makes re-processing after a crash
// harmless.
type Processor struct {
	jobs      Repository
	items     ItemPager
	refresher Refresher
	txm       tx.Manager
	cfg       Config
}

// NewProcessor creates a queue processor.
func NewProcessor(jobs Repository, items ItemPager, refresher Refresher, txm tx.Manager, cfg Config) *Processor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	return &Processor{
		jobs:      jobs,
		items:     items,
		refresher: refresher,
		txm:       txm,
		cfg:       cfg,
	}
}

// RunOnce claims and processes at most one job. Returns whether a job
// was worked, so callers can poll tightly while the queue is non-empty.
func (p *Processor) RunOnce(ctx context.Context) (bool, error) {
	job, err := p.jobs.ClaimNext(ctx, p.cfg.ClaimLease)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	logger.Info(ctx, "processing refresh job",
		"job_id", job.ID,
		"branch_id", job.BranchID,
		"branch_wide", job.BranchWide(),
		"reason", job.Reason,
	)

	if job.BranchWide() {
		err = p.processBranchJob(ctx, job)
	} else {
		err = p.processItemJob(ctx, job)
	}
	if err != nil {
		// Leave processed_at unset: the job stays claimed until the
		// lease expires and is then retried by any worker.
		logger.Error(ctx, "refresh job failed",
			"job_id", job.ID,
			"error", err,
		)
		return true, err
	}

	return true, nil
}

// processItemJob refreshes a single (item, branch) in one transaction
// and marks the job processed in the same commit.
func (p *Processor) processItemJob(ctx context.Context, job *Job) error {
	return p.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		fresh, err := p.jobs.Get(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("reload job: %w", err)
		}
		if fresh.ProcessedAt != nil {
			// Another worker finished it between claim and here.
			return nil
		}
		if err := p.refresher.Refresh(ctx, job.CompanyID, job.BranchID, *job.ItemID); err != nil {
			return fmt.Errorf("refresh %s: %w", *job.ItemID, err)
		}
		return p.jobs.MarkProcessed(ctx, job.ID)
	})
}

// errJobAlreadyProcessed aborts a branch job whose row another worker
// finished between claim and chunk start.
var errJobAlreadyProcessed = errors.New("job already processed")

// processBranchJob pages the company's item ids in chunks, one
// transaction per chunk. The paging cursor commits with each chunk, so
// an interrupted run resumes after the last durable chunk instead of
// starting over.
func (p *Processor) processBranchJob(ctx context.Context, job *Job) error {
	after := id.Nil()
	if job.Cursor != nil {
		after = *job.Cursor
	}

	for {
		ids, err := p.items.ListIDsAfter(ctx, job.CompanyID, after, p.cfg.ChunkSize)
		if err != nil {
			return fmt.Errorf("page items after %s: %w", after, err)
		}
		if len(ids) == 0 {
			break
		}

		err = p.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			fresh, err := p.jobs.Get(ctx, job.ID)
			if err != nil {
				return fmt.Errorf("reload job: %w", err)
			}
			if fresh.ProcessedAt != nil {
				return errJobAlreadyProcessed
			}
			for _, itemID := range ids {
				if err := p.refresher.Refresh(ctx, job.CompanyID, job.BranchID, itemID); err != nil {
					return fmt.Errorf("refresh %s: %w", itemID, err)
				}
			}
			return p.jobs.SetCursor(ctx, job.ID, ids[len(ids)-1])
		})
		if errors.Is(err, errJobAlreadyProcessed) {
			// Nothing left to do, and MarkProcessed would fail on the
			// already-processed row.
			return nil
		}
		if err != nil {
			return err
		}

		logger.Debug(ctx, "branch refresh chunk committed",
			"job_id", job.ID,
			"chunk", len(ids),
			"last_item", ids[len(ids)-1],
		)

		after = ids[len(ids)-1]
		if len(ids) < p.cfg.ChunkSize {
			break
		}
	}

	return p.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return p.jobs.MarkProcessed(ctx, job.ID)
	})
}

// Worker polls the queue until the context is cancelled. Multiple
// workers may run side by side: claims use SKIP LOCKED and refresh is
// idempotent.
type Worker struct {
	processor *Processor
	interval  time.Duration
	log       *logger.Logger
}

// NewWorker creates a polling worker.
func NewWorker(processor *Processor, interval time.Duration, log *logger.Logger) *Worker {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Worker{
		processor: processor,
		interval:  interval,
		log:       log.WithComponent("refresh-worker"),
	}
}

// Run blocks until ctx is done. While jobs keep coming it loops without
// waiting for the ticker.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("refresh worker stopping")
			return
		case <-ticker.C:
			for {
				worked, err := w.processor.RunOnce(ctx)
				if err != nil {
					w.log.Errorw("refresh run failed", "error", err)
					break
				}
				if !worked {
					break
				}
			}
		}
	}
}
