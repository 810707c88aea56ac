package queue_repo

import (
	"testing"
	"time"

	"rxledger/internal/core/id"
)

const allColumns = "id, company_id, branch_id, item_id, reason, cursor, created_at, claimed_at, processed_at"

func TestGetQuery(t *testing.T) {
	r := NewQueueRepo(nil)
	jobID := id.New()

	sql, args, err := r.getQuery(jobID).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	want := "SELECT " + allColumns + " FROM snapshot_refresh_queue WHERE id = $1 LIMIT 1"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(args) != 1 || args[0] != jobID {
		t.Errorf("args = %v, want [%s]", args, jobID)
	}
}

func TestSetCursorQuery(t *testing.T) {
	r := NewQueueRepo(nil)
	jobID, itemID := id.New(), id.New()

	sql, args, err := r.setCursorQuery(jobID, itemID).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	want := "UPDATE snapshot_refresh_queue SET cursor = $1 WHERE id = $2"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(args) != 2 || args[0] != itemID || args[1] != jobID {
		t.Errorf("args = %v, want [%s %s]", args, itemID, jobID)
	}
}

func TestMarkProcessedQuery(t *testing.T) {
	r := NewQueueRepo(nil)
	jobID := id.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sql, args, err := r.markProcessedQuery(jobID, at).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	// The pending-only guard keeps completion idempotent: a second call
	// affects zero rows instead of moving processed_at.
	want := "UPDATE snapshot_refresh_queue SET processed_at = $1 WHERE id = $2 AND processed_at IS NULL"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(args) != 2 || args[0] != at || args[1] != jobID {
		t.Errorf("args = %v, want [%s %s]", args, at, jobID)
	}
}

func TestPendingQuery(t *testing.T) {
	r := NewQueueRepo(nil)
	companyID := id.New()

	sql, args, err := r.pendingQuery(companyID, 50).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	want := "SELECT " + allColumns + " FROM snapshot_refresh_queue " +
		"WHERE company_id = $1 AND processed_at IS NULL " +
		"ORDER BY created_at ASC, id ASC LIMIT 50"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(args) != 1 || args[0] != companyID {
		t.Errorf("args = %v, want [%s]", args, companyID)
	}
}
