package dto

import (
	"time"

	"rxledger/internal/domain/refreshqueue"
)

// RefreshRequest triggers a manual refresh. With an item id the refresh
// runs synchronously; without one, a branch-wide job is enqueued.
type RefreshRequest struct {
	BranchID string `json:"branchId" binding:"required"`
	ItemID   string `json:"itemId"`
}

// RefreshResponse reports how the request was handled.
type RefreshResponse struct {
	Status string `json:"status"` // "refreshed" or "enqueued"
}

// QueueJob is one pending refresh job.
type QueueJob struct {
	ID         string     `json:"id"`
	BranchID   string     `json:"branchId"`
	ItemID     *string    `json:"itemId,omitempty"`
	Reason     string     `json:"reason"`
	Cursor     *string    `json:"cursor,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ClaimedAt  *time.Time `json:"claimedAt,omitempty"`
	BranchWide bool       `json:"branchWide"`
}

// QueueResponse lists pending refresh jobs.
type QueueResponse struct {
	Count int        `json:"count"`
	Jobs  []QueueJob `json:"jobs"`
}

// NewQueueResponse maps pending jobs.
func NewQueueResponse(jobs []refreshqueue.Job) QueueResponse {
	out := make([]QueueJob, 0, len(jobs))
	for _, j := range jobs {
		job := QueueJob{
			ID:         j.ID.String(),
			BranchID:   j.BranchID.String(),
			Reason:     j.Reason,
			CreatedAt:  j.CreatedAt,
			ClaimedAt:  j.ClaimedAt,
			BranchWide: j.BranchWide(),
		}
		if j.ItemID != nil {
			s := j.ItemID.String()
			job.ItemID = &s
		}
		if j.Cursor != nil {
			s := j.Cursor.String()
			job.Cursor = &s
		}
		out = append(out, job)
	}
	return QueueResponse{Count: len(out), Jobs: out}
}
