package handlers

import (
	"github.com/gin-gonic/gin"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/domain/refreshqueue"
	"rxledger/internal/domain/snapshot"
	"rxledger/internal/infrastructure/http/v1/dto"
)

// SnapshotHandler serves manual refresh triggers and queue diagnostics.
type SnapshotHandler struct {
	BaseHandler
	router *snapshot.Router
	queue  refreshqueue.Repository
}

// NewSnapshotHandler creates a snapshot handler.
func NewSnapshotHandler(router *snapshot.Router, queue refreshqueue.Repository) *SnapshotHandler {
	return &SnapshotHandler{router: router, queue: queue}
}

// Refresh handles POST /snapshot/refresh. An item-scoped request
// refreshes inline before responding; a branch-wide one only enqueues.
func (h *SnapshotHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !h.BindJSON(c, &req) {
		return
	}

	companyID := h.CompanyID(c)
	ctx := c.Request.Context()

	branchID, err := id.Parse(req.BranchID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid branchId").WithDetail("value", req.BranchID))
		return
	}

	if req.ItemID == "" {
		if err := h.router.BranchChanged(ctx, companyID, branchID, "manual refresh"); err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, dto.RefreshResponse{Status: "enqueued"})
		return
	}

	itemID, err := id.Parse(req.ItemID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid itemId").WithDetail("value", req.ItemID))
		return
	}

	if err := h.router.ItemChanged(ctx, companyID, branchID, itemID, "manual refresh"); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.RefreshResponse{Status: "refreshed"})
}

// Queue handles GET /snapshot/queue.
func (h *SnapshotHandler) Queue(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", 100)

	jobs, err := h.queue.Pending(c.Request.Context(), h.CompanyID(c), limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewQueueResponse(jobs))
}
