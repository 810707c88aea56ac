package handlers

import (
	"github.com/gin-gonic/gin"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/domain/ledger"
	"rxledger/internal/infrastructure/http/v1/dto"
)

// LedgerHandler serves stock movement postings and history.
type LedgerHandler struct {
	BaseHandler
	service *ledger.Service
}

// NewLedgerHandler creates a ledger handler.
func NewLedgerHandler(service *ledger.Service) *LedgerHandler {
	return &LedgerHandler{service: service}
}

// Post handles POST /ledger/post. The response is written only after
// the entries and their snapshot refreshes have committed together.
func (h *LedgerHandler) Post(c *gin.Context) {
	var req dto.PostLedgerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	entries, err := req.ToEntries(h.CompanyID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "ledger posting"
	}

	if err := h.service.Post(c.Request.Context(), entries, reason); err != nil {
		h.Error(c, err)
		return
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID.String())
	}

	h.OK(c, dto.PostLedgerResponse{EntryIDs: ids, Posted: len(ids)})
}

// History handles GET /ledger/history.
func (h *LedgerHandler) History(c *gin.Context) {
	branchID, err := id.Parse(c.Query("branch_id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid branch_id"))
		return
	}
	itemID, err := id.Parse(c.Query("item_id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item_id"))
		return
	}
	limit := h.ParseIntQuery(c, "limit", 50)

	key := ledger.Key{CompanyID: h.CompanyID(c), BranchID: branchID, ItemID: itemID}
	entries, err := h.service.History(c.Request.Context(), key, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.LedgerHistoryResponse{Entries: entries})
}
