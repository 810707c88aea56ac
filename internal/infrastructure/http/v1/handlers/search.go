package handlers

import (
	"github.com/gin-gonic/gin"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/domain/catalog"
	"rxledger/internal/domain/search"
	"rxledger/internal/infrastructure/http/v1/dto"
)

// SearchHandler serves item search.
type SearchHandler struct {
	BaseHandler
	service   *search.Service
	companies catalog.CompanyRepository
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(service *search.Service, companies catalog.CompanyRepository) *SearchHandler {
	return &SearchHandler{service: service, companies: companies}
}

// Search handles GET /items/search.
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if !h.BindQuery(c, &req) {
		return
	}

	companyID := h.CompanyID(c)
	ctx := c.Request.Context()

	q := search.Query{
		CompanyID:      companyID,
		Text:           req.Text,
		Limit:          req.Limit,
		IncludePricing: req.IncludePricing,
	}

	if req.BranchID != "" {
		branchID, err := id.Parse(req.BranchID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid branch_id").WithDetail("value", req.BranchID))
			return
		}
		q.BranchID = &branchID
	}

	// The routing flag is read fresh per request and handed to the
	// service as data.
	settings, err := h.companies.GetSettings(ctx, companyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	q.SnapshotEnabled = settings.SnapshotEnabled

	result, err := h.service.Search(ctx, q)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewSearchResponse(result))
}
