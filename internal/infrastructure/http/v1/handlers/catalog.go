package handlers

import (
	"github.com/gin-gonic/gin"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/domain/catalog"
	"rxledger/internal/domain/pricing"
	"rxledger/internal/infrastructure/http/v1/dto"
)

// CatalogHandler serves item edits and pricing settings.
type CatalogHandler struct {
	BaseHandler
	items   *catalog.Service
	pricing *pricing.Service
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(items *catalog.Service, pricing *pricing.Service) *CatalogHandler {
	return &CatalogHandler{items: items, pricing: pricing}
}

// GetItem handles GET /items/:id.
func (h *CatalogHandler) GetItem(c *gin.Context) {
	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id"))
		return
	}

	item, err := h.items.GetItem(c.Request.Context(), h.CompanyID(c), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, item)
}

// UpdateItem handles PUT /items/:id. The edit commits together with the
// refresh jobs that fan it out to every branch.
func (h *CatalogHandler) UpdateItem(c *gin.Context) {
	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id"))
		return
	}

	var req dto.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	item, err := h.items.GetItem(ctx, h.CompanyID(c), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.Apply(item)

	if err := h.items.UpdateItem(ctx, item); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, item)
}

// SetCompanyMargin handles PUT /pricing/margin.
func (h *CatalogHandler) SetCompanyMargin(c *gin.Context) {
	var req dto.SetMarginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.pricing.SetCompanyMargin(c.Request.Context(), h.CompanyID(c), req.MarginPercent); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "company margin updated")
}

// SetTierMargin handles PUT /pricing/tiers/:tier.
func (h *CatalogHandler) SetTierMargin(c *gin.Context) {
	tier := c.Param("tier")

	var req dto.SetMarginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.pricing.SetTierDefault(c.Request.Context(), h.CompanyID(c), tier, req.MarginPercent); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "tier margin updated")
}
