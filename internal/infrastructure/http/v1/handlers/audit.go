package handlers

import (
	"github.com/gin-gonic/gin"

	"rxledger/internal/core/apperror"
	"rxledger/internal/core/id"
	"rxledger/internal/infrastructure/http/v1/dto"
	"rxledger/internal/infrastructure/storage/postgres"
)

// AuditHandler serves the change history of audited entities.
type AuditHandler struct {
	BaseHandler
	audit *postgres.AuditService
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(audit *postgres.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// History handles GET /audit/:entity/:id.
func (h *AuditHandler) History(c *gin.Context) {
	entityType := c.Param("entity")
	if entityType == "" {
		h.Error(c, apperror.NewValidation("missing entity type"))
		return
	}

	entityID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid entity id").WithDetail("value", c.Param("id")))
		return
	}

	limit := h.ParseIntQuery(c, "limit", 50)

	entries, err := h.audit.GetEntityHistory(c.Request.Context(), entityType, entityID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewAuditHistoryResponse(entries))
}
