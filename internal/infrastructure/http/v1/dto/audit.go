package dto

import (
	"encoding/json"
	"time"

	"rxledger/internal/infrastructure/storage/postgres"
)

// AuditEntry is one recorded change, with the payload already
// decompressed.
type AuditEntry struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Action     string          `json:"action"`
	Changes    json.RawMessage `json:"changes,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// AuditHistoryResponse lists an entity's audit trail, newest first.
type AuditHistoryResponse struct {
	Count   int          `json:"count"`
	Entries []AuditEntry `json:"entries"`
}

// NewAuditHistoryResponse maps audit rows.
func NewAuditHistoryResponse(entries []postgres.AuditEntry) AuditHistoryResponse {
	out := make([]AuditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntry{
			ID:         e.ID.String(),
			EntityType: e.EntityType,
			EntityID:   e.EntityID.String(),
			Action:     e.Action,
			Changes:    e.Changes,
			CreatedAt:  e.CreatedAt,
		})
	}
	return AuditHistoryResponse{Count: len(out), Entries: out}
}
