package models

import (
	"time"

	"github.com/google/uuid"
)

// ConfirmationRecord is one confirmed (term, row_id, scope) tuple for a
// store. The tuple is unique; re-confirming is a no-op. ConfirmedBy is the
// identity that confirmed, which differs from the scope for team-scoped
// confirmations and for system terms created by promotion.
type ConfirmationRecord struct {
	ID          uuid.UUID `json:"id"`
	StoreName   string    `json:"store_name"`
	Term        string    `json:"term"`
	RowID       int64     `json:"row_id"`
	Scope       Scope     `json:"-"`
	ConfirmedBy string    `json:"confirmed_by"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}
