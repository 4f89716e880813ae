package orchestrator

import "github.com/google/uuid"

// Session groups an invoice's multi-turn orchestrator calls (extraction,
// then later hours validation) under shared collaborator-side context. One
// session per invoice; the id is persisted alongside the record by callers
// that need the continuation.
type Session struct {
	ID        string
	InvoiceID string
}

// NewSession opens a session handle for an invoice.
func NewSession(invoiceID string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		InvoiceID: invoiceID,
	}
}
