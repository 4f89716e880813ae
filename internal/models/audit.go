package models

import "time"

// AuditEventType identifies the kind of audit trail event.
type AuditEventType string

const (
	AuditEventUpload       AuditEventType = "upload"
	AuditEventStatusChange AuditEventType = "status_change"
	AuditEventDelete       AuditEventType = "delete"
)

// AuditLogEntry is an append-only audit record. Entries are never mutated
// after write; ordering is by Timestamp.
type AuditLogEntry struct {
	InvoiceID string         `json:"invoice_id"`
	Timestamp time.Time      `json:"timestamp"`
	EventType AuditEventType `json:"event_type"`

	// Upload events carry the extraction snapshot.
	ExtractedData map[string]any `json:"extracted_data,omitempty"`

	// Status change events carry the transition.
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
	ChangedBy string `json:"changed_by,omitempty"`

	// Snapshot of the database record at the time of the event, if available.
	Record *InvoiceRecord `json:"database_record,omitempty"`
}
