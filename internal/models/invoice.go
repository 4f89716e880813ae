package models

import "time"

// Status represents the processing/payment stage of an invoice record.
// It is independent of ApprovalStatus: Status tracks where the document is in
// the pipeline, ApprovalStatus tracks manager sign-off.
type Status string

const (
	StatusPending          Status = "Pending"
	StatusProcessing       Status = "Processing"
	StatusComplete         Status = "Complete"
	StatusNeedApproval     Status = "NeedApproval"
	StatusNeedManualReview Status = "NeedManualReview"
	StatusPaymentInitiated Status = "PaymentInitiated"
)

// ApprovalStatus represents manager sign-off state.
type ApprovalStatus string

const (
	ApprovalPending          ApprovalStatus = "Pending"
	ApprovalApproved         ApprovalStatus = "Approved"
	ApprovalComplete         ApprovalStatus = "Complete"
	ApprovalNeedApproval     ApprovalStatus = "NeedApproval"
	ApprovalNeedManualReview ApprovalStatus = "NeedManualReview"
)

// PaymentDetails holds the computed payment sub-record. It stays nil until
// hours reconciliation succeeds.
type PaymentDetails struct {
	Amount    float64   `json:"amount"`
	Date      time.Time `json:"date"`
	Reference string    `json:"reference"`
}

// InvoiceRecord is the canonical persisted invoice entity.
//
// InvoiceID is assigned exactly once at ingestion, before any store write,
// and never changes. VendorHours and ApprovedHours are independently nullable;
// approval transitions only fire when both are present.
type InvoiceRecord struct {
	InvoiceID     string `json:"invoice_id"`
	VendorID      string `json:"vendor_id"`
	DocumentName  string `json:"document_name"`
	DocumentURL   string `json:"document_url"`
	VendorName    string `json:"vendor_name"`
	InvoiceNumber string `json:"invoice_number"`

	InvoiceAmount *float64   `json:"invoice_amount,omitempty"`
	InvoiceHours  *float64   `json:"invoice_hours,omitempty"`
	HourlyRate    *float64   `json:"hourly_rate,omitempty"`
	InvoiceDate   *time.Time `json:"invoice_date,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`

	Status         Status         `json:"status"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`

	VendorHours    *float64        `json:"vendor_hours,omitempty"`
	ApprovedHours  *float64        `json:"approved_hours,omitempty"`
	ApprovedBy     string          `json:"approved_by,omitempty"`
	PaymentDetails *PaymentDetails `json:"payment_details,omitempty"`

	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// FieldUpdate carries a partial set of editable fields for an invoice update.
// Pointers distinguish "not submitted" (nil) from "submitted" values.
type FieldUpdate struct {
	VendorName    *string    `json:"vendor_name,omitempty"`
	InvoiceNumber *string    `json:"invoice_number,omitempty"`
	InvoiceAmount *float64   `json:"invoice_amount,omitempty"`
	InvoiceHours  *float64   `json:"invoice_hours,omitempty"`
	HourlyRate    *float64   `json:"hourly_rate,omitempty"`
	InvoiceDate   *time.Time `json:"invoice_date,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	VendorHours   *float64   `json:"vendor_hours,omitempty"`
	ApprovedHours *float64   `json:"approved_hours,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

// Float64Ptr is a convenience helper for building optional numeric fields.
func Float64Ptr(v float64) *float64 { return &v }

// StringPtr is a convenience helper for building optional string fields.
func StringPtr(s string) *string { return &s }

// TimePtr is a convenience helper for building optional time fields.
func TimePtr(t time.Time) *time.Time { return &t }
