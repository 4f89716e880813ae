package extraction

import "time"

// Source identifies where an extracted field value came from. Merging
// operates over these explicit variants rather than untyped maps, so the
// per-field precedence rules stay visible at the type level.
type Source int

const (
	// SourceOrchestrator is the AI orchestrator's extraction output. It
	// reasons over document context and takes precedence per field.
	SourceOrchestrator Source = iota
	// SourceOCR is the OCR service's structured field output, used when the
	// orchestrator produced nothing for a field.
	SourceOCR
	// SourceRegexFallback is the last-resort raw-text scan, currently only
	// used for invoice hours.
	SourceRegexFallback
)

// String returns a human-readable source name for logs and audit entries.
func (s Source) String() string {
	switch s {
	case SourceOrchestrator:
		return "orchestrator"
	case SourceOCR:
		return "ocr"
	case SourceRegexFallback:
		return "regex_fallback"
	default:
		return "unknown"
	}
}

// Canonical field names shared by the normalizer, reconciler, and callers
// reporting per-field provenance.
const (
	FieldInvoiceNumber = "invoice_number"
	FieldVendorName    = "vendor_name"
	FieldInvoiceAmount = "invoice_amount"
	FieldInvoiceHours  = "invoice_hours"
	FieldHourlyRate    = "hourly_rate"
	FieldInvoiceDate   = "invoice_date"
	FieldDueDate       = "due_date"
)

// FieldSet is the canonical, typed field mapping produced by normalization.
// Nil pointers and empty strings mean "not extracted".
type FieldSet struct {
	InvoiceNumber string
	VendorName    string
	InvoiceAmount *float64
	InvoiceHours  *float64
	HourlyRate    *float64
	InvoiceDate   *time.Time
	DueDate       *time.Time
}

// IsEmpty reports whether no field was extracted at all.
func (f *FieldSet) IsEmpty() bool {
	if f == nil {
		return true
	}
	return f.InvoiceNumber == "" && f.VendorName == "" &&
		f.InvoiceAmount == nil && f.InvoiceHours == nil &&
		f.HourlyRate == nil && f.InvoiceDate == nil && f.DueDate == nil
}
