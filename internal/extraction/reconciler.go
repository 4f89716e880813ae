package extraction

import (
	"regexp"
	"strconv"

	"go.uber.org/zap"
)

// maxPlausibleHours caps the regex fallback at one month of wall-clock time;
// larger matches are almost always amounts or reference numbers.
const maxPlausibleHours = 744

var hoursPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:total\s+)?(?:billable\s+)?(?:invoice\s+)?hours\s*[:\-]?\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:hours?|hrs?)\b`),
	regexp.MustCompile(`(?i)(?:quantity|qty)\s*[:\-]?\s*(\d+(?:\.\d+)?)`),
}

// Merged is the reconciled field set plus per-field provenance.
type Merged struct {
	Fields FieldSet
	// Sources records which extraction source supplied each populated field,
	// keyed by canonical field name.
	Sources map[string]Source
	// Degraded is true when the orchestrator produced nothing at all and the
	// merge ran on OCR output alone.
	Degraded bool
}

// Reconciler merges orchestrator and OCR extraction output into a single
// field set. Precedence is applied independently per field: the orchestrator
// value wins where present, OCR fills the gaps, and invoice hours get a
// final regex scan over the raw text when both sources are silent.
type Reconciler struct {
	logger *zap.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(logger *zap.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Merge reconciles the two extraction sources. Either input may be nil (a
// failed or skipped collaborator); the merge never fails, it just produces
// fewer fields. fullText is the raw OCR text used for the hours fallback.
func (r *Reconciler) Merge(orchestrator, ocr *FieldSet, fullText string) Merged {
	merged := Merged{
		Sources:  make(map[string]Source),
		Degraded: orchestrator.IsEmpty(),
	}
	if orchestrator == nil {
		orchestrator = &FieldSet{}
	}
	if ocr == nil {
		ocr = &FieldSet{}
	}

	if merged.Fields.InvoiceNumber = orchestrator.InvoiceNumber; merged.Fields.InvoiceNumber != "" {
		merged.Sources[FieldInvoiceNumber] = SourceOrchestrator
	} else if merged.Fields.InvoiceNumber = ocr.InvoiceNumber; merged.Fields.InvoiceNumber != "" {
		merged.Sources[FieldInvoiceNumber] = SourceOCR
	}

	if merged.Fields.VendorName = orchestrator.VendorName; merged.Fields.VendorName != "" {
		merged.Sources[FieldVendorName] = SourceOrchestrator
	} else if merged.Fields.VendorName = ocr.VendorName; merged.Fields.VendorName != "" {
		merged.Sources[FieldVendorName] = SourceOCR
	}

	merged.Fields.InvoiceAmount = r.pickNumber(merged.Sources, FieldInvoiceAmount, orchestrator.InvoiceAmount, ocr.InvoiceAmount)
	merged.Fields.HourlyRate = r.pickNumber(merged.Sources, FieldHourlyRate, orchestrator.HourlyRate, ocr.HourlyRate)
	merged.Fields.InvoiceHours = r.pickNumber(merged.Sources, FieldInvoiceHours, orchestrator.InvoiceHours, ocr.InvoiceHours)

	if orchestrator.InvoiceDate != nil {
		merged.Fields.InvoiceDate = orchestrator.InvoiceDate
		merged.Sources[FieldInvoiceDate] = SourceOrchestrator
	} else if ocr.InvoiceDate != nil {
		merged.Fields.InvoiceDate = ocr.InvoiceDate
		merged.Sources[FieldInvoiceDate] = SourceOCR
	}

	if orchestrator.DueDate != nil {
		merged.Fields.DueDate = orchestrator.DueDate
		merged.Sources[FieldDueDate] = SourceOrchestrator
	} else if ocr.DueDate != nil {
		merged.Fields.DueDate = ocr.DueDate
		merged.Sources[FieldDueDate] = SourceOCR
	}

	// Last resort for hours only: scan the raw extracted text.
	if merged.Fields.InvoiceHours == nil {
		if hours, ok := ScanHours(fullText); ok {
			merged.Fields.InvoiceHours = &hours
			merged.Sources[FieldInvoiceHours] = SourceRegexFallback
			r.logger.Debug("Invoice hours recovered by text scan", zap.Float64("hours", hours))
		}
	}

	if merged.Degraded {
		r.logger.Warn("Merging without orchestrator output, OCR fields only")
	}
	return merged
}

// pickNumber applies orchestrator-over-OCR precedence for one numeric field.
func (r *Reconciler) pickNumber(sources map[string]Source, field string, orchestrator, ocr *float64) *float64 {
	if orchestrator != nil {
		sources[field] = SourceOrchestrator
		return orchestrator
	}
	if ocr != nil {
		sources[field] = SourceOCR
		return ocr
	}
	return nil
}

// ScanHours extracts a plausible hours figure from raw invoice text. It
// returns the first match in (0, 744].
func ScanHours(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	for _, pattern := range hoursPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		if value > 0 && value <= maxPlausibleHours {
			return value, true
		}
	}
	return 0, false
}
