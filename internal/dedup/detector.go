package dedup

import (
	"context"
	"fmt"
	"strings"

	"github.com/finhub-labs/invoiceflow/internal/extraction"
	"github.com/finhub-labs/invoiceflow/internal/models"
	"go.uber.org/zap"
)

// RecordFinder is the slice of the record store the detector needs. Detection
// is read-only; it never mutates state.
type RecordFinder interface {
	FindByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]*models.InvoiceRecord, error)
}

// Match is the detection outcome. ExistingID is set only when Duplicate is true.
type Match struct {
	Duplicate  bool
	ExistingID string
}

// Detector decides whether a candidate's normalized fields describe the same
// real-world invoice as a record already stored.
//
// A match requires agreement on invoice number, vendor name, amount (exact),
// and date (exact, date precision), restricted to the fields the candidate
// actually has. A candidate without a legible invoice number is never flagged:
// name/amount/date alone would mask distinct invoices from the same vendor on
// the same day.
type Detector struct {
	finder RecordFinder
	logger *zap.Logger
}

// NewDetector creates a duplicate detector.
func NewDetector(finder RecordFinder, logger *zap.Logger) *Detector {
	return &Detector{finder: finder, logger: logger}
}

// Check runs duplicate detection for the candidate field set.
func (d *Detector) Check(ctx context.Context, candidate extraction.FieldSet) (Match, error) {
	number := strings.TrimSpace(candidate.InvoiceNumber)
	if number == "" {
		return Match{}, nil
	}

	existing, err := d.finder.FindByInvoiceNumber(ctx, number)
	if err != nil {
		return Match{}, fmt.Errorf("find by invoice number: %w", err)
	}

	for _, record := range existing {
		if d.sameInvoice(candidate, record) {
			d.logger.Info("Duplicate invoice detected",
				zap.String("invoice_number", number),
				zap.String("existing_id", record.InvoiceID))
			return Match{Duplicate: true, ExistingID: record.InvoiceID}, nil
		}
	}
	return Match{}, nil
}

// sameInvoice compares one stored record against the candidate, skipping
// fields the candidate does not have.
func (d *Detector) sameInvoice(candidate extraction.FieldSet, record *models.InvoiceRecord) bool {
	if !strings.EqualFold(strings.TrimSpace(candidate.InvoiceNumber), strings.TrimSpace(record.InvoiceNumber)) {
		return false
	}
	if candidate.VendorName != "" {
		if !strings.EqualFold(strings.TrimSpace(candidate.VendorName), strings.TrimSpace(record.VendorName)) {
			return false
		}
	}
	if candidate.InvoiceAmount != nil {
		if record.InvoiceAmount == nil || *record.InvoiceAmount != *candidate.InvoiceAmount {
			return false
		}
	}
	if candidate.InvoiceDate != nil {
		if record.InvoiceDate == nil {
			return false
		}
		cy, cm, cd := candidate.InvoiceDate.Date()
		ry, rm, rd := record.InvoiceDate.Date()
		if cy != ry || cm != rm || cd != rd {
			return false
		}
	}
	return true
}
