package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finhub-labs/invoiceflow/internal/extraction"
	"github.com/finhub-labs/invoiceflow/internal/models"
	"github.com/finhub-labs/invoiceflow/internal/orchestrator"
	"github.com/finhub-labs/invoiceflow/internal/storage"
	"github.com/finhub-labs/invoiceflow/pkg/utils"
)

// IngestRequest is one uploaded document plus the caller's identity context.
type IngestRequest struct {
	VendorID   string
	VendorName string
	FileName   string
	Content    []byte
}

// IngestResult is the definite outcome of an ingestion: a stored record, a
// detected duplicate with the existing record's id, never anything partial.
type IngestResult struct {
	Record     *models.InvoiceRecord
	Duplicate  bool
	ExistingID string
	// Degraded is true when the AI orchestrator contributed nothing and the
	// record was built from OCR fields alone.
	Degraded bool
}

// Ingest runs the full pipeline for one document: validate, store, extract,
// normalize, reconcile, dedupe, persist, mirror, log.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if err := utils.ValidateUpload(req.FileName, int64(len(req.Content))); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	if req.VendorID == "" {
		return nil, fmt.Errorf("%w: vendor id is required", ErrInvalidInput)
	}

	invoiceID := uuid.NewString()
	now := time.Now().UTC()
	documentName := utils.SanitizeFilename(req.FileName)

	folder := storage.MonthFolder(p.invoiceFolder, now)
	documentURL, err := p.files.Store(req.Content, invoiceID+"_"+documentName, folder)
	if err != nil {
		return nil, fmt.Errorf("%w: storing document: %s", ErrPersistence, err)
	}

	p.logger.Info("Document stored, starting extraction",
		zap.String("invoice_id", invoiceID),
		zap.String("vendor_id", req.VendorID),
		zap.String("document_url", documentURL))

	ocrFields, fullText := p.runOCR(ctx, req.Content, documentName, invoiceID)
	orchFields := p.runOrchestrator(ctx, invoiceID, documentName, fullText)

	merged := p.reconciler.Merge(orchFields, ocrFields, fullText)

	match, err := p.detector.Check(ctx, merged.Fields)
	if err != nil {
		// The record was never persisted; the stored document must not
		// outlive it.
		if delErr := p.files.Delete(documentURL); delErr != nil {
			p.logger.Warn("Failed to remove document after duplicate check error",
				zap.String("document_url", documentURL),
				zap.Error(delErr))
		}
		p.dropSession(invoiceID)
		return nil, fmt.Errorf("%w: duplicate check: %s", ErrPersistence, err)
	}
	if match.Duplicate {
		// Extraction work is discarded; correctness over efficiency. The
		// stored document goes with it.
		if err := p.files.Delete(documentURL); err != nil {
			p.logger.Warn("Failed to remove duplicate's document",
				zap.String("document_url", documentURL),
				zap.Error(err))
		}
		p.dropSession(invoiceID)
		return &IngestResult{Duplicate: true, ExistingID: match.ExistingID}, nil
	}

	record := buildRecord(invoiceID, req, documentName, documentURL, merged, now)

	entry := models.AuditLogEntry{
		InvoiceID:     invoiceID,
		Timestamp:     now,
		EventType:     models.AuditEventUpload,
		ExtractedData: extractionSnapshot(merged),
		Record:        record,
	}
	if err := p.synchronizer.CommitNew(ctx, record, entry); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}

	p.logger.Info("Invoice ingested",
		zap.String("invoice_id", invoiceID),
		zap.String("invoice_number", record.InvoiceNumber),
		zap.Bool("degraded", merged.Degraded))

	return &IngestResult{Record: record, Degraded: merged.Degraded}, nil
}

// runOCR analyzes the document with the remote service, degrading to local
// PDF text extraction when the service is missing or fails. A nil field set
// and empty text is a valid worst case.
func (p *Pipeline) runOCR(ctx context.Context, content []byte, documentName, invoiceID string) (*extraction.FieldSet, string) {
	if p.remoteOCR != nil {
		result, err := p.remoteOCR.Analyze(ctx, content, documentName)
		if err == nil {
			fields := extraction.Normalize(result.StructuredFields)
			return &fields, result.FullText
		}
		p.logger.Warn("OCR service unavailable, falling back to local text extraction",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
	}

	if p.localText != nil {
		result, err := p.localText.Analyze(ctx, content, documentName)
		if err == nil {
			fields := extraction.Normalize(result.StructuredFields)
			return &fields, result.FullText
		}
		p.logger.Warn("Local text extraction failed",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
	}

	return nil, ""
}

// runOrchestrator asks the AI orchestrator for its extraction. Any failure
// yields nil; the reconciler proceeds OCR-only.
func (p *Pipeline) runOrchestrator(ctx context.Context, invoiceID, documentName, fullText string) *extraction.FieldSet {
	if p.extractor == nil {
		return nil
	}

	session := p.sessionFor(invoiceID)
	raw, err := p.extractor.Extract(ctx, orchestrator.ExtractRequest{
		Session:      session,
		DocumentName: documentName,
		DocumentText: fullText,
	})
	if err != nil {
		p.logger.Warn("AI orchestrator unavailable, ingesting with OCR fields only",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		return nil
	}

	fields := extraction.Normalize(extraction.ParseFreeForm(raw))
	return &fields
}

func buildRecord(invoiceID string, req IngestRequest, documentName, documentURL string, merged extraction.Merged, now time.Time) *models.InvoiceRecord {
	vendorName := merged.Fields.VendorName
	if vendorName == "" {
		vendorName = req.VendorName
	}

	return &models.InvoiceRecord{
		InvoiceID:      invoiceID,
		VendorID:       req.VendorID,
		DocumentName:   documentName,
		DocumentURL:    documentURL,
		VendorName:     vendorName,
		InvoiceNumber:  merged.Fields.InvoiceNumber,
		InvoiceAmount:  merged.Fields.InvoiceAmount,
		InvoiceHours:   merged.Fields.InvoiceHours,
		HourlyRate:     merged.Fields.HourlyRate,
		InvoiceDate:    merged.Fields.InvoiceDate,
		DueDate:        merged.Fields.DueDate,
		Status:         models.StatusPending,
		ApprovalStatus: models.ApprovalPending,
		// The vendor's claimed hours start out as whatever the invoice bills.
		VendorHours:   merged.Fields.InvoiceHours,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
}

// extractionSnapshot flattens the merged fields with per-field provenance
// for the upload audit entry.
func extractionSnapshot(merged extraction.Merged) map[string]any {
	snapshot := map[string]any{}
	if merged.Fields.InvoiceNumber != "" {
		snapshot[extraction.FieldInvoiceNumber] = merged.Fields.InvoiceNumber
	}
	if merged.Fields.VendorName != "" {
		snapshot[extraction.FieldVendorName] = merged.Fields.VendorName
	}
	if merged.Fields.InvoiceAmount != nil {
		snapshot[extraction.FieldInvoiceAmount] = *merged.Fields.InvoiceAmount
	}
	if merged.Fields.InvoiceHours != nil {
		snapshot[extraction.FieldInvoiceHours] = *merged.Fields.InvoiceHours
	}
	if merged.Fields.HourlyRate != nil {
		snapshot[extraction.FieldHourlyRate] = *merged.Fields.HourlyRate
	}
	if merged.Fields.InvoiceDate != nil {
		snapshot[extraction.FieldInvoiceDate] = merged.Fields.InvoiceDate.Format("2006-01-02")
	}
	if merged.Fields.DueDate != nil {
		snapshot[extraction.FieldDueDate] = merged.Fields.DueDate.Format("2006-01-02")
	}

	sources := map[string]string{}
	for field, source := range merged.Sources {
		sources[field] = source.String()
	}
	if len(sources) > 0 {
		snapshot["field_sources"] = sources
	}
	return snapshot
}
