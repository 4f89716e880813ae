package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finhub-labs/invoiceflow/internal/hours"
	"github.com/finhub-labs/invoiceflow/internal/models"
	"github.com/finhub-labs/invoiceflow/internal/repository"
)

// UpdateFields applies a partial edit to an existing record. Setting
// approved hours triggers hours validation (external first, deterministic
// local fallback); other fields save without classification. The current
// record is re-read before mutating; concurrent edits are last-write-wins.
func (p *Pipeline) UpdateFields(ctx context.Context, invoiceID string, update models.FieldUpdate, changedBy string) (*models.InvoiceRecord, error) {
	record, err := p.reader.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, invoiceID)
		}
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}

	oldStatus := record.ApprovalStatus
	applyUpdate(record, update)

	hoursChanged := update.ApprovedHours != nil
	if hoursChanged && record.VendorHours != nil {
		p.classifyHours(ctx, record)
	} else if hoursChanged {
		p.logger.Info("Approved hours set without vendor hours on file, skipping classification",
			zap.String("invoice_id", invoiceID))
	}

	record.LastUpdatedAt = time.Now().UTC()

	entry := models.AuditLogEntry{
		InvoiceID: invoiceID,
		EventType: models.AuditEventStatusChange,
		OldStatus: string(oldStatus),
		NewStatus: string(record.ApprovalStatus),
		ChangedBy: changedBy,
		Record:    record,
	}
	if err := p.synchronizer.CommitUpdate(ctx, record, entry); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}

	if hoursChanged {
		p.notifyIfReviewNeeded(ctx, record)
	}
	return record, nil
}

// classifyHours runs the hours validation engine and folds its outcome into
// the record. The engine never fails; a collaborator outage just means the
// local comparison decided.
func (p *Pipeline) classifyHours(ctx context.Context, record *models.InvoiceRecord) {
	session := p.sessionFor(record.InvoiceID)
	outcome := p.hoursEngine.Evaluate(ctx, hours.ValidationRequest{
		InvoiceID:     record.InvoiceID,
		SessionID:     session.ID,
		VendorHours:   *record.VendorHours,
		ApprovedHours: *record.ApprovedHours,
		HourlyRate:    record.HourlyRate,
		InvoiceAmount: record.InvoiceAmount,
	})

	record.ApprovalStatus = outcome.Classification
	switch outcome.Classification {
	case models.ApprovalComplete:
		record.Status = models.StatusComplete
	case models.ApprovalNeedApproval:
		record.Status = models.StatusNeedApproval
	case models.ApprovalNeedManualReview:
		record.Status = models.StatusNeedManualReview
	}
	// Payment details exist only while the hours stand reconciled; a
	// reclassification away from Complete clears any earlier sub-record.
	record.PaymentDetails = outcome.PaymentDetails

	p.logger.Info("Hours classified",
		zap.String("invoice_id", record.InvoiceID),
		zap.String("classification", string(outcome.Classification)),
		zap.String("source", outcome.Source))
}

// Approve records manager sign-off on an invoice.
func (p *Pipeline) Approve(ctx context.Context, invoiceID, approvedBy, notes string) (*models.InvoiceRecord, error) {
	record, err := p.reader.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, invoiceID)
		}
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}

	oldStatus := record.ApprovalStatus
	record.ApprovalStatus = models.ApprovalApproved
	record.ApprovedBy = approvedBy
	if notes != "" {
		record.Notes = notes
	}
	record.LastUpdatedAt = time.Now().UTC()

	entry := models.AuditLogEntry{
		InvoiceID: invoiceID,
		EventType: models.AuditEventStatusChange,
		OldStatus: string(oldStatus),
		NewStatus: string(record.ApprovalStatus),
		ChangedBy: approvedBy,
		Record:    record,
	}
	if err := p.synchronizer.CommitUpdate(ctx, record, entry); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	return record, nil
}

// Delete removes a record from all three stores plus its stored document.
func (p *Pipeline) Delete(ctx context.Context, invoiceID, deletedBy string) error {
	record, err := p.reader.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, invoiceID)
		}
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}

	entry := models.AuditLogEntry{
		InvoiceID: invoiceID,
		EventType: models.AuditEventDelete,
		ChangedBy: deletedBy,
		Record:    record,
	}
	if err := p.synchronizer.CommitDelete(ctx, invoiceID, entry); err != nil {
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}

	if record.DocumentURL != "" {
		if err := p.files.Delete(record.DocumentURL); err != nil {
			p.logger.Warn("Failed to remove deleted invoice's document",
				zap.String("invoice_id", invoiceID),
				zap.Error(err))
		}
	}
	p.dropSession(invoiceID)
	return nil
}

// applyUpdate folds submitted fields into the record.
func applyUpdate(record *models.InvoiceRecord, update models.FieldUpdate) {
	if update.VendorName != nil {
		record.VendorName = *update.VendorName
	}
	if update.InvoiceNumber != nil {
		record.InvoiceNumber = *update.InvoiceNumber
	}
	if update.InvoiceAmount != nil {
		record.InvoiceAmount = update.InvoiceAmount
	}
	if update.InvoiceHours != nil {
		record.InvoiceHours = update.InvoiceHours
	}
	if update.HourlyRate != nil {
		record.HourlyRate = update.HourlyRate
	}
	if update.InvoiceDate != nil {
		record.InvoiceDate = update.InvoiceDate
	}
	if update.DueDate != nil {
		record.DueDate = update.DueDate
	}
	if update.VendorHours != nil {
		record.VendorHours = update.VendorHours
	}
	if update.ApprovedHours != nil {
		record.ApprovedHours = update.ApprovedHours
	}
	if update.Notes != nil {
		record.Notes = *update.Notes
	}
}
