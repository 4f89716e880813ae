package sync

import (
	"context"
	"fmt"

	"github.com/finhub-labs/invoiceflow/internal/models"
	"go.uber.org/zap"
)

// RecordStore is the authoritative database slice the synchronizer writes to.
type RecordStore interface {
	Create(ctx context.Context, record *models.InvoiceRecord) error
	Update(ctx context.Context, record *models.InvoiceRecord) error
	Delete(ctx context.Context, invoiceID string) error
}

// Mirror is the spreadsheet register projection.
type Mirror interface {
	Upsert(record *models.InvoiceRecord) error
	Remove(invoiceID string) error
}

// AuditSink is the append-only audit log.
type AuditSink interface {
	Append(entry models.AuditLogEntry) error
}

// Synchronizer propagates a finalized record to the database, the register
// mirror, and the audit log, in that fixed order. The database write is
// authoritative: its failure aborts the operation before any downstream step
// runs. Mirror and audit failures are logged and swallowed; both stores are
// read by humans for reporting, not by the pipeline for correctness, so they
// stay best-effort, eventually-consistent projections.
type Synchronizer struct {
	store  RecordStore
	mirror Mirror
	audit  AuditSink
	logger *zap.Logger
}

// NewSynchronizer creates a tri-store synchronizer.
func NewSynchronizer(store RecordStore, mirror Mirror, audit AuditSink, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		store:  store,
		mirror: mirror,
		audit:  audit,
		logger: logger,
	}
}

// CommitNew persists a newly ingested record and propagates it downstream.
func (s *Synchronizer) CommitNew(ctx context.Context, record *models.InvoiceRecord, entry models.AuditLogEntry) error {
	if err := s.store.Create(ctx, record); err != nil {
		return fmt.Errorf("database write failed: %w", err)
	}
	s.propagate(record, entry)
	return nil
}

// CommitUpdate persists a mutated record and propagates it downstream.
func (s *Synchronizer) CommitUpdate(ctx context.Context, record *models.InvoiceRecord, entry models.AuditLogEntry) error {
	if err := s.store.Update(ctx, record); err != nil {
		return fmt.Errorf("database write failed: %w", err)
	}
	s.propagate(record, entry)
	return nil
}

// CommitDelete removes a record everywhere. The database delete is
// authoritative; the register row removal and the delete audit entry are
// best-effort.
func (s *Synchronizer) CommitDelete(ctx context.Context, invoiceID string, entry models.AuditLogEntry) error {
	if err := s.store.Delete(ctx, invoiceID); err != nil {
		return fmt.Errorf("database delete failed: %w", err)
	}

	if err := s.mirror.Remove(invoiceID); err != nil {
		s.logger.Warn("Register row removal failed, mirror is stale",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
	}
	if err := s.audit.Append(entry); err != nil {
		s.logger.Warn("Audit entry write failed",
			zap.String("invoice_id", invoiceID),
			zap.String("event_type", string(entry.EventType)),
			zap.Error(err))
	}
	return nil
}

// propagate runs the best-effort downstream steps after a committed database
// write. Failures never reach the caller.
func (s *Synchronizer) propagate(record *models.InvoiceRecord, entry models.AuditLogEntry) {
	if err := s.mirror.Upsert(record); err != nil {
		s.logger.Warn("Register mirror write failed, mirror is stale",
			zap.String("invoice_id", record.InvoiceID),
			zap.Error(err))
	}
	if err := s.audit.Append(entry); err != nil {
		s.logger.Warn("Audit entry write failed",
			zap.String("invoice_id", record.InvoiceID),
			zap.String("event_type", string(entry.EventType)),
			zap.Error(err))
	}
}
