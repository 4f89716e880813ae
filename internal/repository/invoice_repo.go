package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finhub-labs/invoiceflow/internal/models"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no invoice record matches the given id.
var ErrNotFound = fmt.Errorf("invoice record not found")

// InvoiceRepository handles invoice database operations
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

const invoiceColumns = `
	invoice_id, vendor_id, document_name, document_url, vendor_name,
	invoice_number, invoice_amount, invoice_hours, hourly_rate, invoice_date,
	due_date, status, approval_status, vendor_hours, approved_hours,
	approved_by, payment_amount, payment_date, payment_ref, notes,
	created_at, last_updated_at`

// Create inserts a new invoice record.
func (r *InvoiceRepository) Create(ctx context.Context, record *models.InvoiceRecord) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var payAmount *float64
	var payDate *time.Time
	var payRef *string
	if record.PaymentDetails != nil {
		payAmount = &record.PaymentDetails.Amount
		payDate = &record.PaymentDetails.Date
		payRef = &record.PaymentDetails.Reference
	}

	_, err := r.db.ExecContext(ctx, query,
		record.InvoiceID,
		record.VendorID,
		record.DocumentName,
		record.DocumentURL,
		record.VendorName,
		record.InvoiceNumber,
		record.InvoiceAmount,
		record.InvoiceHours,
		record.HourlyRate,
		record.InvoiceDate,
		record.DueDate,
		record.Status,
		record.ApprovalStatus,
		record.VendorHours,
		record.ApprovedHours,
		record.ApprovedBy,
		payAmount,
		payDate,
		payRef,
		record.Notes,
		record.CreatedAt,
		record.LastUpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice record",
			zap.String("invoice_id", record.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to create invoice record: %w", err)
	}
	return nil
}

// GetByID fetches one invoice record. Returns ErrNotFound when absent.
func (r *InvoiceRepository) GetByID(ctx context.Context, invoiceID string) (*models.InvoiceRecord, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_id = ?`

	record, err := scanInvoice(r.db.QueryRowContext(ctx, query, invoiceID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get invoice record",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice record: %w", err)
	}
	return record, nil
}

// Update persists the full mutable field set of an existing record.
// Last write wins; there is no revision counter.
func (r *InvoiceRepository) Update(ctx context.Context, record *models.InvoiceRecord) error {
	query := `
		UPDATE invoices SET
			vendor_name = ?, invoice_number = ?, invoice_amount = ?,
			invoice_hours = ?, hourly_rate = ?, invoice_date = ?, due_date = ?,
			status = ?, approval_status = ?, vendor_hours = ?, approved_hours = ?,
			approved_by = ?, payment_amount = ?, payment_date = ?, payment_ref = ?,
			notes = ?, last_updated_at = ?
		WHERE invoice_id = ?
	`

	var payAmount *float64
	var payDate *time.Time
	var payRef *string
	if record.PaymentDetails != nil {
		payAmount = &record.PaymentDetails.Amount
		payDate = &record.PaymentDetails.Date
		payRef = &record.PaymentDetails.Reference
	}

	result, err := r.db.ExecContext(ctx, query,
		record.VendorName,
		record.InvoiceNumber,
		record.InvoiceAmount,
		record.InvoiceHours,
		record.HourlyRate,
		record.InvoiceDate,
		record.DueDate,
		record.Status,
		record.ApprovalStatus,
		record.VendorHours,
		record.ApprovedHours,
		record.ApprovedBy,
		payAmount,
		payDate,
		payRef,
		record.Notes,
		record.LastUpdatedAt,
		record.InvoiceID,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice record",
			zap.String("invoice_id", record.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to update invoice record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an invoice record.
func (r *InvoiceRepository) Delete(ctx context.Context, invoiceID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE invoice_id = ?`, invoiceID)
	if err != nil {
		r.logger.Error("Failed to delete invoice record",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to delete invoice record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByVendor returns a vendor's records, newest first.
func (r *InvoiceRepository) ListByVendor(ctx context.Context, vendorID string) ([]*models.InvoiceRecord, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE vendor_id = ? ORDER BY created_at DESC`
	return r.queryInvoices(ctx, query, vendorID)
}

// ListAll returns every record, newest first.
func (r *InvoiceRepository) ListAll(ctx context.Context) ([]*models.InvoiceRecord, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices ORDER BY created_at DESC`
	return r.queryInvoices(ctx, query)
}

// FindByInvoiceNumber returns all records carrying the given invoice number,
// for duplicate detection.
func (r *InvoiceRepository) FindByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]*models.InvoiceRecord, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_number = ? COLLATE NOCASE`
	return r.queryInvoices(ctx, query, invoiceNumber)
}

func (r *InvoiceRepository) queryInvoices(ctx context.Context, query string, args ...any) ([]*models.InvoiceRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query invoice records", zap.Error(err))
		return nil, fmt.Errorf("failed to query invoice records: %w", err)
	}
	defer rows.Close()

	var records []*models.InvoiceRecord
	for rows.Next() {
		record, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoice records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*models.InvoiceRecord, error) {
	var record models.InvoiceRecord
	var payAmount *float64
	var payDate *time.Time
	var payRef *string

	err := row.Scan(
		&record.InvoiceID,
		&record.VendorID,
		&record.DocumentName,
		&record.DocumentURL,
		&record.VendorName,
		&record.InvoiceNumber,
		&record.InvoiceAmount,
		&record.InvoiceHours,
		&record.HourlyRate,
		&record.InvoiceDate,
		&record.DueDate,
		&record.Status,
		&record.ApprovalStatus,
		&record.VendorHours,
		&record.ApprovedHours,
		&record.ApprovedBy,
		&payAmount,
		&payDate,
		&payRef,
		&record.Notes,
		&record.CreatedAt,
		&record.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if payAmount != nil || payRef != nil {
		record.PaymentDetails = &models.PaymentDetails{}
		if payAmount != nil {
			record.PaymentDetails.Amount = *payAmount
		}
		if payDate != nil {
			record.PaymentDetails.Date = *payDate
		}
		if payRef != nil {
			record.PaymentDetails.Reference = *payRef
		}
	}
	return &record, nil
}

// CountByStatus aggregates record counts per status for the dashboard.
func (r *InvoiceRepository) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM invoices GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count invoices by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status models.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// TotalAmount sums invoice_amount across all records.
func (r *InvoiceRepository) TotalAmount(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `SELECT SUM(invoice_amount) FROM invoices`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum invoice amounts: %w", err)
	}
	return total.Float64, nil
}
