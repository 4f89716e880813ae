package register

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/finhub-labs/invoiceflow/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var headerRow = []string{
	"Invoice ID", "Vendor ID", "Vendor Name", "Invoice Number", "Document",
	"Amount", "Hours", "Hourly Rate", "Invoice Date", "Due Date",
	"Status", "Approval Status", "Vendor Hours", "Approved Hours",
	"Approved By", "Payment Amount", "Payment Reference", "Notes", "Last Updated",
}

// ExcelRegister mirrors invoice records into a spreadsheet read by the
// accounts team. It is a best-effort projection of the database, never a
// source of truth; callers log its failures and move on.
type ExcelRegister struct {
	path  string
	sheet string

	// The register is one shared workbook file; serialize writers.
	mu     sync.Mutex
	logger *zap.Logger
}

// NewExcelRegister creates a register mirror writing to path.
func NewExcelRegister(path, sheet string, logger *zap.Logger) *ExcelRegister {
	if sheet == "" {
		sheet = "Invoices"
	}
	return &ExcelRegister{
		path:   path,
		sheet:  sheet,
		logger: logger,
	}
}

// Upsert writes the record's row, replacing an existing row with the same
// invoice id or appending a new one.
func (r *ExcelRegister) Upsert(record *models.InvoiceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.open()
	if err != nil {
		return err
	}
	defer f.Close()

	row, err := r.findRow(f, record.InvoiceID)
	if err != nil {
		return err
	}
	if row == 0 {
		rows, err := f.GetRows(r.sheet)
		if err != nil {
			return fmt.Errorf("failed to read register sheet: %w", err)
		}
		row = len(rows) + 1
	}

	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(r.sheet, cell, rowValues(record)); err != nil {
		return fmt.Errorf("failed to write register row: %w", err)
	}

	if err := r.save(f); err != nil {
		return err
	}
	r.logger.Debug("Register row upserted",
		zap.String("invoice_id", record.InvoiceID),
		zap.Int("row", row))
	return nil
}

// Remove deletes the row for an invoice id. Absent rows are not an error.
func (r *ExcelRegister) Remove(invoiceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.open()
	if err != nil {
		return err
	}
	defer f.Close()

	row, err := r.findRow(f, invoiceID)
	if err != nil {
		return err
	}
	if row == 0 {
		return nil
	}
	if err := f.RemoveRow(r.sheet, row); err != nil {
		return fmt.Errorf("failed to remove register row: %w", err)
	}
	return r.save(f)
}

// open loads the workbook, creating it with a header row when absent.
func (r *ExcelRegister) open() (*excelize.File, error) {
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		f := excelize.NewFile()
		index, err := f.NewSheet(r.sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to create register sheet: %w", err)
		}
		f.SetActiveSheet(index)
		if r.sheet != "Sheet1" {
			_ = f.DeleteSheet("Sheet1")
		}
		if err := f.SetSheetRow(r.sheet, "A1", &headerRow); err != nil {
			return nil, fmt.Errorf("failed to write register header: %w", err)
		}
		return f, nil
	}

	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open register workbook: %w", err)
	}
	return f, nil
}

// findRow returns the 1-based row holding the invoice id, or 0.
func (r *ExcelRegister) findRow(f *excelize.File, invoiceID string) (int, error) {
	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to read register sheet: %w", err)
	}
	for i, row := range rows {
		if len(row) > 0 && row[0] == invoiceID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (r *ExcelRegister) save(f *excelize.File) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create register directory: %w", err)
	}
	if err := f.SaveAs(r.path); err != nil {
		return fmt.Errorf("failed to save register workbook: %w", err)
	}
	return nil
}

func rowValues(record *models.InvoiceRecord) *[]any {
	values := []any{
		record.InvoiceID,
		record.VendorID,
		record.VendorName,
		record.InvoiceNumber,
		record.DocumentName,
		floatCell(record.InvoiceAmount),
		floatCell(record.InvoiceHours),
		floatCell(record.HourlyRate),
		dateCell(record.InvoiceDate),
		dateCell(record.DueDate),
		string(record.Status),
		string(record.ApprovalStatus),
		floatCell(record.VendorHours),
		floatCell(record.ApprovedHours),
		record.ApprovedBy,
	}
	if record.PaymentDetails != nil {
		values = append(values, record.PaymentDetails.Amount, record.PaymentDetails.Reference)
	} else {
		values = append(values, "", "")
	}
	values = append(values, record.Notes, record.LastUpdatedAt.Format(time.RFC3339))
	return &values
}

func floatCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func dateCell(t *time.Time) any {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
