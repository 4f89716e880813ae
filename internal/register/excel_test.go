package register

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/finhub-labs/invoiceflow/internal/models"
)

func registerRecord(id, number string) *models.InvoiceRecord {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return &models.InvoiceRecord{
		InvoiceID:      id,
		VendorID:       "vendor-1",
		VendorName:     "Acme",
		InvoiceNumber:  number,
		DocumentName:   "invoice.pdf",
		InvoiceAmount:  models.Float64Ptr(500),
		Status:         models.StatusPending,
		ApprovalStatus: models.ApprovalPending,
		CreatedAt:      now,
		LastUpdatedAt:  now,
	}
}

func sheetRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Invoices")
	require.NoError(t, err)
	return rows
}

func TestUpsert_CreatesWorkbookWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "register.xlsx")
	reg := NewExcelRegister(path, "Invoices", zap.NewNop())

	require.NoError(t, reg.Upsert(registerRecord("inv-1", "INV-100")))

	rows := sheetRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, "Invoice ID", rows[0][0])
	assert.Equal(t, "inv-1", rows[1][0])
	assert.Equal(t, "INV-100", rows[1][3])
}

func TestUpsert_ReplacesExistingRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "register.xlsx")
	reg := NewExcelRegister(path, "Invoices", zap.NewNop())

	require.NoError(t, reg.Upsert(registerRecord("inv-1", "INV-100")))

	updated := registerRecord("inv-1", "INV-100")
	updated.Status = models.StatusComplete
	require.NoError(t, reg.Upsert(updated))

	rows := sheetRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, "Complete", rows[1][10])
}

func TestUpsert_AppendsDistinctRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "register.xlsx")
	reg := NewExcelRegister(path, "Invoices", zap.NewNop())

	require.NoError(t, reg.Upsert(registerRecord("inv-1", "INV-100")))
	require.NoError(t, reg.Upsert(registerRecord("inv-2", "INV-101")))

	rows := sheetRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, "inv-1", rows[1][0])
	assert.Equal(t, "inv-2", rows[2][0])
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "register.xlsx")
	reg := NewExcelRegister(path, "Invoices", zap.NewNop())

	require.NoError(t, reg.Upsert(registerRecord("inv-1", "INV-100")))
	require.NoError(t, reg.Upsert(registerRecord("inv-2", "INV-101")))
	require.NoError(t, reg.Remove("inv-1"))

	rows := sheetRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, "inv-2", rows[1][0])

	// Removing an absent id is a no-op.
	require.NoError(t, reg.Remove("inv-999"))
}
