package extraction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fptr(v float64) *float64 { return &v }

func TestMerge_OrchestratorWinsPerField(t *testing.T) {
	r := NewReconciler(zap.NewNop())

	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	orch := &FieldSet{
		InvoiceNumber: "INV-200",
		InvoiceAmount: fptr(1200),
	}
	ocr := &FieldSet{
		InvoiceNumber: "INV-2OO", // OCR misread, must lose
		VendorName:    "Acme Corp",
		InvoiceAmount: fptr(1199.99),
		InvoiceDate:   &date,
	}

	got := r.Merge(orch, ocr, "")

	assert.Equal(t, "INV-200", got.Fields.InvoiceNumber)
	assert.Equal(t, SourceOrchestrator, got.Sources[FieldInvoiceNumber])

	// OCR fills fields the orchestrator did not produce.
	assert.Equal(t, "Acme Corp", got.Fields.VendorName)
	assert.Equal(t, SourceOCR, got.Sources[FieldVendorName])
	require.NotNil(t, got.Fields.InvoiceDate)
	assert.Equal(t, SourceOCR, got.Sources[FieldInvoiceDate])

	require.NotNil(t, got.Fields.InvoiceAmount)
	assert.Equal(t, 1200.0, *got.Fields.InvoiceAmount)
	assert.False(t, got.Degraded)
}

func TestMerge_DegradedWithoutOrchestrator(t *testing.T) {
	r := NewReconciler(zap.NewNop())

	ocr := &FieldSet{VendorName: "Acme Corp"}
	got := r.Merge(nil, ocr, "")

	assert.True(t, got.Degraded)
	assert.Equal(t, "Acme Corp", got.Fields.VendorName)
	assert.Equal(t, SourceOCR, got.Sources[FieldVendorName])
}

func TestMerge_BothNilProducesEmptySet(t *testing.T) {
	r := NewReconciler(zap.NewNop())

	got := r.Merge(nil, nil, "")

	assert.True(t, got.Fields.IsEmpty())
	assert.True(t, got.Degraded)
	assert.Empty(t, got.Sources)
}

func TestMerge_HoursRegexFallback(t *testing.T) {
	r := NewReconciler(zap.NewNop())

	text := "Consulting services for May.\nTotal Hours: 152\nAmount due: $21,888.00"
	got := r.Merge(&FieldSet{InvoiceNumber: "INV-5"}, &FieldSet{}, text)

	require.NotNil(t, got.Fields.InvoiceHours)
	assert.Equal(t, 152.0, *got.Fields.InvoiceHours)
	assert.Equal(t, SourceRegexFallback, got.Sources[FieldInvoiceHours])
}

func TestMerge_HoursFromSourceSkipsScan(t *testing.T) {
	r := NewReconciler(zap.NewNop())

	got := r.Merge(&FieldSet{InvoiceHours: fptr(40)}, nil, "Total Hours: 999999")

	require.NotNil(t, got.Fields.InvoiceHours)
	assert.Equal(t, 40.0, *got.Fields.InvoiceHours)
	assert.Equal(t, SourceOrchestrator, got.Sources[FieldInvoiceHours])
}

func TestScanHours(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   float64
		wantOK bool
	}{
		{"labelled hours", "Billable Hours: 168.5", 168.5, true},
		{"inline unit", "Worked 42 hrs on site", 42, true},
		{"quantity row", "Qty: 120  Rate: 95.00", 120, true},
		{"implausibly large", "hours: 24336", 0, false},
		{"zero", "hours: 0", 0, false},
		{"no match", "Amount due net 30", 0, false},
		{"empty text", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ScanHours(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
