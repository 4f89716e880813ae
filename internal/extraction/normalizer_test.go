package extraction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_AliasMapping(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want func(t *testing.T, got FieldSet)
	}{
		{
			name: "ocr schema keys",
			raw: map[string]any{
				"InvoiceId":    "INV-100",
				"VendorName":   "Acme Corp",
				"InvoiceTotal": 500.0,
				"InvoiceDate":  "2024-01-05",
			},
			want: func(t *testing.T, got FieldSet) {
				assert.Equal(t, "INV-100", got.InvoiceNumber)
				assert.Equal(t, "Acme Corp", got.VendorName)
				require.NotNil(t, got.InvoiceAmount)
				assert.Equal(t, 500.0, *got.InvoiceAmount)
				require.NotNil(t, got.InvoiceDate)
				assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), *got.InvoiceDate)
			},
		},
		{
			name: "orchestrator csv vocabulary",
			raw: map[string]any{
				"Invoice_Number": "2025-014",
				"Vendor_Name":    "Northwind Consulting",
				"Invoice_Amount": "$24,336.00",
				"Invoice_Hours":  "169",
				"Hourly_Rate":    "144",
			},
			want: func(t *testing.T, got FieldSet) {
				assert.Equal(t, "2025-014", got.InvoiceNumber)
				require.NotNil(t, got.InvoiceAmount)
				assert.Equal(t, 24336.0, *got.InvoiceAmount)
				require.NotNil(t, got.InvoiceHours)
				assert.Equal(t, 169.0, *got.InvoiceHours)
				require.NotNil(t, got.HourlyRate)
				assert.Equal(t, 144.0, *got.HourlyRate)
			},
		},
		{
			name: "quantity counts as hours",
			raw:  map[string]any{"Quantity": 152.5},
			want: func(t *testing.T, got FieldSet) {
				require.NotNil(t, got.InvoiceHours)
				assert.Equal(t, 152.5, *got.InvoiceHours)
			},
		},
		{
			name: "unknown keys are ignored",
			raw:  map[string]any{"Confidence": 0.98, "Page_Count": 3},
			want: func(t *testing.T, got FieldSet) {
				assert.True(t, got.IsEmpty())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want(t, Normalize(tt.raw))
		})
	}
}

func TestNormalize_DropsUnparseableValues(t *testing.T) {
	got := Normalize(map[string]any{
		"Invoice_Number": "INV-7",
		"Invoice_Amount": "not a number",
		"Invoice_Date":   "sometime last week",
		"Vendor_Name":    "null",
		"Due_Date":       nil,
	})

	assert.Equal(t, "INV-7", got.InvoiceNumber)
	assert.Empty(t, got.VendorName)
	assert.Nil(t, got.InvoiceAmount)
	assert.Nil(t, got.InvoiceDate)
	assert.Nil(t, got.DueDate)
}

func TestNormalize_DateFormats(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2025-06-30", time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)},
		{"06/30/2025", time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)},
		{"Jun 30, 2025", time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)},
		{"2025-12-20 00:00:00", time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Normalize(map[string]any{"Invoice_Date": tt.input})
			require.NotNil(t, got.InvoiceDate)
			assert.True(t, tt.want.Equal(*got.InvoiceDate))
		})
	}
}

func TestNormalize_IsPure(t *testing.T) {
	raw := map[string]any{"Invoice_Number": "INV-1", "Invoice_Amount": "100"}
	_ = Normalize(raw)

	assert.Equal(t, map[string]any{"Invoice_Number": "INV-1", "Invoice_Amount": "100"}, raw)
}
