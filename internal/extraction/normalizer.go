package extraction

import (
	"strconv"
	"strings"
	"time"
)

// fieldAliases maps lowercased provider keys (OCR schema, orchestrator
// CSV/JSON vocabulary, dashboard names) onto canonical field names. Unknown
// keys are ignored.
var fieldAliases = map[string]string{
	"invoice_number": FieldInvoiceNumber,
	"invoiceid":      FieldInvoiceNumber,
	"invoice_id":     FieldInvoiceNumber,

	"vendor_name":      FieldVendorName,
	"vendorname":       FieldVendorName,
	"consultancy_name": FieldVendorName,
	"seller_name":      FieldVendorName,

	"invoice_amount": FieldInvoiceAmount,
	"invoice_total":  FieldInvoiceAmount,
	"invoicetotal":   FieldInvoiceAmount,
	"total_amount":   FieldInvoiceAmount,
	"amount_due":     FieldInvoiceAmount,

	"invoice_hours":  FieldInvoiceHours,
	"vendor_hours":   FieldInvoiceHours,
	"vendor hours":   FieldInvoiceHours,
	"hours":          FieldInvoiceHours,
	"total_hours":    FieldInvoiceHours,
	"billable_hours": FieldInvoiceHours,
	"quantity":       FieldInvoiceHours,

	"hourly_rate": FieldHourlyRate,
	"pay_rate":    FieldHourlyRate,

	"invoice_date": FieldInvoiceDate,
	"invoicedate":  FieldInvoiceDate,

	"due_date": FieldDueDate,
	"duedate":  FieldDueDate,
}

// dateLayouts are tried in order when coercing date strings.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// Normalize maps heterogeneous provider output onto the canonical field set,
// applying type coercion per field. Unparseable values are dropped, not
// defaulted. An empty or entirely unparseable input yields an empty FieldSet,
// which callers treat as a valid low-confidence outcome, not an error.
//
// Normalize is a pure function: it never mutates its input and has no side
// effects.
func Normalize(raw map[string]any) FieldSet {
	var out FieldSet
	for key, value := range raw {
		canonical, ok := fieldAliases[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			continue
		}
		if isNullish(value) {
			continue
		}
		switch canonical {
		case FieldInvoiceNumber:
			if s := coerceString(value); s != "" {
				out.InvoiceNumber = s
			}
		case FieldVendorName:
			if s := coerceString(value); s != "" {
				out.VendorName = s
			}
		case FieldInvoiceAmount:
			if v, ok := coerceNumber(value); ok {
				out.InvoiceAmount = &v
			}
		case FieldInvoiceHours:
			if v, ok := coerceNumber(value); ok {
				out.InvoiceHours = &v
			}
		case FieldHourlyRate:
			if v, ok := coerceNumber(value); ok {
				out.HourlyRate = &v
			}
		case FieldInvoiceDate:
			if t, ok := coerceDate(value); ok {
				out.InvoiceDate = &t
			}
		case FieldDueDate:
			if t, ok := coerceDate(value); ok {
				out.DueDate = &t
			}
		}
	}
	return out
}

// isNullish filters provider placeholders that mean "no value".
func isNullish(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "null", "none", "n/a":
			return true
		}
	}
	return false
}

func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// coerceNumber accepts native numbers and currency-styled strings
// ("$24,336.00", "169").
func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		s := strings.TrimSpace(v)
		s = strings.TrimLeft(s, "$€£¥ ")
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func coerceDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		// Timestamps like "2025-12-20 00:00:00" still carry a usable date.
		if len(s) >= 10 {
			if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
