package extraction

import (
	"encoding/csv"
	"encoding/json"
	"regexp"
	"strings"
)

// The orchestrator answers in free form: sometimes a fenced JSON object,
// sometimes a CSV table, sometimes markdown bullets. ParseFreeForm tries each
// shape in order and returns raw provider keys for Normalize to map.

var (
	jsonBlockPattern = regexp.MustCompile("(?is)```json\\s*(\\{.*?\\})\\s*```")
	anyBlockPattern  = regexp.MustCompile("(?is)```\\s*(\\{.*?\"Invoice_Number\".*?\\})\\s*```")
	csvBlockPattern  = regexp.MustCompile(`(?is)Invoice_Number[,:]?\s*Vendor_Name[^\n]*\n[^\n]+(?:\n[^\n]+)*`)
	fencePattern     = regexp.MustCompile("```[^\n]*\n?")
	bulletPattern    = regexp.MustCompile(`[-*]\s*\*\*([^:*]+):?\*\*\s*:?\s*(.+)`)
)

// ParseFreeForm extracts a provider field mapping from an orchestrator
// free-form result. It returns an empty map when nothing recognizable is
// found; callers treat that as "no fields extracted".
func ParseFreeForm(text string) map[string]any {
	if strings.TrimSpace(text) == "" {
		return map[string]any{}
	}
	if fields := parseJSONBlock(text); len(fields) > 0 {
		return fields
	}
	if fields := parseCSVBlock(text); len(fields) > 0 {
		return fields
	}
	return parseBullets(text)
}

// parseJSONBlock looks for a fenced ```json object.
func parseJSONBlock(text string) map[string]any {
	match := jsonBlockPattern.FindStringSubmatch(text)
	if match == nil {
		match = anyBlockPattern.FindStringSubmatch(text)
	}
	if match == nil {
		return nil
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(match[1]), &parsed); err != nil {
		return nil
	}
	return parsed
}

// parseCSVBlock looks for a CSV table whose header starts with
// Invoice_Number,Vendor_Name and reads the first data row.
func parseCSVBlock(text string) map[string]any {
	match := csvBlockPattern.FindString(text)
	if match == "" {
		return nil
	}
	match = fencePattern.ReplaceAllString(match, "")

	reader := csv.NewReader(strings.NewReader(strings.TrimSpace(match)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil
	}
	row, err := reader.Read()
	if err != nil {
		return nil
	}

	out := make(map[string]any, len(header))
	for i, key := range header {
		if i >= len(row) {
			break
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}
		out[strings.TrimSpace(key)] = value
	}
	return out
}

// parseBullets handles markdown bullet output like "- **Invoice_Hours:** 152".
func parseBullets(text string) map[string]any {
	out := map[string]any{}
	for _, match := range bulletPattern.FindAllStringSubmatch(text, -1) {
		key := strings.ReplaceAll(strings.TrimSpace(match[1]), " ", "_")
		value := strings.TrimSpace(match[2])
		// Drop trailing parentheticals: "144 (from timesheet)".
		if idx := strings.Index(value, "("); idx > 0 {
			value = strings.TrimSpace(value[:idx])
		}
		if value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
