package orchestrator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/finhub-labs/invoiceflow/internal/hours"
	"github.com/finhub-labs/invoiceflow/internal/models"
)

func buildExtractionPrompt(documentName, documentText string) string {
	var sb strings.Builder
	sb.WriteString("Extract the invoice fields from the document below.\n\n")
	sb.WriteString("Return a JSON object with exactly these keys (use null for anything not present):\n")
	sb.WriteString(`{"Invoice_Number": "string", "Vendor_Name": "string", "Invoice_Amount": number, "Invoice_Hours": number, "Hourly_Rate": number, "Invoice_Date": "YYYY-MM-DD", "Due_Date": "YYYY-MM-DD"}`)
	sb.WriteString("\n\nExtract exactly what the document says. Do not guess missing values.\n\n")
	sb.WriteString("Document name: " + documentName + "\n")
	sb.WriteString("Document text:\n" + documentText)
	return sb.String()
}

func buildHoursPrompt(req hours.ValidationRequest) string {
	var sb strings.Builder
	sb.WriteString("For the invoice discussed in this session, compare the vendor's billed hours against the approved hours.\n\n")
	fmt.Fprintf(&sb, "Vendor hours: %.2f\nApproved hours: %.2f\n", req.VendorHours, req.ApprovedHours)
	if req.HourlyRate != nil {
		fmt.Fprintf(&sb, "Hourly rate: %.2f\n", *req.HourlyRate)
	}
	if req.InvoiceAmount != nil {
		fmt.Fprintf(&sb, "Invoice amount: %.2f\n", *req.InvoiceAmount)
	}
	sb.WriteString("\nClassify the result as one of: Complete (figures agree), NeedManualReview (approved below vendor claim), NeedApproval (approved above vendor claim).\n")
	sb.WriteString(`When Complete and the rate is known, compute payment as rate times approved hours. Return JSON: {"classification": "...", "payment_details": {"amount": number, "reference": "string"}}`)
	return sb.String()
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

type hoursReply struct {
	Classification string `json:"classification"`
	PaymentDetails *struct {
		Amount    float64 `json:"amount"`
		Reference string  `json:"reference"`
	} `json:"payment_details"`
}

// parseHoursReply extracts the classification JSON from a free-form reply.
func parseHoursReply(raw string) (*hours.ValidationResult, error) {
	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return nil, fmt.Errorf("no JSON object in hours validation reply")
	}

	var reply hoursReply
	if err := json.Unmarshal([]byte(match), &reply); err != nil {
		return nil, fmt.Errorf("failed to parse hours validation reply: %w", err)
	}

	var classification models.ApprovalStatus
	switch strings.TrimSpace(reply.Classification) {
	case "Complete":
		classification = models.ApprovalComplete
	case "NeedApproval":
		classification = models.ApprovalNeedApproval
	case "NeedManualReview":
		classification = models.ApprovalNeedManualReview
	default:
		return nil, fmt.Errorf("unrecognized hours classification %q", reply.Classification)
	}

	result := &hours.ValidationResult{Classification: classification}
	if reply.PaymentDetails != nil && classification == models.ApprovalComplete {
		result.PaymentDetails = &models.PaymentDetails{
			Amount:    reply.PaymentDetails.Amount,
			Date:      time.Now().UTC(),
			Reference: reply.PaymentDetails.Reference,
		}
	}
	return result, nil
}
