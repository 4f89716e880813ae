package hours

import (
	"context"
	"fmt"
	"time"

	"github.com/finhub-labs/invoiceflow/internal/models"
	"go.uber.org/zap"
)

// Validator is the external hours-validation collaborator, normally backed by
// the AI orchestrator session that handled the invoice's extraction.
type Validator interface {
	ValidateHours(ctx context.Context, req ValidationRequest) (*ValidationResult, error)
}

// ValidationRequest carries both hour figures and enough invoice context for
// the collaborator to compute payment details.
type ValidationRequest struct {
	InvoiceID     string
	SessionID     string
	VendorHours   float64
	ApprovedHours float64
	HourlyRate    *float64
	InvoiceAmount *float64
}

// ValidationResult is the collaborator's classification. PaymentDetails is set
// only when the classification is Complete.
type ValidationResult struct {
	Classification models.ApprovalStatus
	PaymentDetails *models.PaymentDetails
}

// Outcome is what the engine hands back to the caller. Source records whether
// the external collaborator or the local fallback produced it.
type Outcome struct {
	Classification models.ApprovalStatus
	PaymentDetails *models.PaymentDetails
	Source         string
}

const (
	sourceValidator = "validator"
	sourceFallback  = "local_fallback"
)

// Engine classifies the relationship between vendor-submitted and approved
// hours. The external validator is tried first with a bounded timeout; any
// failure, timeout, or malformed result degrades to the deterministic local
// comparison. The engine never surfaces a collaborator error to the caller.
type Engine struct {
	validator Validator
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewEngine creates an hours validation engine. validator may be nil, in
// which case every classification uses the local fallback.
func NewEngine(validator Validator, timeout time.Duration, logger *zap.Logger) *Engine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		validator: validator,
		timeout:   timeout,
		now:       time.Now,
		logger:    logger,
	}
}

// Evaluate classifies one (vendor_hours, approved_hours) pair. It is called
// only when approved hours are being set or changed; callers must leave the
// approval status untouched when approved hours are absent.
func (e *Engine) Evaluate(ctx context.Context, req ValidationRequest) Outcome {
	if e.validator != nil {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		result, err := e.validator.ValidateHours(callCtx, req)
		if err == nil && result != nil && validClassification(result.Classification) {
			e.logger.Info("Hours validated by collaborator",
				zap.String("invoice_id", req.InvoiceID),
				zap.String("classification", string(result.Classification)))
			return Outcome{
				Classification: result.Classification,
				PaymentDetails: result.PaymentDetails,
				Source:         sourceValidator,
			}
		}
		if err != nil {
			e.logger.Warn("Hours validator unavailable, using local fallback",
				zap.String("invoice_id", req.InvoiceID),
				zap.Error(err))
		} else {
			e.logger.Warn("Hours validator returned malformed result, using local fallback",
				zap.String("invoice_id", req.InvoiceID))
		}
	}
	return e.fallback(req)
}

// fallback is the deterministic local comparison. Equal hours complete the
// reconciliation; an approved figure below the vendor's claim needs human
// reconciliation; an approved figure above it needs explicit sign-off.
func (e *Engine) fallback(req ValidationRequest) Outcome {
	out := Outcome{Source: sourceFallback}
	switch {
	case req.ApprovedHours == req.VendorHours:
		out.Classification = models.ApprovalComplete
		out.PaymentDetails = e.computePayment(req)
	case req.ApprovedHours < req.VendorHours:
		out.Classification = models.ApprovalNeedManualReview
	default:
		out.Classification = models.ApprovalNeedApproval
	}
	return out
}

// computePayment derives payment details as hourly_rate × approved_hours when
// the rate is known; without a rate the sub-record is omitted.
func (e *Engine) computePayment(req ValidationRequest) *models.PaymentDetails {
	if req.HourlyRate == nil {
		return nil
	}
	return &models.PaymentDetails{
		Amount:    *req.HourlyRate * req.ApprovedHours,
		Date:      e.now(),
		Reference: fmt.Sprintf("PAY-%s", req.InvoiceID),
	}
}

func validClassification(c models.ApprovalStatus) bool {
	switch c {
	case models.ApprovalComplete, models.ApprovalNeedApproval, models.ApprovalNeedManualReview:
		return true
	}
	return false
}
