package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/finhub-labs/invoiceflow/internal/models"
)

// Notifier alerts the approver channel when an invoice needs human attention.
// Notification failure is logged by callers and never fails the operation
// that triggered it.
type Notifier interface {
	NotifyReviewNeeded(ctx context.Context, record *models.InvoiceRecord) error
}

// LarkConfig configures the Lark review notifier.
type LarkConfig struct {
	AppID      string
	AppSecret  string
	ChatID     string
	APITimeout time.Duration
}

// LarkNotifier pushes review alerts into the approver group chat.
type LarkNotifier struct {
	client  *lark.Client
	chatID  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewLarkNotifier creates a Lark review notifier.
func NewLarkNotifier(cfg LarkConfig, logger *zap.Logger) *LarkNotifier {
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = 30 * time.Second
	}
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithReqTimeout(cfg.APITimeout),
	)
	return &LarkNotifier{
		client:  client,
		chatID:  cfg.ChatID,
		timeout: cfg.APITimeout,
		logger:  logger,
	}
}

// NotifyReviewNeeded sends a text alert describing why the invoice left the
// automatic path.
func (n *LarkNotifier) NotifyReviewNeeded(ctx context.Context, record *models.InvoiceRecord) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	content, err := json.Marshal(map[string]string{"text": reviewMessage(record)})
	if err != nil {
		return fmt.Errorf("failed to build notification content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(n.chatID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.client.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send review notification: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("review notification rejected: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	n.logger.Info("Review notification sent",
		zap.String("invoice_id", record.InvoiceID),
		zap.String("approval_status", string(record.ApprovalStatus)))
	return nil
}

func reviewMessage(record *models.InvoiceRecord) string {
	reason := "needs review"
	switch record.ApprovalStatus {
	case models.ApprovalNeedManualReview:
		reason = "approved hours are below the vendor's claim"
	case models.ApprovalNeedApproval:
		reason = "approved hours exceed the vendor's claim"
	}

	msg := fmt.Sprintf("Invoice %s from %s %s.", record.InvoiceNumber, record.VendorName, reason)
	if record.VendorHours != nil && record.ApprovedHours != nil {
		msg += fmt.Sprintf(" Vendor hours: %.2f, approved hours: %.2f.",
			*record.VendorHours, *record.ApprovedHours)
	}
	return msg + " Record id: " + record.InvoiceID
}
