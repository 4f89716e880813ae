package pipeline

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/finhub-labs/invoiceflow/internal/dedup"
	"github.com/finhub-labs/invoiceflow/internal/extraction"
	"github.com/finhub-labs/invoiceflow/internal/hours"
	"github.com/finhub-labs/invoiceflow/internal/models"
	"github.com/finhub-labs/invoiceflow/internal/notify"
	"github.com/finhub-labs/invoiceflow/internal/ocr"
	"github.com/finhub-labs/invoiceflow/internal/orchestrator"
	"github.com/finhub-labs/invoiceflow/internal/storage"
	trisync "github.com/finhub-labs/invoiceflow/internal/sync"
)

// Sentinel errors classifying pipeline failures. Collaborator outages are
// never surfaced as errors; they degrade the result instead.
var (
	// ErrInvalidInput marks a malformed, oversized, or wrong-type upload,
	// rejected before any external call.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPersistence marks a failed authoritative write; the record either
	// exists with all reconciled fields or not at all.
	ErrPersistence = errors.New("persistence failure")
	// ErrNotFound marks an operation against an unknown invoice id.
	ErrNotFound = errors.New("invoice not found")
)

// RecordReader is the read side of the record store the pipeline needs.
type RecordReader interface {
	GetByID(ctx context.Context, invoiceID string) (*models.InvoiceRecord, error)
}

// Pipeline sequences ingestion and update flows: normalize, dedupe,
// reconcile, persist, mirror, log. It owns the lifecycle of an invoice id
// during ingestion and the orchestrator session grouping an invoice's
// multi-turn calls.
type Pipeline struct {
	files        storage.FileStore
	remoteOCR    ocr.Analyzer
	localText    ocr.Analyzer
	extractor    orchestrator.Extractor
	reconciler   *extraction.Reconciler
	detector     *dedup.Detector
	hoursEngine  *hours.Engine
	reader       RecordReader
	synchronizer *trisync.Synchronizer
	notifier     notify.Notifier

	invoiceFolder string
	logger        *zap.Logger

	// sessions maps invoice ids onto orchestrator session ids so a later
	// hours validation continues the extraction conversation.
	mu       sync.Mutex
	sessions map[string]string
}

// Options carries the pipeline's collaborators. RemoteOCR, Extractor, and
// Notifier may be nil; the pipeline degrades around each.
type Options struct {
	Files         storage.FileStore
	RemoteOCR     ocr.Analyzer
	LocalText     ocr.Analyzer
	Extractor     orchestrator.Extractor
	Reconciler    *extraction.Reconciler
	Detector      *dedup.Detector
	HoursEngine   *hours.Engine
	Reader        RecordReader
	Synchronizer  *trisync.Synchronizer
	Notifier      notify.Notifier
	InvoiceFolder string
}

// New creates an ingestion pipeline. The configured invoice folder is a
// single segment under the file store's base; anything path-like in it is
// stripped.
func New(opts Options, logger *zap.Logger) *Pipeline {
	folder := storage.SafeFolderName(opts.InvoiceFolder)
	if folder == "" {
		folder = "Invoices"
	}
	return &Pipeline{
		files:         opts.Files,
		remoteOCR:     opts.RemoteOCR,
		localText:     opts.LocalText,
		extractor:     opts.Extractor,
		reconciler:    opts.Reconciler,
		detector:      opts.Detector,
		hoursEngine:   opts.HoursEngine,
		reader:        opts.Reader,
		synchronizer:  opts.Synchronizer,
		notifier:      opts.Notifier,
		invoiceFolder: folder,
		logger:        logger,
		sessions:      make(map[string]string),
	}
}

// sessionFor returns the invoice's orchestrator session, opening one if the
// invoice has none yet (e.g. after a restart).
func (p *Pipeline) sessionFor(invoiceID string) *orchestrator.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.sessions[invoiceID]; ok {
		return &orchestrator.Session{ID: id, InvoiceID: invoiceID}
	}
	session := orchestrator.NewSession(invoiceID)
	p.sessions[invoiceID] = session.ID
	return session
}

func (p *Pipeline) dropSession(invoiceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, invoiceID)
}

// notifyIfReviewNeeded alerts the approver channel for review outcomes.
// Failure is logged only.
func (p *Pipeline) notifyIfReviewNeeded(ctx context.Context, record *models.InvoiceRecord) {
	if p.notifier == nil {
		return
	}
	switch record.ApprovalStatus {
	case models.ApprovalNeedManualReview, models.ApprovalNeedApproval:
	default:
		return
	}
	if err := p.notifier.NotifyReviewNeeded(ctx, record); err != nil {
		p.logger.Warn("Review notification failed",
			zap.String("invoice_id", record.InvoiceID),
			zap.Error(err))
	}
}
