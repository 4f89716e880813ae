package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/finhub-labs/invoiceflow/internal/models"
	"github.com/finhub-labs/invoiceflow/internal/storage"
	"go.uber.org/zap"
)

// Store is the append-only audit log. One JSON document is written per
// event into a month-partitioned folder; entries are never rewritten.
type Store struct {
	files  storage.FileStore
	folder string
	now    func() time.Time
	logger *zap.Logger
}

// NewStore creates an audit store writing under folder in the file store.
// The folder is a single segment; anything path-like in it is stripped.
func NewStore(files storage.FileStore, folder string, logger *zap.Logger) *Store {
	folder = storage.SafeFolderName(folder)
	if folder == "" {
		folder = "AuditLogs"
	}
	return &Store{
		files:  files,
		folder: folder,
		now:    time.Now,
		logger: logger,
	}
}

// Append writes one audit entry. A zero Timestamp is filled in with the
// current time.
func (s *Store) Append(entry models.AuditLogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now().UTC()
	}

	content, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.json",
		entry.InvoiceID,
		entry.EventType,
		entry.Timestamp.Format("20060102T150405.000000000"))
	folder := storage.MonthFolder(s.folder, entry.Timestamp)

	url, err := s.files.Store(content, name, folder)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	s.logger.Debug("Audit entry written",
		zap.String("invoice_id", entry.InvoiceID),
		zap.String("event_type", string(entry.EventType)),
		zap.String("url", url))
	return nil
}
