package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finhub-labs/invoiceflow/internal/dedup"
	"github.com/finhub-labs/invoiceflow/internal/extraction"
	"github.com/finhub-labs/invoiceflow/internal/hours"
	"github.com/finhub-labs/invoiceflow/internal/models"
	"github.com/finhub-labs/invoiceflow/internal/ocr"
	"github.com/finhub-labs/invoiceflow/internal/orchestrator"
	"github.com/finhub-labs/invoiceflow/internal/repository"
	trisync "github.com/finhub-labs/invoiceflow/internal/sync"
)

// memStore is an in-memory record store standing in for the SQLite
// repository across the write and read interfaces the pipeline uses.
type memStore struct {
	mu        sync.Mutex
	records   map[string]*models.InvoiceRecord
	createErr error
	findErr   error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]*models.InvoiceRecord{}}
}

func (m *memStore) Create(ctx context.Context, record *models.InvoiceRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *record
	m.records[record.InvoiceID] = &clone
	return nil
}

func (m *memStore) Update(ctx context.Context, record *models.InvoiceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.InvoiceID]; !ok {
		return repository.ErrNotFound
	}
	clone := *record
	m.records[record.InvoiceID] = &clone
	return nil
}

func (m *memStore) Delete(ctx context.Context, invoiceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[invoiceID]; !ok {
		return repository.ErrNotFound
	}
	delete(m.records, invoiceID)
	return nil
}

func (m *memStore) GetByID(ctx context.Context, invoiceID string) (*models.InvoiceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[invoiceID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (m *memStore) FindByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]*models.InvoiceRecord, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.InvoiceRecord
	for _, record := range m.records {
		if record.InvoiceNumber == invoiceNumber {
			clone := *record
			out = append(out, &clone)
		}
	}
	return out, nil
}

type memMirror struct {
	upserts int
	removes int
	err     error
}

func (m *memMirror) Upsert(record *models.InvoiceRecord) error {
	if m.err != nil {
		return m.err
	}
	m.upserts++
	return nil
}

func (m *memMirror) Remove(invoiceID string) error {
	m.removes++
	return nil
}

type memAudit struct {
	entries []models.AuditLogEntry
}

func (m *memAudit) Append(entry models.AuditLogEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

type memFiles struct {
	stored  map[string][]byte
	deleted []string
}

func newMemFiles() *memFiles { return &memFiles{stored: map[string][]byte{}} }

func (f *memFiles) Store(content []byte, name, folder string) (string, error) {
	url := folder + "/" + name
	f.stored[url] = content
	return url, nil
}

func (f *memFiles) Fetch(url string) ([]byte, error) { return f.stored[url], nil }

func (f *memFiles) Delete(url string) error {
	f.deleted = append(f.deleted, url)
	delete(f.stored, url)
	return nil
}

type stubAnalyzer struct {
	result *ocr.Result
	err    error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, content []byte, filename string) (*ocr.Result, error) {
	return s.result, s.err
}

type stubExtractor struct {
	reply string
	err   error
}

func (s *stubExtractor) Extract(ctx context.Context, req orchestrator.ExtractRequest) (string, error) {
	return s.reply, s.err
}

type fixture struct {
	pipeline *Pipeline
	store    *memStore
	mirror   *memMirror
	audit    *memAudit
	files    *memFiles
}

func newFixture(t *testing.T, remoteOCR ocr.Analyzer, extractor orchestrator.Extractor) *fixture {
	t.Helper()
	logger := zap.NewNop()
	store := newMemStore()
	mirror := &memMirror{}
	auditLog := &memAudit{}
	files := newMemFiles()

	p := New(Options{
		Files:         files,
		RemoteOCR:     remoteOCR,
		Extractor:     extractor,
		Reconciler:    extraction.NewReconciler(logger),
		Detector:      dedup.NewDetector(store, logger),
		HoursEngine:   hours.NewEngine(nil, time.Second, logger),
		Reader:        store,
		Synchronizer:  trisync.NewSynchronizer(store, mirror, auditLog, logger),
		InvoiceFolder: "Invoices",
	}, logger)

	return &fixture{pipeline: p, store: store, mirror: mirror, audit: auditLog, files: files}
}

func acmeOCR() *stubAnalyzer {
	return &stubAnalyzer{result: &ocr.Result{
		FullText: "Invoice INV-100 from Acme\nTotal Hours: 10\nAmount due: 500.00",
		StructuredFields: map[string]any{
			"InvoiceId":    "INV-100",
			"VendorName":   "Acme",
			"InvoiceTotal": 500.00,
			"InvoiceDate":  "2024-01-05",
		},
	}}
}

func acmeExtractor() *stubExtractor {
	return &stubExtractor{reply: "```json\n" +
		`{"Invoice_Number": "INV-100", "Vendor_Name": "Acme", "Invoice_Amount": 500.00, "Invoice_Hours": 10, "Hourly_Rate": 95, "Invoice_Date": "2024-01-05"}` +
		"\n```"}
}

func ingestAcme(t *testing.T, f *fixture) *models.InvoiceRecord {
	t.Helper()
	result, err := f.pipeline.Ingest(context.Background(), IngestRequest{
		VendorID: "vendor-1",
		FileName: "acme_jan.pdf",
		Content:  []byte("%PDF-1.4 acme"),
	})
	require.NoError(t, err)
	require.False(t, result.Duplicate)
	require.NotNil(t, result.Record)
	return result.Record
}

func TestIngest_StoresReconciledRecord(t *testing.T) {
	f := newFixture(t, acmeOCR(), acmeExtractor())

	record := ingestAcme(t, f)

	assert.NotEmpty(t, record.InvoiceID)
	assert.Equal(t, "INV-100", record.InvoiceNumber)
	assert.Equal(t, "Acme", record.VendorName)
	require.NotNil(t, record.InvoiceAmount)
	assert.Equal(t, 500.00, *record.InvoiceAmount)
	require.NotNil(t, record.VendorHours)
	assert.Equal(t, 10.0, *record.VendorHours)
	assert.Equal(t, models.StatusPending, record.Status)

	// All three stores saw the ingestion.
	_, err := f.store.GetByID(context.Background(), record.InvoiceID)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.mirror.upserts)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditEventUpload, f.audit.entries[0].EventType)
	assert.Equal(t, "INV-100", f.audit.entries[0].ExtractedData[extraction.FieldInvoiceNumber])
}

func TestIngest_DuplicateShortCircuits(t *testing.T) {
	f := newFixture(t, acmeOCR(), acmeExtractor())

	first := ingestAcme(t, f)

	result, err := f.pipeline.Ingest(context.Background(), IngestRequest{
		VendorID: "vendor-1",
		FileName: "acme_jan_copy.pdf",
		Content:  []byte("%PDF-1.4 acme"),
	})
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, first.InvoiceID, result.ExistingID)
	assert.Nil(t, result.Record)

	// No second record, no second mirror row, and the duplicate's document
	// was cleaned up.
	assert.Len(t, f.store.records, 1)
	assert.Equal(t, 1, f.mirror.upserts)
	assert.Len(t, f.files.deleted, 1)
}

func TestIngest_SanitizesConfiguredInvoiceFolder(t *testing.T) {
	logger := zap.NewNop()
	store := newMemStore()
	files := newMemFiles()
	p := New(Options{
		Files:         files,
		RemoteOCR:     acmeOCR(),
		Extractor:     acmeExtractor(),
		Reconciler:    extraction.NewReconciler(logger),
		Detector:      dedup.NewDetector(store, logger),
		HoursEngine:   hours.NewEngine(nil, time.Second, logger),
		Reader:        store,
		Synchronizer:  trisync.NewSynchronizer(store, &memMirror{}, &memAudit{}, logger),
		InvoiceFolder: "../Invoices",
	}, logger)

	result, err := p.Ingest(context.Background(), IngestRequest{
		VendorID: "vendor-1",
		FileName: "acme_jan.pdf",
		Content:  []byte("%PDF-1.4 acme"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Record.DocumentURL, "Invoices/"))
	assert.NotContains(t, result.Record.DocumentURL, "..")
}

func TestIngest_DuplicateCheckErrorCleansUpDocument(t *testing.T) {
	f := newFixture(t, acmeOCR(), acmeExtractor())
	f.store.findErr = errors.New("database is locked")

	_, err := f.pipeline.Ingest(context.Background(), IngestRequest{
		VendorID: "vendor-1",
		FileName: "acme_jan.pdf",
		Content:  []byte("%PDF-1.4 acme"),
	})
	require.ErrorIs(t, err, ErrPersistence)

	// The stored document does not outlive the failed ingestion.
	assert.Len(t, f.files.deleted, 1)
	assert.Empty(t, f.files.stored)
	assert.Empty(t, f.store.records)
}

func TestIngest_RejectsBadUploads(t *testing.T) {
	f := newFixture(t, acmeOCR(), acmeExtractor())

	_, err := f.pipeline.Ingest(context.Background(), IngestRequest{
		VendorID: "vendor-1",
		FileName: "notes.txt",
		Content:  []byte("hello"),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.pipeline.Ingest(context.Background(), IngestRequest{
		VendorID: "vendor-1",
		FileName: "empty.pdf",
		Content:  nil,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.pipeline.Ingest(context.Background(), IngestRequest{
		FileName: "acme.pdf",
		Content:  []byte("%PDF"),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIngest_OrchestratorDownDegradesToOCRFields(t *testing.T) {
	f := newFixture(t, acmeOCR(), &stubExtractor{err: errors.New("gateway timeout")})

	result, err := f.pipeline.Ingest(context.Background(), IngestRequest{
		VendorID: "vendor-1",
		FileName: "acme_jan.pdf",
		Content:  []byte("%PDF-1.4 acme"),
	})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, "INV-100", result.Record.InvoiceNumber)
	assert.Equal(t, "Acme", result.Record.VendorName)
	// Hours came from the regex scan over OCR text.
	require.NotNil(t, result.Record.InvoiceHours)
	assert.Equal(t, 10.0, *result.Record.InvoiceHours)
}

func TestIngest_DatabaseFailureLeavesNoMirrorOrAudit(t *testing.T) {
	f := newFixture(t, acmeOCR(), acmeExtractor())
	f.store.createErr = errors.New("disk I/O error")

	_, err := f.pipeline.Ingest(context.Background(), IngestRequest{
		VendorID: "vendor-1",
		FileName: "acme_jan.pdf",
		Content:  []byte("%PDF-1.4 acme"),
	})
	require.ErrorIs(t, err, ErrPersistence)
	assert.Zero(t, f.mirror.upserts)
	assert.Empty(t, f.audit.entries)
}

func TestIngest_MirrorFailureStillSucceeds(t *testing.T) {
	f := newFixture(t, acmeOCR(), acmeExtractor())
	f.mirror.err = errors.New("workbook locked")

	result, err := f.pipeline.Ingest(context.Background(), IngestRequest{
		VendorID: "vendor-1",
		FileName: "acme_jan.pdf",
		Content:  []byte("%PDF-1.4 acme"),
	})
	require.NoError(t, err)
	assert.NotNil(t, result.Record)
	// Audit entry still written after the mirror failure.
	assert.Len(t, f.audit.entries, 1)
}

func TestUpdateFields_HoursValidationFallbackScenario(t *testing.T) {
	f := newFixture(t, acmeOCR(), acmeExtractor())
	record := ingestAcme(t, f)

	// approved == vendor -> Complete, payment from rate x hours.
	updated, err := f.pipeline.UpdateFields(context.Background(), record.InvoiceID,
		models.FieldUpdate{ApprovedHours: models.Float64Ptr(10)}, "manager@corp")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalComplete, updated.ApprovalStatus)
	assert.Equal(t, models.StatusComplete, updated.Status)
	require.NotNil(t, updated.PaymentDetails)
	assert.Equal(t, 950.0, updated.PaymentDetails.Amount)

	// approved < vendor -> NeedManualReview, and the earlier payment
	// sub-record does not survive the reclassification.
	updated, err = f.pipeline.UpdateFields(context.Background(), record.InvoiceID,
		models.FieldUpdate{ApprovedHours: models.Float64Ptr(8)}, "manager@corp")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalNeedManualReview, updated.ApprovalStatus)
	assert.Nil(t, updated.PaymentDetails)

	stored, err := f.store.GetByID(context.Background(), record.InvoiceID)
	require.NoError(t, err)
	assert.Nil(t, stored.PaymentDetails)

	// approved > vendor -> NeedApproval.
	updated, err = f.pipeline.UpdateFields(context.Background(), record.InvoiceID,
		models.FieldUpdate{ApprovedHours: models.Float64Ptr(12)}, "manager@corp")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalNeedApproval, updated.ApprovalStatus)
	assert.Nil(t, updated.PaymentDetails)
}

func TestUpdateFields_WithoutApprovedHoursSkipsClassification(t *testing.T) {
	f := newFixture(t, acmeOCR(), acmeExtractor())
	record := ingestAcme(t, f)

	updated, err := f.pipeline.UpdateFields(context.Background(), record.InvoiceID,
		models.FieldUpdate{Notes: models.StringPtr("checked against PO")}, "manager@corp")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, updated.ApprovalStatus)
	assert.Equal(t, "checked against PO", updated.Notes)
}

func TestUpdateFields_UnknownInvoice(t *testing.T) {
	f := newFixture(t, acmeOCR(), acmeExtractor())

	_, err := f.pipeline.UpdateFields(context.Background(), "ghost",
		models.FieldUpdate{Notes: models.StringPtr("x")}, "someone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApprove(t *testing.T) {
	f := newFixture(t, acmeOCR(), acmeExtractor())
	record := ingestAcme(t, f)

	approved, err := f.pipeline.Approve(context.Background(), record.InvoiceID, "manager@corp", "ok to pay")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, approved.ApprovalStatus)
	assert.Equal(t, "manager@corp", approved.ApprovedBy)
	assert.Equal(t, "ok to pay", approved.Notes)

	last := f.audit.entries[len(f.audit.entries)-1]
	assert.Equal(t, models.AuditEventStatusChange, last.EventType)
	assert.Equal(t, string(models.ApprovalApproved), last.NewStatus)
}

func TestDelete_RemovesRecordMirrorRowAndDocument(t *testing.T) {
	f := newFixture(t, acmeOCR(), acmeExtractor())
	record := ingestAcme(t, f)

	require.NoError(t, f.pipeline.Delete(context.Background(), record.InvoiceID, "manager@corp"))

	_, err := f.store.GetByID(context.Background(), record.InvoiceID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 1, f.mirror.removes)
	assert.Contains(t, f.files.deleted, record.DocumentURL)

	last := f.audit.entries[len(f.audit.entries)-1]
	assert.Equal(t, models.AuditEventDelete, last.EventType)
}
