package audit

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finhub-labs/invoiceflow/internal/models"
)

type stubFileStore struct {
	storeFunc func(content []byte, name, folder string) (string, error)
}

func (s *stubFileStore) Store(content []byte, name, folder string) (string, error) {
	return s.storeFunc(content, name, folder)
}

func (s *stubFileStore) Fetch(url string) ([]byte, error) { return nil, nil }
func (s *stubFileStore) Delete(url string) error          { return nil }

func TestAppend_WritesMonthPartitionedEntry(t *testing.T) {
	var gotName, gotFolder string
	var gotContent []byte
	files := &stubFileStore{storeFunc: func(content []byte, name, folder string) (string, error) {
		gotContent, gotName, gotFolder = content, name, folder
		return folder + "/" + name, nil
	}}
	store := NewStore(files, "AuditLogs", zap.NewNop())

	ts := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	err := store.Append(models.AuditLogEntry{
		InvoiceID: "inv-1",
		Timestamp: ts,
		EventType: models.AuditEventUpload,
	})
	require.NoError(t, err)

	assert.Equal(t, "AuditLogs/2025/01_January", gotFolder)
	assert.Contains(t, gotName, "inv-1_upload_")

	var entry models.AuditLogEntry
	require.NoError(t, json.Unmarshal(gotContent, &entry))
	assert.Equal(t, "inv-1", entry.InvoiceID)
	assert.Equal(t, models.AuditEventUpload, entry.EventType)
}

func TestNewStore_SanitizesConfiguredFolder(t *testing.T) {
	var gotFolder string
	files := &stubFileStore{storeFunc: func(content []byte, name, folder string) (string, error) {
		gotFolder = folder
		return name, nil
	}}
	store := NewStore(files, "../AuditLogs", zap.NewNop())

	ts := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(models.AuditLogEntry{
		InvoiceID: "inv-1",
		Timestamp: ts,
		EventType: models.AuditEventUpload,
	}))

	assert.Equal(t, "AuditLogs/2025/01_January", gotFolder)
}

func TestAppend_FillsZeroTimestamp(t *testing.T) {
	var gotContent []byte
	files := &stubFileStore{storeFunc: func(content []byte, name, folder string) (string, error) {
		gotContent = content
		return name, nil
	}}
	store := NewStore(files, "AuditLogs", zap.NewNop())

	require.NoError(t, store.Append(models.AuditLogEntry{
		InvoiceID: "inv-2",
		EventType: models.AuditEventStatusChange,
	}))

	var entry models.AuditLogEntry
	require.NoError(t, json.Unmarshal(gotContent, &entry))
	assert.False(t, entry.Timestamp.IsZero())
}

func TestAppend_PropagatesStorageFailure(t *testing.T) {
	files := &stubFileStore{storeFunc: func(content []byte, name, folder string) (string, error) {
		return "", errors.New("disk full")
	}}
	store := NewStore(files, "AuditLogs", zap.NewNop())

	err := store.Append(models.AuditLogEntry{InvoiceID: "inv-3", EventType: models.AuditEventDelete})
	assert.Error(t, err)
}
