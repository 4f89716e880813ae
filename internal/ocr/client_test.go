package ocr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAnalyze_SubmitAndPoll(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/analyze", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "invoice.pdf", r.Header.Get("X-Filename"))
		w.Header().Set("Operation-Location", server.URL+"/operations/op-1")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/operations/op-1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 2 {
			w.Write([]byte(`{"status":"running"}`))
			return
		}
		w.Write([]byte(`{
			"status": "succeeded",
			"result": {
				"content": "Invoice INV-100 Total Hours: 152",
				"fields": {
					"InvoiceId": {"content": "INV-100"},
					"InvoiceTotal": {"number": 500.0},
					"AmountDue": {"content": "0.00", "number": 0},
					"PurchaseOrder": {"content": ""}
				}
			}
		}`))
	})

	client := NewClient(Config{
		Endpoint:     server.URL,
		Timeout:      5 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}, zap.NewNop())

	result, err := client.Analyze(context.Background(), []byte("%PDF"), "invoice.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Invoice INV-100 Total Hours: 152", result.FullText)
	assert.Equal(t, "INV-100", result.StructuredFields["InvoiceId"])
	assert.Equal(t, 500.0, result.StructuredFields["InvoiceTotal"])
	// A numeric zero is a value, not an absence.
	assert.Equal(t, 0.0, result.StructuredFields["AmountDue"])
	assert.NotContains(t, result.StructuredFields, "PurchaseOrder")
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestAnalyze_FailedOperation(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/analyze", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Operation-Location", server.URL+"/operations/op-2")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/operations/op-2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"failed","error":{"message":"unreadable document"}}`))
	})

	client := NewClient(Config{
		Endpoint:     server.URL,
		Timeout:      time.Second,
		PollInterval: 10 * time.Millisecond,
	}, zap.NewNop())

	_, err := client.Analyze(context.Background(), []byte("%PDF"), "bad.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreadable document")
}

func TestAnalyze_SubmitRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{
		Endpoint:     server.URL,
		Timeout:      time.Second,
		PollInterval: 10 * time.Millisecond,
	}, zap.NewNop())

	_, err := client.Analyze(context.Background(), []byte("%PDF"), "invoice.pdf")
	assert.Error(t, err)
}

func TestAnalyze_TimesOutWhileRunning(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/analyze", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Operation-Location", server.URL+"/operations/op-3")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/operations/op-3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"running"}`))
	})

	client := NewClient(Config{
		Endpoint:     server.URL,
		Timeout:      100 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}, zap.NewNop())

	_, err := client.Analyze(context.Background(), []byte("%PDF"), "slow.pdf")
	assert.Error(t, err)
}
