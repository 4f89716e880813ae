package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Result is the OCR collaborator's output: the raw document text plus the
// structured key/value fields the service recognized. Field keys are
// provider vocabulary; the extraction normalizer maps them onto canonical
// names.
type Result struct {
	FullText         string
	StructuredFields map[string]any
}

// Analyzer extracts text and structured fields from a document. Failure must
// not abort ingestion; callers degrade to whatever other sources produced.
type Analyzer interface {
	Analyze(ctx context.Context, content []byte, filename string) (*Result, error)
}

// Config configures the remote OCR client.
type Config struct {
	Endpoint     string
	APIKey       string
	Timeout      time.Duration
	PollInterval time.Duration
}

// Client talks to the document-analysis REST service. Submission returns an
// operation URL which is polled until the analysis finishes.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a remote OCR client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type analyzeResponse struct {
	Status string `json:"status"`
	Result struct {
		Content string `json:"content"`
		// Number is a pointer so a legitimate zero survives; absent means
		// the service recognized no numeric value for the field.
		Fields map[string]struct {
			Content string   `json:"content"`
			Number  *float64 `json:"number,omitempty"`
		} `json:"fields"`
	} `json:"result"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze submits a document and polls for the analysis result.
func (c *Client) Analyze(ctx context.Context, content []byte, filename string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	operationURL, err := c.submit(ctx, content, filename)
	if err != nil {
		return nil, err
	}
	return c.poll(ctx, operationURL)
}

func (c *Client) submit(ctx context.Context, content []byte, filename string) (string, error) {
	url := c.cfg.Endpoint + "/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Filename", filename)
	if c.cfg.APIKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("analyze request returned status %d: %s", resp.StatusCode, body)
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", fmt.Errorf("analyze response missing Operation-Location header")
	}
	return operationURL, nil
}

func (c *Client) poll(ctx context.Context, operationURL string) (*Result, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		status, err := c.fetchStatus(ctx, operationURL)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "succeeded":
			return toResult(status), nil
		case "failed":
			return nil, fmt.Errorf("document analysis failed: %s", status.Error.Message)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("document analysis timed out: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchStatus(ctx context.Context, operationURL string) (*analyzeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build poll request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll request returned status %d", resp.StatusCode)
	}

	var status analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode poll response: %w", err)
	}
	return &status, nil
}

func toResult(status *analyzeResponse) *Result {
	fields := make(map[string]any, len(status.Result.Fields))
	for key, field := range status.Result.Fields {
		if field.Number != nil {
			fields[key] = *field.Number
			continue
		}
		if field.Content != "" {
			fields[key] = field.Content
		}
	}
	return &Result{
		FullText:         status.Result.Content,
		StructuredFields: fields,
	}
}
