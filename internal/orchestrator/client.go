package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/finhub-labs/invoiceflow/internal/hours"
)

// ExtractRequest carries the document context for an extraction turn.
type ExtractRequest struct {
	Session      *Session
	DocumentName string
	DocumentText string
}

// Extractor is the AI orchestrator's extraction contract. The result is free
// form (JSON block, CSV table, or markdown); extraction.ParseFreeForm turns
// it into provider fields.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (string, error)
}

// Config configures the HTTP orchestrator client.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Client is the HTTP AI orchestrator collaborator. Calls are session-scoped
// JSON messages; a circuit breaker fails fast once the endpoint is known to
// be down so callers reach their fallback without burning the full timeout
// on every request.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[string]
	logger     *zap.Logger
}

// NewClient creates an HTTP orchestrator client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "ai-orchestrator",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    gobreaker.NewCircuitBreaker[string](settings),
		logger:     logger,
	}
}

type messageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type messageResponse struct {
	Response string `json:"response"`
}

// Extract asks the orchestrator to pull invoice fields out of the document.
func (c *Client) Extract(ctx context.Context, req ExtractRequest) (string, error) {
	prompt := buildExtractionPrompt(req.DocumentName, req.DocumentText)
	return c.send(ctx, req.Session.ID, prompt)
}

// ValidateHours continues the invoice's session with the hours comparison.
// A malformed reply is an error; the hours engine treats it like an outage
// and classifies locally.
func (c *Client) ValidateHours(ctx context.Context, req hours.ValidationRequest) (*hours.ValidationResult, error) {
	prompt := buildHoursPrompt(req)
	raw, err := c.send(ctx, req.SessionID, prompt)
	if err != nil {
		return nil, err
	}
	return parseHoursReply(raw)
}

func (c *Client) send(ctx context.Context, sessionID, message string) (string, error) {
	response, err := c.breaker.Execute(func() (string, error) {
		return c.post(ctx, sessionID, message)
	})
	if err != nil {
		c.logger.Warn("Orchestrator call failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return "", err
	}
	return response, nil
}

func (c *Client) post(ctx context.Context, sessionID, message string) (string, error) {
	body, err := json.Marshal(messageRequest{SessionID: sessionID, Message: message})
	if err != nil {
		return "", fmt.Errorf("failed to marshal orchestrator request: %w", err)
	}

	url := c.cfg.Endpoint + "/sessions/" + sessionID + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build orchestrator request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("orchestrator request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("orchestrator returned status %d: %s", resp.StatusCode, payload)
	}

	var reply messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("failed to decode orchestrator response: %w", err)
	}
	return reply.Response, nil
}
