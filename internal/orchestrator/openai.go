package orchestrator

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/finhub-labs/invoiceflow/internal/hours"
)

// OpenAIConfig configures the OpenAI-backed orchestrator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIOrchestrator fulfils the orchestrator contracts directly against the
// OpenAI chat API when no dedicated orchestrator endpoint is deployed.
// Session continuity is kept client-side: each session's turns are replayed
// as conversation history.
type OpenAIOrchestrator struct {
	client  *openai.Client
	cfg     OpenAIConfig
	history *sessionHistory
	logger  *zap.Logger
}

// NewOpenAIOrchestrator creates an OpenAI-backed orchestrator.
func NewOpenAIOrchestrator(cfg OpenAIConfig, logger *zap.Logger) *OpenAIOrchestrator {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAIOrchestrator{
		client:  openai.NewClient(cfg.APIKey),
		cfg:     cfg,
		history: newSessionHistory(),
		logger:  logger,
	}
}

const systemPrompt = "You are an invoice processing assistant for an accounts payable team. " +
	"You extract invoice fields and validate billed hours with perfect accuracy. " +
	"Always respond with valid JSON when asked for JSON."

// Extract asks the model for the invoice's fields.
func (o *OpenAIOrchestrator) Extract(ctx context.Context, req ExtractRequest) (string, error) {
	return o.send(ctx, req.Session.ID, buildExtractionPrompt(req.DocumentName, req.DocumentText))
}

// ValidateHours continues the session with the hours comparison.
func (o *OpenAIOrchestrator) ValidateHours(ctx context.Context, req hours.ValidationRequest) (*hours.ValidationResult, error) {
	raw, err := o.send(ctx, req.SessionID, buildHoursPrompt(req))
	if err != nil {
		return nil, err
	}
	return parseHoursReply(raw)
}

func (o *OpenAIOrchestrator) send(ctx context.Context, sessionID, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	messages = append(messages, o.history.turns(sessionID)...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
		Messages:    messages,
	})
	if err != nil {
		o.logger.Warn("OpenAI orchestrator call failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	o.history.record(sessionID, prompt, content)
	return content, nil
}
