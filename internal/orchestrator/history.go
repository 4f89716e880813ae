package orchestrator

import (
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// maxSessions bounds client-side history; sessions are short-lived (one
// extraction turn plus at most a few hours validations), so a simple
// wholesale reset when the cap is hit is enough.
const maxSessions = 1024

// sessionHistory keeps per-session conversation turns so the OpenAI-backed
// orchestrator can offer the same multi-turn continuation a stateful
// orchestrator endpoint would.
type sessionHistory struct {
	mu        sync.Mutex
	bySession map[string][]openai.ChatCompletionMessage
}

func newSessionHistory() *sessionHistory {
	return &sessionHistory{
		bySession: make(map[string][]openai.ChatCompletionMessage),
	}
}

func (h *sessionHistory) record(sessionID, prompt, reply string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.bySession) >= maxSessions {
		h.bySession = make(map[string][]openai.ChatCompletionMessage)
	}
	h.bySession[sessionID] = append(h.bySession[sessionID],
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
	)
}

func (h *sessionHistory) turns(sessionID string) []openai.ChatCompletionMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]openai.ChatCompletionMessage(nil), h.bySession[sessionID]...)
}
