package domain

import (
	"bytes"
	"encoding/json"
)

// ChatMessage is the provider-agnostic chat message shape used by the handler
// and LLM integrations.
//
// A message decoded from JSON keeps the exact bytes it was decoded from and
// encodes back to them, so client history reaches the upstream API unchanged.
// Role and Content are a best-effort reading of those bytes.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	raw json.RawMessage
}

// Raw returns the JSON the message was decoded from, or nil for a message
// built in code.
func (m ChatMessage) Raw() json.RawMessage {
	return m.raw
}

func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	raw := append(json.RawMessage(nil), bytes.TrimSpace(data)...)

	var view struct {
		Role    string  `json:"role"`
		Content Content `json:"content"`
	}
	// History is forwarded as-is, so an entry that does not fit the view is
	// still accepted.
	_ = json.Unmarshal(raw, &view)

	*m = ChatMessage{Role: view.Role, Content: view.Content.Text(), raw: raw}
	return nil
}

func (m ChatMessage) MarshalJSON() ([]byte, error) {
	if m.raw != nil {
		return m.raw, nil
	}
	type plain ChatMessage
	return json.Marshal(plain(m))
}

// Tool declares a capability the model may call before answering.
type Tool struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// CompletionRequest is the body sent to the chat completions endpoint.
type CompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
	Tools       []Tool        `json:"tools,omitempty"`
}

// Completion is the subset of the chat completions response the relay reads.
type Completion struct {
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index   int                `json:"index"`
	Message *CompletionMessage `json:"message"`
}

type CompletionMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}
