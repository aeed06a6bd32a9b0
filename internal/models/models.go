package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// Message is one conversational turn. Content carries the plain text form;
// Parts, when non-empty, carries the structured multimodal form and takes
// precedence on the wire. Messages are immutable once constructed; shaping
// always produces a new copy.
type Message struct {
	Role    Role
	Content string
	Parts   []ContentPart

	// Name is the wire "name" field, required for function-role messages.
	Name string

	// PluginID records which plugin produced a function-role message.
	PluginID string

	// Files holds attached file references (URLs or data URIs) that vision
	// shaping may expand into image parts.
	Files []string
}

type wireMessage struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
	Name    string          `json:"name,omitempty"`
}

// MarshalJSON emits content as a plain string unless structured parts are
// present, in which case the ordered part array is emitted instead.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Role == "" {
		return nil, errors.New("message role must not be empty")
	}

	var content any = m.Content
	if len(m.Parts) > 0 {
		content = m.Parts
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal message content: %w", err)
	}

	return json.Marshal(wireMessage{
		Role:    m.Role,
		Content: raw,
		Name:    m.Name,
	})
}

// UnmarshalJSON accepts both the string and the part-array content forms.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	m.Role = wire.Role
	m.Name = wire.Name
	m.Content = ""
	m.Parts = nil

	trimmed := bytesTrimSpace(wire.Content)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}

	if trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &m.Content)
	}

	parts, err := unmarshalParts(trimmed)
	if err != nil {
		return err
	}
	m.Parts = parts
	return nil
}

func bytesTrimSpace(b []byte) []byte {
	start := 0
	for start < len(b) && isJSONSpace(b[start]) {
		start++
	}
	end := len(b)
	for end > start && isJSONSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Text returns the plain text of the message: Content when no structured
// parts exist, otherwise the concatenated text parts.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var b strings.Builder
	for _, part := range m.Parts {
		if tp, ok := part.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// ImageURLs returns the image part URLs in order.
func (m Message) ImageURLs() []string {
	var urls []string
	for _, part := range m.Parts {
		if ip, ok := part.(ImagePart); ok {
			urls = append(urls, ip.URL)
		}
	}
	return urls
}

// ChatPayload is the wire-level body of a chat completion request. It is
// constructed per request and never persisted. Tools is omitted entirely
// when empty, never sent as an empty array.
type ChatPayload struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Temperature      *float64  `json:"temperature,omitempty"`
	TopP             *float64  `json:"top_p,omitempty"`
	PresencePenalty  *float64  `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64  `json:"frequency_penalty,omitempty"`
	MaxTokens        *int      `json:"max_tokens,omitempty"`
	Stream           bool      `json:"stream,omitempty"`
	Tools            []Tool    `json:"tools,omitempty"`
}

// Validate enforces the invariants every provider relies on: no empty roles,
// and function-role messages carry their plugin name.
func (p ChatPayload) Validate() error {
	if p.Model == "" {
		return errors.New("payload model must not be empty")
	}
	if len(p.Messages) == 0 {
		return errors.New("payload must contain at least one message")
	}
	for i, msg := range p.Messages {
		if msg.Role == "" {
			return fmt.Errorf("message %d: role must not be empty", i)
		}
	}
	return nil
}

// Tool describes one function-calling capability offered to the model.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition carries a function schema in provider wire form.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}
