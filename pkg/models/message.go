// Package models provides the caller-facing data model for the kiro
// provider: messages exchanged with the host runtime, tool declarations,
// and the event stream emitted while a turn is in flight.
package models

import (
	"encoding/json"
	"strings"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// PartType identifies the kind of a content part.
type PartType string

const (
	PartText       PartType = "text"
	PartThinking   PartType = "thinking"
	PartImage      PartType = "image"
	PartToolCall   PartType = "tool_call"
	PartToolResult PartType = "tool_result"
)

// Message is one entry of the caller's conversation. Content carries plain
// text; Parts carries structured content and takes precedence when non-empty.
// Messages are immutable while a turn that references them is in flight.
type Message struct {
	Role    Role          `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
}

// ContentPart is a single ordered element of structured message content.
// Exactly one payload field should be set for a given Type.
type ContentPart struct {
	Type       PartType    `json:"type"`
	Text       string      `json:"text,omitempty"`
	Image      *ImageData  `json:"image,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// ImageData is an image attachment carried on a user message.
type ImageData struct {
	MediaType string `json:"media_type,omitempty"`
	Data      []byte `json:"data"`
}

// ToolCall represents the model's request to execute a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResult represents the caller-supplied outcome of executing a tool call.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Text    string `json:"text"`
	IsError bool   `json:"is_error,omitempty"`
}

// ToolSpec declares a tool the model may call during the turn.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Request describes one conversational turn to stream.
type Request struct {
	// Model is the caller-facing model identifier, resolved through the
	// model directory before anything touches the network.
	Model string `json:"model"`

	// Messages is the full conversation so far, oldest first. The trailing
	// slice of tool results (plus the assistant turn that issued them)
	// forms the "current" turn; everything earlier is settled history.
	Messages []Message `json:"messages"`

	// SystemPrompt is prepended once to the first user turn of history.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Tools is the catalog offered for this turn.
	Tools []ToolSpec `json:"tools,omitempty"`
}

// Text returns the plain-text content of the message: Content when Parts is
// empty, otherwise the text parts joined by newlines.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var parts []string
	for _, p := range m.Parts {
		if p.Type == PartText && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Thinking returns the concatenated thinking parts, empty when none.
func (m Message) Thinking() string {
	var parts []string
	for _, p := range m.Parts {
		if p.Type == PartThinking && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "")
}

// ToolCalls returns the tool calls issued by an assistant message.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range m.Parts {
		if p.Type == PartToolCall && p.ToolCall != nil {
			calls = append(calls, *p.ToolCall)
		}
	}
	return calls
}

// ToolResults returns the tool results carried by the message.
func (m Message) ToolResults() []ToolResult {
	var results []ToolResult
	for _, p := range m.Parts {
		if p.Type == PartToolResult && p.ToolResult != nil {
			results = append(results, *p.ToolResult)
		}
	}
	return results
}

// Images returns the image parts of the message in order.
func (m Message) Images() []ImageData {
	var images []ImageData
	for _, p := range m.Parts {
		if p.Type == PartImage && p.Image != nil {
			images = append(images, *p.Image)
		}
	}
	return images
}

// IsToolResult reports whether the message carries tool results, either by
// role or by content parts.
func (m Message) IsToolResult() bool {
	if m.Role == RoleToolResult {
		return true
	}
	return m.Role == RoleUser && len(m.ToolResults()) > 0 && m.Text() == ""
}
