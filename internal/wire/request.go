package wire

import (
	"encoding/json"

	"github.com/google/uuid"
)

const (
	chatTriggerManual = "MANUAL"
	originAIEditor    = "AI_EDITOR"

	// contentPlaceholder substitutes empty turn content. The service
	// rejects user and assistant messages with empty content.
	contentPlaceholder = "."
)

// Request is the top-level wire payload for one turn.
type Request struct {
	ConversationState ConversationState `json:"conversationState"`
	ProfileARN        string            `json:"profileArn,omitempty"`
}

// ConversationState carries the current turn and the settled history.
type ConversationState struct {
	ChatTriggerType string `json:"chatTriggerType"`
	ConversationID  string `json:"conversationId"`
	CurrentMessage  Turn   `json:"currentMessage"`
	History         []Turn `json:"history,omitempty"`
}

// Turn is one protocol conversation entry. Exactly one of User or
// Assistant is set.
type Turn struct {
	User      *UserInputMessage         `json:"userInputMessage,omitempty"`
	Assistant *AssistantResponseMessage `json:"assistantResponseMessage,omitempty"`
}

// UserInputMessage is the user side of a turn.
type UserInputMessage struct {
	Content string                   `json:"content"`
	ModelID string                   `json:"modelId,omitempty"`
	Origin  string                   `json:"origin,omitempty"`
	Images  []Image                  `json:"images,omitempty"`
	Context *UserInputMessageContext `json:"userInputMessageContext,omitempty"`
}

// UserInputMessageContext carries tool results and the tool catalog.
type UserInputMessageContext struct {
	ToolResults []ToolResult `json:"toolResults,omitempty"`
	Tools       []Tool       `json:"tools,omitempty"`
}

// ToolResult is the outcome of one tool call, paired by ToolUseID.
type ToolResult struct {
	Content   []ToolResultContent `json:"content"`
	Status    string              `json:"status"`
	ToolUseID string              `json:"toolUseId"`
}

// ToolResultContent is one text block of a tool result.
type ToolResultContent struct {
	Text string `json:"text"`
}

// Tool wraps a tool specification for the catalog.
type Tool struct {
	ToolSpecification ToolSpecification `json:"toolSpecification"`
}

// ToolSpecification declares a callable tool.
type ToolSpecification struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema wraps the JSON schema of a tool's arguments.
type InputSchema struct {
	JSON json.RawMessage `json:"json"`
}

// Image is an attachment on a user message.
type Image struct {
	Format string      `json:"format"`
	Source ImageSource `json:"source"`
}

// ImageSource holds the base64-encoded image payload.
type ImageSource struct {
	Bytes string `json:"bytes"`
}

// AssistantResponseMessage is the assistant side of a turn.
type AssistantResponseMessage struct {
	Content  string    `json:"content"`
	ToolUses []ToolUse `json:"toolUses,omitempty"`
}

// ToolUse records a tool call issued by the assistant.
type ToolUse struct {
	Name      string          `json:"name"`
	ToolUseID string          `json:"toolUseId"`
	Input     json.RawMessage `json:"input,omitempty"`
}

// NewRequest assembles the wire payload with a fresh conversation id.
func NewRequest(current *UserInputMessage, history []Turn, profileARN string) *Request {
	return &Request{
		ConversationState: ConversationState{
			ChatTriggerType: chatTriggerManual,
			ConversationID:  uuid.NewString(),
			CurrentMessage:  Turn{User: current},
			History:         history,
		},
		ProfileARN: profileARN,
	}
}

// IsUser reports whether the turn is a user entry.
func (t Turn) IsUser() bool {
	return t.User != nil
}

// HasToolCalls reports whether the turn is an assistant entry that
// issued tool calls.
func (t Turn) HasToolCalls() bool {
	return t.Assistant != nil && len(t.Assistant.ToolUses) > 0
}

// HasToolResults reports whether the turn is a user entry carrying
// tool results.
func (t Turn) HasToolResults() bool {
	return t.User != nil && t.User.Context != nil && len(t.User.Context.ToolResults) > 0
}

// ToolCallIDs returns the ids of the tool calls issued by an assistant
// turn, nil for other turns.
func (t Turn) ToolCallIDs() []string {
	if !t.HasToolCalls() {
		return nil
	}
	ids := make([]string, 0, len(t.Assistant.ToolUses))
	for _, u := range t.Assistant.ToolUses {
		ids = append(ids, u.ToolUseID)
	}
	return ids
}

// ToolResultIDs returns the call ids referenced by a user turn's tool
// results, nil for other turns.
func (t Turn) ToolResultIDs() []string {
	if !t.HasToolResults() {
		return nil
	}
	ids := make([]string, 0, len(t.User.Context.ToolResults))
	for _, r := range t.User.Context.ToolResults {
		ids = append(ids, r.ToolUseID)
	}
	return ids
}

// HistorySize returns the serialized byte size of the history array.
func HistorySize(entries []Turn) int {
	if len(entries) == 0 {
		return 0
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return 0
	}
	return len(b)
}
