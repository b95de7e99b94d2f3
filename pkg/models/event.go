package models

// EventType identifies the kind of stream event.
type EventType string

const (
	// Turn lifecycle
	EventStart EventType = "start"
	EventDone  EventType = "done"
	EventError EventType = "error"

	// Thinking block
	EventThinkingStart EventType = "thinking_start"
	EventThinkingDelta EventType = "thinking_delta"
	EventThinkingEnd   EventType = "thinking_end"

	// Answer text block
	EventTextStart EventType = "text_start"
	EventTextDelta EventType = "text_delta"
	EventTextEnd   EventType = "text_end"

	// Tool call block
	EventToolCallStart EventType = "toolcall_start"
	EventToolCallDelta EventType = "toolcall_delta"
	EventToolCallEnd   EventType = "toolcall_end"
)

// StopReason explains why a turn finished.
type StopReason string

const (
	StopEndTurn StopReason = "stop"
	StopToolUse StopReason = "tool_use"
	StopError   StopReason = "error"
	StopAborted StopReason = "aborted"
)

// Event is one element of the ordered sequence emitted while a turn streams.
// The sequence is: start; zero or one thinking block and zero or one text
// block, each start/delta*/end; zero or more tool call blocks; then exactly
// one of done or error.
type Event struct {
	Type EventType `json:"type"`

	// Index is the content slot this event belongs to within the final
	// message parts, for block events.
	Index int `json:"index,omitempty"`

	// Delta is the incremental payload of *_delta events. For toolcall
	// deltas it is a fragment of the argument text.
	Delta string `json:"delta,omitempty"`

	// Text is the full accumulated block content, set on *_end events.
	Text string `json:"text,omitempty"`

	// ToolCall identifies the call for toolcall_start (id, name) and
	// carries parsed arguments on toolcall_end.
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	// Message is the final output on done, or the partial output on error.
	Message *AssistantMessage `json:"message,omitempty"`

	// Reason is set on done and error events.
	Reason StopReason `json:"reason,omitempty"`

	// Error is the human-readable failure text on error events.
	Error string `json:"error,omitempty"`
}

// Terminal reports whether the event ends the sequence.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// Usage carries the turn's token accounting. Token counts are heuristic
// telemetry derived from the context-usage report and answer length, not an
// exact accounting.
type Usage struct {
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	ContextPercent float64 `json:"context_percent,omitempty"`
}

// AssistantMessage is the accumulated output of one turn: ordered content
// parts (at most one thinking and one text block, plus completed tool
// calls), usage counters, and the completion reason. It is owned by the
// turn that produced it and finalized exactly once.
type AssistantMessage struct {
	Parts      []ContentPart `json:"parts"`
	StopReason StopReason    `json:"stop_reason"`
	Usage      Usage         `json:"usage"`
}

// AsMessage converts the output into a conversation message suitable for
// appending to the next request's history.
func (a *AssistantMessage) AsMessage() Message {
	return Message{Role: RoleAssistant, Parts: a.Parts}
}

// Text returns the answer text block, empty when none was produced.
func (a *AssistantMessage) Text() string {
	for _, p := range a.Parts {
		if p.Type == PartText {
			return p.Text
		}
	}
	return ""
}

// Thinking returns the thinking block content, empty when none was produced.
func (a *AssistantMessage) Thinking() string {
	for _, p := range a.Parts {
		if p.Type == PartThinking {
			return p.Text
		}
	}
	return ""
}

// ToolCalls returns the completed tool calls in the order they closed.
func (a *AssistantMessage) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range a.Parts {
		if p.Type == PartToolCall && p.ToolCall != nil {
			calls = append(calls, *p.ToolCall)
		}
	}
	return calls
}
