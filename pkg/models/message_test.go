package models

import (
	"encoding/json"
	"testing"
)

func TestRole_Constants(t *testing.T) {
	tests := []struct {
		constant Role
		expected string
	}{
		{RoleUser, "user"},
		{RoleAssistant, "assistant"},
		{RoleToolResult, "tool_result"},
	}

	for _, tt := range tests {
		t.Run(string(tt.constant), func(t *testing.T) {
			if string(tt.constant) != tt.expected {
				t.Errorf("constant = %q, want %q", tt.constant, tt.expected)
			}
		})
	}
}

func TestMessage_Text(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "plain content",
			msg:  Message{Role: RoleUser, Content: "hello"},
			want: "hello",
		},
		{
			name: "parts win over content",
			msg: Message{Role: RoleUser, Content: "ignored", Parts: []ContentPart{
				{Type: PartText, Text: "first"},
				{Type: PartText, Text: "second"},
			}},
			want: "first\nsecond",
		},
		{
			name: "non-text parts skipped",
			msg: Message{Role: RoleAssistant, Parts: []ContentPart{
				{Type: PartThinking, Text: "hmm"},
				{Type: PartText, Text: "answer"},
			}},
			want: "answer",
		},
		{
			name: "empty parts yield empty text",
			msg: Message{Role: RoleToolResult, Parts: []ContentPart{
				{Type: PartToolResult, ToolResult: &ToolResult{CallID: "tc-1", Text: "out"}},
			}},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessage_Accessors(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Parts: []ContentPart{
			{Type: PartThinking, Text: "step one"},
			{Type: PartText, Text: "the answer"},
			{Type: PartToolCall, ToolCall: &ToolCall{ID: "tc-1", Name: "search", Arguments: json.RawMessage(`{"q":"x"}`)}},
			{Type: PartToolCall, ToolCall: &ToolCall{ID: "tc-2", Name: "fetch"}},
		},
	}

	if got := msg.Thinking(); got != "step one" {
		t.Errorf("Thinking() = %q, want %q", got, "step one")
	}
	calls := msg.ToolCalls()
	if len(calls) != 2 {
		t.Fatalf("ToolCalls() length = %d, want 2", len(calls))
	}
	if calls[0].ID != "tc-1" || calls[1].Name != "fetch" {
		t.Errorf("ToolCalls() = %+v", calls)
	}
}

func TestMessage_IsToolResult(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{
			name: "tool result role",
			msg:  Message{Role: RoleToolResult},
			want: true,
		},
		{
			name: "user with only result parts",
			msg: Message{Role: RoleUser, Parts: []ContentPart{
				{Type: PartToolResult, ToolResult: &ToolResult{CallID: "tc-1", Text: "ok"}},
			}},
			want: true,
		},
		{
			name: "user with text alongside results",
			msg: Message{Role: RoleUser, Parts: []ContentPart{
				{Type: PartText, Text: "also this"},
				{Type: PartToolResult, ToolResult: &ToolResult{CallID: "tc-1", Text: "ok"}},
			}},
			want: false,
		},
		{
			name: "plain user message",
			msg:  Message{Role: RoleUser, Content: "hi"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsToolResult(); got != tt.want {
				t.Errorf("IsToolResult() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessage_Images(t *testing.T) {
	msg := Message{
		Role: RoleUser,
		Parts: []ContentPart{
			{Type: PartText, Text: "look at this"},
			{Type: PartImage, Image: &ImageData{MediaType: "image/jpeg", Data: []byte{0xff, 0xd8}}},
		},
	}
	images := msg.Images()
	if len(images) != 1 {
		t.Fatalf("Images() length = %d, want 1", len(images))
	}
	if images[0].MediaType != "image/jpeg" {
		t.Errorf("MediaType = %q, want %q", images[0].MediaType, "image/jpeg")
	}
}

func TestAssistantMessage_Accessors(t *testing.T) {
	out := AssistantMessage{
		Parts: []ContentPart{
			{Type: PartThinking, Text: "reasoning"},
			{Type: PartText, Text: "final"},
			{Type: PartToolCall, ToolCall: &ToolCall{ID: "tc-1", Name: "grep", Arguments: json.RawMessage(`{}`)}},
		},
		StopReason: StopToolUse,
		Usage:      Usage{InputTokens: 100, OutputTokens: 2},
	}

	if got := out.Text(); got != "final" {
		t.Errorf("Text() = %q, want %q", got, "final")
	}
	if got := out.Thinking(); got != "reasoning" {
		t.Errorf("Thinking() = %q, want %q", got, "reasoning")
	}
	if calls := out.ToolCalls(); len(calls) != 1 || calls[0].Name != "grep" {
		t.Errorf("ToolCalls() = %+v", calls)
	}

	msg := out.AsMessage()
	if msg.Role != RoleAssistant {
		t.Errorf("AsMessage().Role = %q, want %q", msg.Role, RoleAssistant)
	}
	if len(msg.Parts) != 3 {
		t.Errorf("AsMessage().Parts length = %d, want 3", len(msg.Parts))
	}
}

func TestEvent_Terminal(t *testing.T) {
	tests := []struct {
		typ  EventType
		want bool
	}{
		{EventStart, false},
		{EventTextDelta, false},
		{EventToolCallEnd, false},
		{EventDone, true},
		{EventError, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			if got := (Event{Type: tt.typ}).Terminal(); got != tt.want {
				t.Errorf("Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}
