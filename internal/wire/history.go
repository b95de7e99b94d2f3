package wire

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/haasonsaas/kiro/internal/thinking"
	"github.com/haasonsaas/kiro/pkg/models"
)

const (
	// toolResultsContent labels the synthetic user turn that batches a
	// run of tool results in history.
	toolResultsContent = "Tool results provided."

	// continueContent fills separator turns inserted to keep the
	// history strictly alternating.
	continueContent = "Continue"

	// truncationMarker joins the head and tail halves of a truncated
	// text.
	truncationMarker = "\n...[truncated]...\n"
)

// SplitCurrent partitions the caller's messages into settled history and
// the "current" slice the request is about. The current slice is the
// trailing run of tool-result messages plus the assistant message that
// issued them, or the final message when there is no trailing run.
func SplitCurrent(messages []models.Message) (history, current []models.Message) {
	if len(messages) == 0 {
		return nil, nil
	}
	i := len(messages)
	for i > 0 && messages[i-1].IsToolResult() {
		i--
	}
	if i < len(messages) {
		// A trailing result run exists. Pull in the assistant turn
		// that issued the calls so the run never dangles in history.
		if i > 0 && messages[i-1].Role == models.RoleAssistant && len(messages[i-1].ToolCalls()) > 0 {
			i--
		}
	} else {
		i = len(messages) - 1
	}
	return messages[:i], messages[i:]
}

// HistoryBuilder converts caller messages into protocol history turns.
type HistoryBuilder struct {
	ModelID      string
	SystemPrompt string

	// ResultLimit caps each tool result's text, in characters.
	ResultLimit int
}

// Build maps the settled history messages to alternating protocol turns.
// Runs of consecutive tool-result messages collapse into one synthetic
// user turn; separator turns keep the sequence strictly alternating; the
// system prompt is prepended to the first user turn exactly once.
func (b HistoryBuilder) Build(messages []models.Message) []Turn {
	var turns []Turn
	for i := 0; i < len(messages); i++ {
		msg := messages[i]
		switch {
		case msg.IsToolResult():
			results := msg.ToolResults()
			for i+1 < len(messages) && messages[i+1].IsToolResult() {
				i++
				results = append(results, messages[i].ToolResults()...)
			}
			turns = b.appendTurn(turns, b.resultsTurn(results))
		case msg.Role == models.RoleAssistant:
			turns = b.appendTurn(turns, assistantTurn(msg))
		default:
			turns = b.appendTurn(turns, b.userTurn(msg))
		}
	}
	return b.prependSystemPrompt(turns)
}

// Current assembles the wire message for the current slice: the final
// user input's text and images, or the trailing tool results batched
// under a placeholder content.
func (b HistoryBuilder) Current(current []models.Message, tools []Tool) *UserInputMessage {
	msg := &UserInputMessage{
		Content: contentPlaceholder,
		ModelID: b.ModelID,
		Origin:  originAIEditor,
	}
	var results []models.ToolResult
	for _, m := range current {
		switch {
		case m.IsToolResult():
			results = append(results, m.ToolResults()...)
		case m.Role == models.RoleUser:
			if text := m.Text(); text != "" {
				msg.Content = text
			}
			for _, img := range m.Images() {
				msg.Images = append(msg.Images, imageFromData(img))
			}
			results = append(results, m.ToolResults()...)
		}
	}
	ctx := &UserInputMessageContext{Tools: tools}
	for _, r := range results {
		ctx.ToolResults = append(ctx.ToolResults, b.wireResult(r))
	}
	if len(ctx.ToolResults) > 0 || len(ctx.Tools) > 0 {
		msg.Context = ctx
	}
	return msg
}

// appendTurn appends t, first inserting a separator turn of the opposite
// side when t would break alternation.
func (b HistoryBuilder) appendTurn(turns []Turn, t Turn) []Turn {
	if len(turns) > 0 && turns[len(turns)-1].IsUser() == t.IsUser() {
		if t.IsUser() {
			turns = append(turns, Turn{Assistant: &AssistantResponseMessage{Content: continueContent}})
		} else {
			turns = append(turns, b.plainUserTurn(continueContent))
		}
	}
	return append(turns, t)
}

func (b HistoryBuilder) prependSystemPrompt(turns []Turn) []Turn {
	if b.SystemPrompt == "" {
		return turns
	}
	if len(turns) > 0 && turns[0].IsUser() {
		first := turns[0].User
		if !strings.HasPrefix(first.Content, b.SystemPrompt) {
			if first.Content == "" || first.Content == contentPlaceholder {
				first.Content = b.SystemPrompt
			} else {
				first.Content = b.SystemPrompt + "\n\n" + first.Content
			}
		}
		return turns
	}
	return append([]Turn{b.plainUserTurn(b.SystemPrompt)}, turns...)
}

func (b HistoryBuilder) plainUserTurn(content string) Turn {
	return Turn{User: &UserInputMessage{
		Content: content,
		ModelID: b.ModelID,
		Origin:  originAIEditor,
	}}
}

func (b HistoryBuilder) userTurn(msg models.Message) Turn {
	u := &UserInputMessage{
		Content: msg.Text(),
		ModelID: b.ModelID,
		Origin:  originAIEditor,
	}
	if u.Content == "" {
		u.Content = contentPlaceholder
	}
	for _, img := range msg.Images() {
		u.Images = append(u.Images, imageFromData(img))
	}
	if results := msg.ToolResults(); len(results) > 0 {
		ctx := &UserInputMessageContext{}
		for _, r := range results {
			ctx.ToolResults = append(ctx.ToolResults, b.wireResult(r))
		}
		u.Context = ctx
	}
	return Turn{User: u}
}

func (b HistoryBuilder) resultsTurn(results []models.ToolResult) Turn {
	u := &UserInputMessage{
		Content: toolResultsContent,
		ModelID: b.ModelID,
		Origin:  originAIEditor,
		Context: &UserInputMessageContext{},
	}
	for _, r := range results {
		u.Context.ToolResults = append(u.Context.ToolResults, b.wireResult(r))
	}
	return Turn{User: u}
}

func (b HistoryBuilder) wireResult(r models.ToolResult) ToolResult {
	status := "success"
	if r.IsError {
		status = "error"
	}
	return ToolResult{
		Content:   []ToolResultContent{{Text: TruncateText(r.Text, b.ResultLimit)}},
		Status:    status,
		ToolUseID: r.CallID,
	}
}

// assistantTurn maps an assistant message: any thinking text wrapped in
// its markers ahead of the answer text, plus the issued tool calls.
func assistantTurn(msg models.Message) Turn {
	content := msg.Text()
	if th := msg.Thinking(); th != "" {
		wrapped := thinking.OpenMarker + th + thinking.CloseMarker
		if content != "" {
			content = wrapped + "\n\n" + content
		} else {
			content = wrapped
		}
	}
	if content == "" {
		content = contentPlaceholder
	}
	a := &AssistantResponseMessage{Content: content}
	for _, call := range msg.ToolCalls() {
		a.ToolUses = append(a.ToolUses, ToolUse{
			Name:      call.Name,
			ToolUseID: call.ID,
			Input:     normalizeArguments(call.Arguments),
		})
	}
	return Turn{Assistant: a}
}

// normalizeArguments keeps valid JSON arguments as-is, quotes malformed
// text as a JSON string, and falls back to an empty object.
func normalizeArguments(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(raw) {
		return raw
	}
	quoted, err := json.Marshal(string(raw))
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return quoted
}

// TruncateText keeps texts at or under limit intact; longer texts keep
// the first and last half-limit of characters joined by the truncation
// marker so both ends survive. A non-positive limit disables truncation.
func TruncateText(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	half := limit / 2
	return string(runes[:half]) + truncationMarker + string(runes[len(runes)-half:])
}

func imageFromData(img models.ImageData) Image {
	format := "png"
	if _, sub, ok := strings.Cut(img.MediaType, "/"); ok && sub != "" {
		format = sub
	}
	return Image{
		Format: format,
		Source: ImageSource{Bytes: base64.StdEncoding.EncodeToString(img.Data)},
	}
}
