package kiro

import (
	"encoding/json"
	"strings"

	"github.com/haasonsaas/kiro/internal/thinking"
	"github.com/haasonsaas/kiro/pkg/models"
)

// assembler accumulates the turn's content parts and mirrors every state
// change as a stream event. It owns slot allocation: parts are appended in
// the order their blocks open, and the slot index travels on every event
// of that block. A turn produces at most one thinking block and one text
// block; tool calls may repeat.
type assembler struct {
	emit func(models.Event)

	parts       []models.ContentPart
	thinkingIdx int
	answerIdx   int
	answerDone  bool

	open      *toolCallState
	completed int
}

// toolCallState is a tool call whose argument fragments are still arriving.
type toolCallState struct {
	id    string
	name  string
	index int
	args  strings.Builder
}

func newAssembler(emit func(models.Event)) *assembler {
	return &assembler{emit: emit, thinkingIdx: -1, answerIdx: -1}
}

func (a *assembler) ThinkingStart() int {
	a.parts = append(a.parts, models.ContentPart{Type: models.PartThinking})
	a.thinkingIdx = len(a.parts) - 1
	a.emit(models.Event{Type: models.EventThinkingStart, Index: a.thinkingIdx})
	return a.thinkingIdx
}

func (a *assembler) ThinkingDelta(text string) {
	a.parts[a.thinkingIdx].Text += text
	a.emit(models.Event{Type: models.EventThinkingDelta, Index: a.thinkingIdx, Delta: text})
}

func (a *assembler) ThinkingEnd(full string) {
	a.parts[a.thinkingIdx].Text = full
	a.emit(models.Event{Type: models.EventThinkingEnd, Index: a.thinkingIdx, Text: full})
}

func (a *assembler) AnswerStart() int {
	a.parts = append(a.parts, models.ContentPart{Type: models.PartText})
	a.answerIdx = len(a.parts) - 1
	a.emit(models.Event{Type: models.EventTextStart, Index: a.answerIdx})
	return a.answerIdx
}

func (a *assembler) AnswerDelta(text string) {
	a.parts[a.answerIdx].Text += text
	if a.answerDone {
		// Content arriving after the block closed stays on the final
		// message but does not reopen the delta stream.
		return
	}
	a.emit(models.Event{Type: models.EventTextDelta, Index: a.answerIdx, Delta: text})
}

// appendAnswer routes a content delta straight to the text block, opening
// it on first use. Turns without reasoning extraction use this path.
func (a *assembler) appendAnswer(text string) {
	if text == "" {
		return
	}
	if a.answerIdx < 0 {
		a.AnswerStart()
	}
	a.AnswerDelta(text)
}

// beginCall opens a tool call block, closing the text block first since
// prose never resumes once calls start. A begin event repeating the open
// call's id continues that call; a different id closes the open call
// first. The stop flag may close the call in the same event.
func (a *assembler) beginCall(id, name, input string, stop bool) {
	if a.open != nil && a.open.id == id {
		a.continueCall(input)
		a.stopCall(stop)
		return
	}
	a.closeAnswer()
	if a.open != nil {
		a.closeCall()
	}
	a.parts = append(a.parts, models.ContentPart{
		Type:     models.PartToolCall,
		ToolCall: &models.ToolCall{ID: id, Name: name},
	})
	a.open = &toolCallState{id: id, name: name, index: len(a.parts) - 1}
	a.emit(models.Event{
		Type:     models.EventToolCallStart,
		Index:    a.open.index,
		ToolCall: &models.ToolCall{ID: id, Name: name},
	})
	a.continueCall(input)
	a.stopCall(stop)
}

// continueCall appends an argument fragment to the open call. Fragments
// arriving with no call open are dropped.
func (a *assembler) continueCall(input string) {
	if a.open == nil || input == "" {
		return
	}
	a.open.args.WriteString(input)
	a.emit(models.Event{Type: models.EventToolCallDelta, Index: a.open.index, Delta: input})
}

func (a *assembler) stopCall(stop bool) {
	if !stop || a.open == nil {
		return
	}
	a.closeCall()
}

// closeCall finalizes the open call: the accumulated fragments become the
// parsed arguments and the block closes.
func (a *assembler) closeCall() {
	call := a.open
	a.open = nil
	args := parseArguments(call.args.String())
	a.parts[call.index].ToolCall.Arguments = args
	a.completed++
	a.emit(models.Event{
		Type:     models.EventToolCallEnd,
		Index:    call.index,
		ToolCall: &models.ToolCall{ID: call.id, Name: call.name, Arguments: args},
	})
}

func (a *assembler) closeAnswer() {
	if a.answerIdx < 0 || a.answerDone {
		return
	}
	a.answerDone = true
	a.emit(models.Event{Type: models.EventTextEnd, Index: a.answerIdx, Text: a.parts[a.answerIdx].Text})
}

// finish closes whatever is still open once the stream ends: the extractor
// flushes withheld text first, then the text block closes, then a call cut
// off mid-arguments closes with whatever fragments arrived.
func (a *assembler) finish(ext *thinking.Extractor) {
	if ext != nil {
		ext.Finalize()
	}
	a.closeAnswer()
	if a.open != nil {
		a.closeCall()
	}
}

func (a *assembler) completedCalls() int {
	return a.completed
}

// parseArguments turns accumulated argument text into a JSON document.
// The service sometimes double-encodes arguments as a JSON string of
// JSON; up to three unquoting passes recover those. Empty and malformed
// accumulations become the empty object so a tool call always carries
// executable arguments.
func parseArguments(raw string) json.RawMessage {
	raw = strings.TrimSpace(raw)
	for pass := 0; pass < 3; pass++ {
		if raw == "" || !json.Valid([]byte(raw)) {
			return json.RawMessage(`{}`)
		}
		if raw[0] != '"' {
			return json.RawMessage(raw)
		}
		var inner string
		if err := json.Unmarshal([]byte(raw), &inner); err != nil {
			return json.RawMessage(`{}`)
		}
		raw = strings.TrimSpace(inner)
	}
	return json.RawMessage(`{}`)
}
