package thinking

import (
	"fmt"
	"strings"
	"testing"
)

// recordingSink captures flush ordering and accumulated content.
type recordingSink struct {
	calls    []string
	thinking strings.Builder
	answer   strings.Builder
	endText  string
	slots    int
}

func (r *recordingSink) ThinkingStart() int {
	r.calls = append(r.calls, "thinking_start")
	idx := r.slots
	r.slots++
	return idx
}

func (r *recordingSink) ThinkingDelta(text string) {
	r.calls = append(r.calls, "thinking_delta")
	r.thinking.WriteString(text)
}

func (r *recordingSink) ThinkingEnd(full string) {
	r.calls = append(r.calls, "thinking_end")
	r.endText = full
}

func (r *recordingSink) AnswerStart() int {
	r.calls = append(r.calls, "answer_start")
	idx := r.slots
	r.slots++
	return idx
}

func (r *recordingSink) AnswerDelta(text string) {
	r.calls = append(r.calls, "answer_delta")
	r.answer.WriteString(text)
}

func run(chunks ...string) (*recordingSink, *Extractor) {
	sink := &recordingSink{}
	ex := New(sink)
	for _, c := range chunks {
		ex.ProcessChunk(c)
	}
	ex.Finalize()
	return sink, ex
}

func TestExtractor_WholeInputs(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantThinking string
		wantAnswer   string
	}{
		{
			name:       "plain answer",
			input:      "just an answer",
			wantAnswer: "just an answer",
		},
		{
			name:         "thinking then answer with separator",
			input:        "<thinking>A</thinking>\n\nB",
			wantThinking: "A",
			wantAnswer:   "B",
		},
		{
			name:         "separator stripped once only",
			input:        "<thinking>A</thinking>\n\n\n\nB",
			wantThinking: "A",
			wantAnswer:   "\n\nB",
		},
		{
			name:         "single newline is not a separator",
			input:        "<thinking>A</thinking>\nB",
			wantThinking: "A",
			wantAnswer:   "\nB",
		},
		{
			name:         "answer text before the marker",
			input:        "pre<thinking>A</thinking>\n\npost",
			wantThinking: "A",
			wantAnswer:   "prepost",
		},
		{
			name:         "unclosed thinking flushed at finalize",
			input:        "<thinking>never closed",
			wantThinking: "never closed",
		},
		{
			name:         "second open marker is answer content",
			input:        "<thinking>A</thinking>\n\nB<thinking>C",
			wantThinking: "A",
			wantAnswer:   "B<thinking>C",
		},
		{
			name:       "marker-like fragment that never completes",
			input:      "a <think tag",
			wantAnswer: "a <think tag",
		},
		{
			name:         "empty answer after separator",
			input:        "<thinking>A</thinking>\n\n",
			wantThinking: "A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, _ := run(tt.input)
			if got := sink.thinking.String(); got != tt.wantThinking {
				t.Errorf("thinking = %q, want %q", got, tt.wantThinking)
			}
			if got := sink.answer.String(); got != tt.wantAnswer {
				t.Errorf("answer = %q, want %q", got, tt.wantAnswer)
			}
			if tt.wantThinking != "" && sink.endText != tt.wantThinking {
				t.Errorf("end text = %q, want %q", sink.endText, tt.wantThinking)
			}
		})
	}
}

func TestExtractor_SplitAtEveryOffset(t *testing.T) {
	const input = "<thinking>A</thinking>\n\nB"
	for i := 0; i <= len(input); i++ {
		t.Run(fmt.Sprintf("offset_%d", i), func(t *testing.T) {
			sink, _ := run(input[:i], input[i:])
			if got := sink.thinking.String(); got != "A" {
				t.Errorf("thinking = %q, want %q", got, "A")
			}
			if got := sink.answer.String(); got != "B" {
				t.Errorf("answer = %q, want %q", got, "B")
			}
			if sink.endText != "A" {
				t.Errorf("end text = %q, want %q", sink.endText, "A")
			}
		})
	}
}

func TestExtractor_ByteAtATime(t *testing.T) {
	const input = "before<thinking>deep thought</thinking>\n\nafter"
	sink := &recordingSink{}
	ex := New(sink)
	for i := 0; i < len(input); i++ {
		ex.ProcessChunk(input[i : i+1])
	}
	ex.Finalize()

	if got := sink.thinking.String(); got != "deep thought" {
		t.Errorf("thinking = %q, want %q", got, "deep thought")
	}
	if got := sink.answer.String(); got != "beforeafter" {
		t.Errorf("answer = %q, want %q", got, "beforeafter")
	}
}

func TestExtractor_ChunkPair(t *testing.T) {
	sink, _ := run("<thinking>Let", "me think</thinking>\n\nAnswer")

	if got := sink.thinking.String(); got != "Letme think" {
		t.Errorf("thinking = %q, want %q", got, "Letme think")
	}
	if got := sink.answer.String(); got != "Answer" {
		t.Errorf("answer = %q, want %q", got, "Answer")
	}
}

func TestExtractor_CallOrdering(t *testing.T) {
	sink, _ := run("<thinking>A</thinking>\n\nB")

	var starts, ends int
	seenDelta := false
	for _, c := range sink.calls {
		switch c {
		case "thinking_start":
			starts++
			if seenDelta {
				t.Error("thinking_start after a thinking_delta")
			}
		case "thinking_delta":
			seenDelta = true
		case "thinking_end":
			ends++
		}
	}
	if starts != 1 || ends != 1 {
		t.Errorf("thinking start/end counts = %d/%d, want 1/1", starts, ends)
	}

	last := sink.calls[len(sink.calls)-1]
	if last != "answer_delta" {
		t.Errorf("final call = %q, want answer_delta", last)
	}
}

func TestExtractor_AnswerIndex(t *testing.T) {
	sink, ex := run("<thinking>only thinking")
	if ex.AnswerIndex() != -1 {
		t.Errorf("AnswerIndex() = %d, want -1", ex.AnswerIndex())
	}
	if sink.answer.Len() != 0 {
		t.Errorf("answer = %q, want empty", sink.answer.String())
	}

	_, ex = run("<thinking>A</thinking>\n\nB")
	if ex.AnswerIndex() != 1 {
		t.Errorf("AnswerIndex() = %d, want 1", ex.AnswerIndex())
	}

	_, ex = run("no thinking at all")
	if ex.AnswerIndex() != 0 {
		t.Errorf("AnswerIndex() = %d, want 0", ex.AnswerIndex())
	}
}
