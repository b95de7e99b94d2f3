// Package thinking splits an inline reasoning section out of a streamed
// answer. The service interleaves reasoning into the content stream between
// paired markers; markers may arrive split across chunk boundaries.
package thinking

import "strings"

// Markers delimiting the reasoning section inside streamed content.
const (
	OpenMarker  = "<thinking>"
	CloseMarker = "</thinking>"
)

// separator is the blank line the service emits between the close marker and
// the answer text. It is consumed exactly once.
const separator = "\n\n"

type state int

const (
	stateBefore state = iota
	stateInside
	stateAfter
)

// Sink receives the extractor's ordered flushes. Implementations own content
// slot allocation; the Start calls return the allocated slot index. The
// extractor guarantees at most one thinking block and one answer block, each
// opened before its first delta, and ThinkingEnd called exactly once per
// opened thinking block.
type Sink interface {
	ThinkingStart() int
	ThinkingDelta(text string)
	ThinkingEnd(full string)
	AnswerStart() int
	AnswerDelta(text string)
}

// Extractor is a per-turn state machine over content deltas. It withholds at
// most len(marker)-1 trailing characters while a marker could still complete
// in the next chunk, so no marker text ever leaks into flushed content.
//
// Not safe for concurrent use; one turn drives one extractor.
type Extractor struct {
	sink Sink

	st      state
	pending string // withheld tail that may begin a marker

	// thinking accumulates the full reasoning text across flushes.
	thinking     strings.Builder
	thinkingOpen bool
	answerOpen   bool
	answerIdx    int

	// sepPending withholds an undecided separator prefix after the close
	// marker until sepDone.
	sepDone    bool
	sepPending string
}

// New returns an extractor flushing into sink.
func New(sink Sink) *Extractor {
	return &Extractor{sink: sink, answerIdx: -1}
}

// ProcessChunk consumes one content delta, flushing any text whose
// classification is already decidable.
func (e *Extractor) ProcessChunk(text string) {
	if text == "" {
		return
	}
	s := e.pending + text
	e.pending = ""

	for s != "" {
		switch e.st {
		case stateBefore:
			if i := strings.Index(s, OpenMarker); i >= 0 {
				e.flushAnswer(s[:i])
				e.st = stateInside
				s = s[i+len(OpenMarker):]
				continue
			}
			keep := len(OpenMarker) - 1
			if keep > len(s) {
				keep = len(s)
			}
			e.flushAnswer(s[:len(s)-keep])
			e.pending = s[len(s)-keep:]
			return

		case stateInside:
			if i := strings.Index(s, CloseMarker); i >= 0 {
				e.flushThinking(s[:i])
				e.closeThinking()
				e.st = stateAfter
				s = s[i+len(CloseMarker):]
				continue
			}
			keep := len(CloseMarker) - 1
			if keep > len(s) {
				keep = len(s)
			}
			e.flushThinking(s[:len(s)-keep])
			e.pending = s[len(s)-keep:]
			return

		case stateAfter:
			s = e.consumeSeparator(s)
			e.flushAnswer(s)
			return
		}
	}
}

// Finalize flushes whatever is still withheld: as thinking when the close
// marker never arrived (closing the section), as answer otherwise.
func (e *Extractor) Finalize() {
	switch e.st {
	case stateInside:
		e.flushThinking(e.pending)
		e.closeThinking()
	case stateBefore:
		e.flushAnswer(e.pending)
	case stateAfter:
		if !e.sepDone && e.sepPending != "" {
			withheld := e.sepPending
			e.sepPending = ""
			e.sepDone = true
			e.flushAnswer(withheld)
		}
	}
	e.pending = ""
}

// AnswerIndex returns the slot index allocated for answer content, or -1
// when no answer content was ever flushed.
func (e *Extractor) AnswerIndex() int {
	return e.answerIdx
}

// consumeSeparator strips exactly one leading blank line from the text
// following the close marker. The separator itself may straddle chunks, so
// an undecided prefix is withheld rather than flushed.
func (e *Extractor) consumeSeparator(s string) string {
	if e.sepDone {
		return s
	}
	s = e.sepPending + s
	e.sepPending = ""
	if strings.HasPrefix(s, separator) {
		e.sepDone = true
		return s[len(separator):]
	}
	if len(s) < len(separator) && strings.HasPrefix(separator, s) {
		e.sepPending = s
		return ""
	}
	e.sepDone = true
	return s
}

func (e *Extractor) flushAnswer(text string) {
	if text == "" {
		return
	}
	if !e.answerOpen {
		e.answerOpen = true
		e.answerIdx = e.sink.AnswerStart()
	}
	e.sink.AnswerDelta(text)
}

func (e *Extractor) flushThinking(text string) {
	if text == "" {
		return
	}
	if !e.thinkingOpen {
		e.thinkingOpen = true
		e.sink.ThinkingStart()
	}
	e.thinking.WriteString(text)
	e.sink.ThinkingDelta(text)
}

func (e *Extractor) closeThinking() {
	if !e.thinkingOpen {
		return
	}
	e.sink.ThinkingEnd(e.thinking.String())
}
