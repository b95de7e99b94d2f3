// Package wire implements the Kiro wire protocol: framing of the streamed
// response into typed events, the request payload shapes, and the
// construction of a protocol-legal turn history from caller messages.
package wire

import (
	"strings"

	"github.com/tidwall/gjson"
)

// EventKind classifies a decoded stream object.
type EventKind int

const (
	KindContent EventKind = iota
	KindToolBegin
	KindToolInput
	KindToolStop
	KindContextUsage
)

// StreamEvent is one decoded object from the response stream.
type StreamEvent struct {
	Kind EventKind

	// Content is the text delta of a content event.
	Content string

	// Name and ToolUseID identify the call on a tool-use-begin event.
	Name      string
	ToolUseID string

	// Input is the argument fragment on tool-use-begin and
	// tool-use-input-continuation events.
	Input string

	// Stop is the close flag on tool-use-begin and tool-use-stop events.
	Stop bool

	// Usage is the context usage percentage on a context-usage event.
	Usage float64
}

// The response stream carries back-to-back JSON objects with no delimiters.
// Each recognizable object opens with one of these field names; anything
// else between objects is noise and is dropped.
var anchors = []string{
	`{"content"`,
	`{"name"`,
	`{"input"`,
	`{"stop"`,
	`{"contextUsagePercentage"`,
}

// ParseStream scans buf for complete recognizable objects and classifies
// them. It returns the decoded events in stream order and the unconsumed
// tail: the suffix from the first incomplete object's anchor, or a trailing
// partial anchor, so that feeding remainder+more bytes later decodes the
// same events as one pass over the whole buffer would.
func ParseStream(buf string) ([]StreamEvent, string) {
	var events []StreamEvent
	pos := 0
	for {
		i := nextAnchor(buf, pos)
		if i < 0 {
			return events, partialAnchorTail(buf, pos)
		}
		end := scanObject(buf[i:])
		if end < 0 {
			return events, buf[i:]
		}
		if ev, ok := classify(buf[i : i+end]); ok {
			events = append(events, ev)
		}
		pos = i + end
	}
}

// nextAnchor returns the earliest anchor position at or after pos, or -1.
func nextAnchor(buf string, pos int) int {
	best := -1
	for _, a := range anchors {
		if i := strings.Index(buf[pos:], a); i >= 0 {
			if best < 0 || pos+i < best {
				best = pos + i
			}
		}
	}
	return best
}

// partialAnchorTail returns the trailing bytes that are a proper prefix of
// some anchor. A chunk boundary may fall inside an anchor; dropping such a
// tail would lose the event once the rest arrives.
func partialAnchorTail(buf string, pos int) string {
	start := len(buf) - longestAnchor + 1
	if start < pos {
		start = pos
	}
	for j := start; j < len(buf); j++ {
		if buf[j] != '{' {
			continue
		}
		tail := buf[j:]
		for _, a := range anchors {
			if len(tail) < len(a) && strings.HasPrefix(a, tail) {
				return tail
			}
		}
	}
	return ""
}

var longestAnchor = func() int {
	n := 0
	for _, a := range anchors {
		if len(a) > n {
			n = len(a)
		}
	}
	return n
}()

// scanObject returns the length of the JSON object starting at s[0], or -1
// when the closing brace has not arrived yet. Braces inside string literals
// are non-structural; a double-quote toggle with backslash look-ahead tracks
// literal boundaries.
func scanObject(s string) int {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		if escaped {
			escaped = false
			continue
		}
		switch s[i] {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return i + 1
				}
			}
		}
	}
	return -1
}

// classify maps one complete object to an event. The precedence order is
// fixed: content, tool-use-begin, input continuation, stop, context usage.
// Objects matching no shape, and malformed JSON inside matched braces, are
// dropped.
func classify(obj string) (StreamEvent, bool) {
	if !gjson.Valid(obj) {
		return StreamEvent{}, false
	}
	node := gjson.Parse(obj)

	if v := node.Get("content"); v.Exists() {
		return StreamEvent{Kind: KindContent, Content: v.String()}, true
	}
	name := node.Get("name")
	toolUseID := node.Get("toolUseId")
	if name.Exists() && toolUseID.Exists() {
		return StreamEvent{
			Kind:      KindToolBegin,
			Name:      name.String(),
			ToolUseID: toolUseID.String(),
			Input:     node.Get("input").String(),
			Stop:      node.Get("stop").Bool(),
		}, true
	}
	if v := node.Get("input"); v.Exists() && !name.Exists() {
		return StreamEvent{Kind: KindToolInput, Input: v.String()}, true
	}
	usage := node.Get("contextUsagePercentage")
	if v := node.Get("stop"); v.Exists() && !usage.Exists() {
		return StreamEvent{Kind: KindToolStop, Stop: v.Bool()}, true
	}
	if usage.Exists() {
		return StreamEvent{Kind: KindContextUsage, Usage: usage.Float()}, true
	}
	return StreamEvent{}, false
}
