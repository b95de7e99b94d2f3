package wire

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/kiro/pkg/models"
)

const (
	// placeholderToolName names synthesized tool calls paired with
	// results whose real call was truncated away.
	placeholderToolName = "unknown_tool"

	// placeholderCallsContent fills synthesized assistant turns.
	placeholderCallsContent = "Tool calls were made."
)

var emptyObjectSchema = json.RawMessage(`{"type":"object"}`)

// Sanitize enforces the pairing invariants: an assistant turn with tool
// calls survives only when the next entry is a user turn answering every
// call; a user turn with tool results survives only as that answer. A
// result that starts the sequence, or a non-user first entry, discards
// the whole history rather than opening invalid.
func Sanitize(entries []Turn) []Turn {
	var kept []Turn
	for i := 0; i < len(entries); i++ {
		e := entries[i]
		switch {
		case e.HasToolCalls():
			if i+1 < len(entries) && answersCalls(entries[i+1], e) {
				kept = append(kept, e, entries[i+1])
				i++
			}
		case e.HasToolResults():
			// Reachable only when the preceding assistant was
			// dropped or absent.
		default:
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	if !kept[0].IsUser() || kept[0].HasToolResults() {
		return nil
	}
	return kept
}

// answersCalls reports whether next is a user turn whose tool results
// cover every call id issued by the assistant turn.
func answersCalls(next, assistant Turn) bool {
	if !next.HasToolResults() {
		return false
	}
	answered := make(map[string]bool, len(next.User.Context.ToolResults))
	for _, id := range next.ToolResultIDs() {
		answered[id] = true
	}
	for _, id := range assistant.ToolCallIDs() {
		if !answered[id] {
			return false
		}
	}
	return true
}

// TruncateHistory shrinks the history under byteBudget by dropping the
// oldest entries, re-sanitizing after each drop. It never reduces the
// history below a two-entry exchange.
func TruncateHistory(entries []Turn, byteBudget int) []Turn {
	for len(entries) > 2 && HistorySize(entries) > byteBudget {
		entries = entries[1:]
		for len(entries) > 0 && !entries[0].IsUser() {
			entries = entries[1:]
		}
		entries = Sanitize(entries)
	}
	return entries
}

// InjectPlaceholders pairs tool results that reference call ids no
// retained assistant turn declares: a synthesized assistant turn with
// placeholder calls for exactly those ids is inserted before the result
// turn. Each synthesized id counts as declared afterwards.
func InjectPlaceholders(entries []Turn) []Turn {
	declared := make(map[string]bool)
	for _, e := range entries {
		for _, id := range e.ToolCallIDs() {
			declared[id] = true
		}
	}
	var out []Turn
	for _, e := range entries {
		if e.HasToolResults() {
			var orphaned []string
			for _, id := range e.ToolResultIDs() {
				if !declared[id] {
					orphaned = append(orphaned, id)
					declared[id] = true
				}
			}
			if len(orphaned) > 0 {
				a := &AssistantResponseMessage{Content: placeholderCallsContent}
				for _, id := range orphaned {
					a.ToolUses = append(a.ToolUses, ToolUse{
						Name:      placeholderToolName,
						ToolUseID: id,
						Input:     emptyObjectSchema,
					})
				}
				out = append(out, Turn{Assistant: a})
			}
		}
		out = append(out, e)
	}
	return out
}

// BuildTools converts the caller's tool catalog to wire specifications.
// Schemas that fail compilation are replaced by the empty object schema
// so the transport never rejects the catalog.
func BuildTools(specs []models.ToolSpec) []Tool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]Tool, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, Tool{ToolSpecification: ToolSpecification{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: InputSchema{JSON: usableSchema(s.InputSchema)},
		}})
	}
	return tools
}

// ReconcileTools appends a placeholder spec for every tool name the
// retained history references but the catalog lacks.
func ReconcileTools(entries []Turn, tools []Tool) []Tool {
	known := make(map[string]bool, len(tools))
	for _, t := range tools {
		known[t.ToolSpecification.Name] = true
	}
	for _, e := range entries {
		if e.Assistant == nil {
			continue
		}
		for _, u := range e.Assistant.ToolUses {
			if u.Name == "" || known[u.Name] {
				continue
			}
			known[u.Name] = true
			tools = append(tools, Tool{ToolSpecification: ToolSpecification{
				Name:        u.Name,
				InputSchema: InputSchema{JSON: emptyObjectSchema},
			}})
		}
	}
	return tools
}

func usableSchema(schema json.RawMessage) json.RawMessage {
	if len(schema) == 0 {
		return emptyObjectSchema
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool.json", bytes.NewReader(schema)); err != nil {
		return emptyObjectSchema
	}
	if _, err := compiler.Compile("tool.json"); err != nil {
		return emptyObjectSchema
	}
	return schema
}
