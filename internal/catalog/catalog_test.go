package catalog

import (
	"sort"
	"testing"
)

func TestCatalog_Resolve(t *testing.T) {
	c := New()

	tests := []struct {
		name       string
		id         string
		wantID     string
		wantWireID string
		wantOK     bool
	}{
		{name: "by id", id: "claude-sonnet-4-5-20250929", wantID: "claude-sonnet-4-5-20250929", wantWireID: "CLAUDE_SONNET_4_5_20250929_V1_0", wantOK: true},
		{name: "by alias", id: "sonnet-4.5", wantID: "claude-sonnet-4-5-20250929", wantWireID: "CLAUDE_SONNET_4_5_20250929_V1_0", wantOK: true},
		{name: "case insensitive alias", id: "HAIKU", wantID: "claude-3-5-haiku-20241022", wantWireID: "auto", wantOK: true},
		{name: "unknown", id: "gpt-42", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, ok := c.Resolve(tt.id)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if model.ID != tt.wantID {
				t.Errorf("id = %q, want %q", model.ID, tt.wantID)
			}
			if model.WireID != tt.wantWireID {
				t.Errorf("wire id = %q, want %q", model.WireID, tt.wantWireID)
			}
		})
	}
}

func TestCatalog_ReasoningFlags(t *testing.T) {
	c := New()
	sonnet, ok := c.Resolve("claude-sonnet-4-5")
	if !ok || !sonnet.Reasoning {
		t.Errorf("sonnet reasoning = %v, ok = %v, want true", sonnet != nil && sonnet.Reasoning, ok)
	}
	haiku, ok := c.Resolve("haiku")
	if !ok || haiku.Reasoning {
		t.Errorf("haiku reasoning should be false")
	}
}

func TestCatalog_Register(t *testing.T) {
	c := New()
	c.Register(&Model{
		ID:            "custom-model",
		WireID:        "CUSTOM_V1_0",
		ContextWindow: 100000,
		Aliases:       []string{"custom"},
	})
	model, ok := c.Resolve("custom")
	if !ok || model.WireID != "CUSTOM_V1_0" {
		t.Fatalf("custom model not resolvable: %+v, %v", model, ok)
	}
}

func TestCatalog_List(t *testing.T) {
	c := New()
	models := c.List()
	if len(models) != 4 {
		t.Fatalf("models = %d, want 4", len(models))
	}
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("models not sorted: %v", ids)
	}
}
