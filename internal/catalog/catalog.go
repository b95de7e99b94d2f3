// Package catalog provides the static directory of models selectable
// through the kiro provider, including the translation from caller-facing
// model ids to transport-facing wire ids.
package catalog

import (
	"sort"
	"strings"
	"sync"
)

// Model describes one selectable model and its capability flags.
type Model struct {
	// ID is the caller-facing model identifier.
	ID string `json:"id"`

	// Name is a human-readable name.
	Name string `json:"name"`

	// WireID is the transport-facing identifier sent on requests.
	WireID string `json:"wire_id"`

	// ContextWindow is the maximum context size in tokens.
	ContextWindow int `json:"context_window"`

	// MaxOutputTokens is the maximum output size in tokens.
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`

	// Reasoning reports whether the model emits inline thinking blocks
	// that the extractor must split from answer text.
	Reasoning bool `json:"reasoning,omitempty"`

	// Aliases are alternative caller-facing names.
	Aliases []string `json:"aliases,omitempty"`
}

// Catalog manages the set of selectable models.
type Catalog struct {
	mu      sync.RWMutex
	models  map[string]*Model
	aliases map[string]string
}

// New creates a catalog populated with the built-in models.
func New() *Catalog {
	c := &Catalog{
		models:  make(map[string]*Model),
		aliases: make(map[string]string),
	}
	c.registerBuiltins()
	return c
}

// Register adds or replaces a model and its aliases.
func (c *Catalog) Register(model *Model) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.models[model.ID] = model
	for _, alias := range model.Aliases {
		c.aliases[strings.ToLower(alias)] = model.ID
	}
}

// Resolve retrieves a model by id or alias, case-insensitively.
func (c *Catalog) Resolve(id string) (*Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if model, ok := c.models[id]; ok {
		return model, true
	}
	lower := strings.ToLower(id)
	if model, ok := c.models[lower]; ok {
		return model, true
	}
	if realID, ok := c.aliases[lower]; ok {
		return c.models[realID], true
	}
	return nil, false
}

// List returns all models sorted by id.
func (c *Catalog) List() []*Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Model, 0, len(c.models))
	for _, model := range c.models {
		result = append(result, model)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// registerBuiltins installs the models the Kiro service exposes. The
// wire ids follow the service's versioned upper-snake scheme; "auto"
// lets the service pick a tier.
func (c *Catalog) registerBuiltins() {
	builtins := []*Model{
		{
			ID:              "claude-sonnet-4-5-20250929",
			Name:            "Claude Sonnet 4.5",
			WireID:          "CLAUDE_SONNET_4_5_20250929_V1_0",
			ContextWindow:   200000,
			MaxOutputTokens: 64000,
			Reasoning:       true,
			Aliases:         []string{"claude-sonnet-4-5", "sonnet-4.5"},
		},
		{
			ID:              "claude-sonnet-4-20250514",
			Name:            "Claude Sonnet 4",
			WireID:          "CLAUDE_SONNET_4_20250514_V1_0",
			ContextWindow:   200000,
			MaxOutputTokens: 64000,
			Reasoning:       true,
			Aliases:         []string{"claude-sonnet-4", "sonnet-4"},
		},
		{
			ID:              "claude-3-7-sonnet-20250219",
			Name:            "Claude 3.7 Sonnet",
			WireID:          "CLAUDE_3_7_SONNET_20250219_V1_0",
			ContextWindow:   200000,
			MaxOutputTokens: 32000,
			Reasoning:       true,
			Aliases:         []string{"claude-3-7-sonnet", "sonnet-3.7"},
		},
		{
			ID:              "claude-3-5-haiku-20241022",
			Name:            "Claude 3.5 Haiku",
			WireID:          "auto",
			ContextWindow:   200000,
			MaxOutputTokens: 8192,
			Aliases:         []string{"claude-3-5-haiku", "haiku"},
		},
	}
	for _, m := range builtins {
		c.Register(m)
	}
}
