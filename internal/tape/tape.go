// Package tape records and replays turn event streams. A tape captured
// against the live service plays back in tests and demos without network
// access or credentials.
package tape

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/haasonsaas/kiro/pkg/models"
)

// Tape is a recorded session: the ordered turns with their full event
// sequences.
type Tape struct {
	// Version of the tape format.
	Version string `json:"version"`

	// CreatedAt is when the tape was recorded.
	CreatedAt time.Time `json:"created_at"`

	// Model is the model the session ran against.
	Model string `json:"model,omitempty"`

	// Turns contains each request/stream turn in order.
	Turns []Turn `json:"turns"`

	// Metadata holds arbitrary metadata.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Turn is one request and the event sequence it produced.
type Turn struct {
	// Index is the 0-based turn number.
	Index int `json:"index"`

	// Request is the request that opened the turn.
	Request *models.Request `json:"request,omitempty"`

	// Events is the full ordered event sequence, terminal event included.
	Events []models.Event `json:"events"`

	// Text is the accumulated answer text.
	Text string `json:"text,omitempty"`

	// StopReason is the terminal event's reason.
	StopReason string `json:"stop_reason,omitempty"`

	// Duration is how long the turn took.
	Duration time.Duration `json:"duration"`
}

// NewTape creates a new empty tape.
func NewTape() *Tape {
	return &Tape{
		Version:   "1.0",
		CreatedAt: time.Now(),
		Turns:     []Turn{},
		Metadata:  make(map[string]any),
	}
}

// AddTurn appends a turn, assigning its index.
func (t *Tape) AddTurn(turn Turn) {
	turn.Index = len(t.Turns)
	t.Turns = append(t.Turns, turn)
}

// GetTurn returns the turn at the given index.
func (t *Tape) GetTurn(index int) (*Turn, bool) {
	if index < 0 || index >= len(t.Turns) {
		return nil, false
	}
	return &t.Turns[index], true
}

// TotalTurns returns the number of turns in the tape.
func (t *Tape) TotalTurns() int {
	return len(t.Turns)
}

// Marshal serializes the tape to JSON.
func (t *Tape) Marshal() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// Unmarshal deserializes a tape from JSON.
func Unmarshal(data []byte) (*Tape, error) {
	var tape Tape
	if err := json.Unmarshal(data, &tape); err != nil {
		return nil, err
	}
	return &tape, nil
}

// Save writes the tape to path as indented JSON.
func (t *Tape) Save(path string) error {
	data, err := t.Marshal()
	if err != nil {
		return fmt.Errorf("marshal tape: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a tape from path.
func Load(path string) (*Tape, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tape, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("parse tape %s: %w", path, err)
	}
	return tape, nil
}

// Clone creates a deep copy of the tape.
func (t *Tape) Clone() *Tape {
	data, err := t.Marshal()
	if err == nil {
		if clone, err := Unmarshal(data); err == nil {
			return clone
		}
	}
	clone := *t
	if t.Metadata != nil {
		clone.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			clone.Metadata[k] = v
		}
	}
	clone.Turns = append([]Turn(nil), t.Turns...)
	return &clone
}

// Summary returns a brief overview of the tape contents.
func (t *Tape) Summary() Summary {
	var totalEvents int
	var totalText int
	for _, turn := range t.Turns {
		totalEvents += len(turn.Events)
		totalText += len(turn.Text)
	}
	return Summary{
		Version:      t.Version,
		CreatedAt:    t.CreatedAt,
		Model:        t.Model,
		TurnCount:    len(t.Turns),
		TotalEvents:  totalEvents,
		TotalTextLen: totalText,
	}
}

// Summary is a brief overview of a tape.
type Summary struct {
	Version      string    `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	Model        string    `json:"model,omitempty"`
	TurnCount    int       `json:"turn_count"`
	TotalEvents  int       `json:"total_events"`
	TotalTextLen int       `json:"total_text_len"`
}
