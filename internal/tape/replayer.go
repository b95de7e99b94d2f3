package tape

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/haasonsaas/kiro/pkg/models"
)

// ErrTapeExhausted indicates the tape has no more turns to replay.
var ErrTapeExhausted = errors.New("tape exhausted: no more turns to replay")

// ReplayMode controls how strictly the replayer matches requests.
type ReplayMode int

const (
	// ReplayStrict records a mismatch when a request differs from the
	// recorded one.
	ReplayStrict ReplayMode = iota

	// ReplayLoose ignores request differences and just returns the
	// recorded events.
	ReplayLoose
)

// Replayer plays a recorded tape back through the Streamer interface.
type Replayer struct {
	tape *Tape
	mode ReplayMode

	mu         sync.Mutex
	turnIdx    int
	mismatches []Mismatch
}

// Mismatch records a difference between a replayed request and the
// recorded one.
type Mismatch struct {
	TurnIndex int    `json:"turn_index"`
	Field     string `json:"field"`
	Expected  string `json:"expected"`
	Actual    string `json:"actual"`
}

// NewReplayer creates a replayer from a tape.
func NewReplayer(tape *Tape) *Replayer {
	return &Replayer{
		tape: tape.Clone(),
		mode: ReplayLoose,
	}
}

// WithMode sets the replay mode.
func (r *Replayer) WithMode(mode ReplayMode) *Replayer {
	r.mode = mode
	return r
}

// Stream implements Streamer, returning the next recorded turn's events.
func (r *Replayer) Stream(ctx context.Context, req *models.Request) (<-chan models.Event, error) {
	r.mu.Lock()
	if r.turnIdx >= len(r.tape.Turns) {
		r.mu.Unlock()
		return nil, ErrTapeExhausted
	}
	turn := r.tape.Turns[r.turnIdx]
	currentTurn := r.turnIdx
	r.turnIdx++
	r.mu.Unlock()

	if r.mode == ReplayStrict {
		r.checkMismatches(currentTurn, req, turn.Request)
	}

	out := make(chan models.Event, len(turn.Events)+1)
	go func() {
		defer close(out)
		for _, ev := range turn.Events {
			select {
			case <-ctx.Done():
				out <- models.Event{
					Type:   models.EventError,
					Reason: models.StopAborted,
					Error:  ctx.Err().Error(),
				}
				return
			case out <- ev:
			}
		}
	}()
	return out, nil
}

// checkMismatches compares requests and records any differences.
func (r *Replayer) checkMismatches(turnIndex int, actual, expected *models.Request) {
	if actual == nil || expected == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if expected.Model != "" && actual.Model != expected.Model {
		r.mismatches = append(r.mismatches, Mismatch{
			TurnIndex: turnIndex,
			Field:     "model",
			Expected:  expected.Model,
			Actual:    actual.Model,
		})
	}
	if len(actual.Messages) != len(expected.Messages) {
		r.mismatches = append(r.mismatches, Mismatch{
			TurnIndex: turnIndex,
			Field:     "message_count",
			Expected:  fmt.Sprintf("%d", len(expected.Messages)),
			Actual:    fmt.Sprintf("%d", len(actual.Messages)),
		})
	}
}

// Mismatches returns any recorded mismatches from strict mode.
func (r *Replayer) Mismatches() []Mismatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Mismatch{}, r.mismatches...)
}

// Reset rewinds the replayer to the first turn.
func (r *Replayer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turnIdx = 0
	r.mismatches = nil
}

// CurrentTurn returns the index of the next turn to replay.
func (r *Replayer) CurrentTurn() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turnIdx
}
