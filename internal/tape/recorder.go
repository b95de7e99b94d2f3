package tape

import (
	"context"
	"sync"
	"time"

	"github.com/haasonsaas/kiro/pkg/models"
)

// Streamer is the provider surface the recorder wraps and the replayer
// implements.
type Streamer interface {
	Stream(ctx context.Context, req *models.Request) (<-chan models.Event, error)
}

// Recorder wraps a Streamer, capturing every turn onto a tape while
// forwarding events unchanged.
type Recorder struct {
	upstream Streamer

	mu   sync.Mutex
	tape *Tape
}

// NewRecorder creates a recorder wrapping the given streamer.
func NewRecorder(upstream Streamer) *Recorder {
	return &Recorder{upstream: upstream, tape: NewTape()}
}

// WithModel sets the model in the tape header.
func (r *Recorder) WithModel(model string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tape.Model = model
	return r
}

// Stream implements Streamer, recording the turn as it flows through.
// The turn lands on the tape once its stream closes.
func (r *Recorder) Stream(ctx context.Context, req *models.Request) (<-chan models.Event, error) {
	start := time.Now()
	upstream, err := r.upstream.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan models.Event, 16)
	go func() {
		defer close(out)
		turn := Turn{Request: req}
		for ev := range upstream {
			turn.Events = append(turn.Events, ev)
			if ev.Terminal() {
				turn.StopReason = string(ev.Reason)
				if ev.Message != nil {
					turn.Text = ev.Message.Text()
				}
			}
			out <- ev
		}
		turn.Duration = time.Since(start)
		r.mu.Lock()
		r.tape.AddTurn(turn)
		r.mu.Unlock()
	}()
	return out, nil
}

// Tape returns a copy of the recording so far.
func (r *Recorder) Tape() *Tape {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tape.Clone()
}

// Save writes the recording so far to path.
func (r *Recorder) Save(path string) error {
	return r.Tape().Save(path)
}

// Reset clears the recording and starts fresh.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tape = NewTape()
}
