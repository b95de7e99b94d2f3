package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicy_Delay(t *testing.T) {
	p := Policy{Initial: 100 * time.Millisecond, Max: time.Second, Factor: 2, Jitter: 0}

	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{name: "first attempt", attempt: 1, want: 100 * time.Millisecond},
		{name: "second attempt doubles", attempt: 2, want: 200 * time.Millisecond},
		{name: "third attempt doubles again", attempt: 3, want: 400 * time.Millisecond},
		{name: "clamped at max", attempt: 10, want: time.Second},
		{name: "attempt below one treated as first", attempt: 0, want: 100 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.delay(tt.attempt, 0); got != tt.want {
				t.Errorf("delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestPolicy_DelayJitterBounds(t *testing.T) {
	p := Policy{Initial: 100 * time.Millisecond, Max: time.Minute, Factor: 2, Jitter: 0.5}
	base := 100 * time.Millisecond
	if got := p.delay(1, 0); got != base {
		t.Errorf("zero random = %v, want %v", got, base)
	}
	if got := p.delay(1, 1); got != base+base/2 {
		t.Errorf("full random = %v, want %v", got, base+base/2)
	}
}

func TestRetry(t *testing.T) {
	quick := Policy{Initial: time.Microsecond, Max: time.Millisecond, Factor: 2}

	t.Run("first attempt succeeds", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), quick, 3, func(int) error {
			calls++
			return nil
		})
		if err != nil || calls != 1 {
			t.Fatalf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), quick, 3, func(int) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Fatalf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("exhaustion returns last error", func(t *testing.T) {
		want := errors.New("still failing")
		calls := 0
		err := Retry(context.Background(), quick, 3, func(int) error {
			calls++
			return want
		})
		if !errors.Is(err, want) {
			t.Errorf("err = %v, want %v", err, want)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("permanent error stops retrying", func(t *testing.T) {
		want := errors.New("bad credentials")
		calls := 0
		err := Retry(context.Background(), quick, 5, func(int) error {
			calls++
			return Permanent(want)
		})
		if !errors.Is(err, want) {
			t.Errorf("err = %v, want %v", err, want)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := Retry(ctx, quick, 3, func(int) error {
			calls++
			return errors.New("transient")
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
		if calls != 0 {
			t.Errorf("calls = %d, want 0", calls)
		}
	})
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("zero duration sleep = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled sleep = %v, want context.Canceled", err)
	}
}
