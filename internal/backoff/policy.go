// Package backoff provides exponential backoff with jitter for paced
// retries, used to space out credential refresh attempts.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy parameterizes exponential backoff.
type Policy struct {
	// Initial is the delay after the first failed attempt.
	Initial time.Duration
	// Max caps the computed delay.
	Max time.Duration
	// Factor is the multiplier applied per attempt.
	Factor float64
	// Jitter is the randomization fraction (0.0 to 1.0) added on top.
	Jitter float64
}

// Default returns the policy used for credential refresh pacing.
func Default() Policy {
	return Policy{
		Initial: 200 * time.Millisecond,
		Max:     10 * time.Second,
		Factor:  2,
		Jitter:  0.1,
	}
}

// Delay returns the pause before retrying after attempt failures.
// Attempts are 1-indexed.
func (p Policy) Delay(attempt int) time.Duration {
	return p.delay(attempt, rand.Float64()) // #nosec G404 -- jitter does not require cryptographic randomness
}

func (p Policy) delay(attempt int, random float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := float64(p.Initial) * math.Pow(p.Factor, exp)
	total := base + base*p.Jitter*random
	if ceiling := float64(p.Max); p.Max > 0 && total > ceiling {
		total = ceiling
	}
	return time.Duration(total)
}
