// Package backoff implements the jittered exponential backoff used by
// the activate task's retry loop.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Backoff produces a sequence of jittered delays, starting at Base
// and multiplying by Multiplier on every call. It places no bound on
// the number of calls; the caller decides when to stop.
type Backoff struct {
	base       time.Duration
	jitter     time.Duration
	multiplier int64
	current    time.Duration
}

// New returns a Backoff whose first delay is base + a uniform random
// duration in [0, jitter), doubling (or scaling by multiplier) on
// every subsequent call.
func New(base, jitter time.Duration, multiplier int64) *Backoff {
	return &Backoff{
		base:       base,
		jitter:     jitter,
		multiplier: multiplier,
		current:    base,
	}
}

// Next returns the delay for the upcoming attempt (base value plus a
// fresh random jitter sample), then scales the base delay by
// Multiplier for the following call.
func (b *Backoff) Next() time.Duration {
	d := b.current
	if b.jitter > 0 {
		d += time.Duration(rand.Int64N(int64(b.jitter)))
	}
	b.current *= time.Duration(b.multiplier)
	return d
}

// Reset restores the backoff to its initial base delay.
func (b *Backoff) Reset() {
	b.current = b.base
}
