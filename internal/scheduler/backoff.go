package scheduler

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffOptions shape the reconnect delay sequence.
type BackoffOptions struct {
	Initial    time.Duration `mapstructure:"initial"`
	Max        time.Duration `mapstructure:"max"`
	Multiplier float64       `mapstructure:"multiplier"`
	Jitter     float64       `mapstructure:"jitter"`
}

// DefaultBackoff is 5s doubling up to 5m with ±20% jitter.
func DefaultBackoff() BackoffOptions {
	return BackoffOptions{Initial: 5 * time.Second, Max: 5 * time.Minute, Multiplier: 2, Jitter: 0.2}
}

// Backoff yields exponentially growing, jittered delays. Not safe for concurrent use.
type Backoff struct {
	opts    BackoffOptions
	attempt int
	random  func() float64
}

// NewBackoff builds a Backoff; random defaults to math/rand/v2.
func NewBackoff(opts BackoffOptions, random func() float64) *Backoff {
	def := DefaultBackoff()
	if opts.Initial <= 0 {
		opts.Initial = def.Initial
	}
	if opts.Max < opts.Initial {
		opts.Max = max(def.Max, opts.Initial)
	}
	if opts.Multiplier < 1 {
		opts.Multiplier = def.Multiplier
	}
	if opts.Jitter < 0 || opts.Jitter >= 1 {
		opts.Jitter = def.Jitter
	}
	if random == nil {
		random = rand.Float64
	}
	return &Backoff{opts: opts, random: random}
}

// Next returns the delay before the next attempt.
func (b *Backoff) Next() time.Duration {
	base := float64(b.opts.Initial) * math.Pow(b.opts.Multiplier, float64(b.attempt))
	if base > float64(b.opts.Max) {
		base = float64(b.opts.Max)
	} else {
		b.attempt++
	}
	spread := base * b.opts.Jitter * (2*b.random() - 1)
	return time.Duration(base + spread)
}

// Reset restarts the sequence at Initial.
func (b *Backoff) Reset() {
	b.attempt = 0
}
