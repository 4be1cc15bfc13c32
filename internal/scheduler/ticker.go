// Package scheduler runs periodic jobs and supervises per-wallet monitor tasks.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"walletledger/internal/logging"
)

// TickFunc is invoked on every period.
type TickFunc func(ctx context.Context, at time.Time) error

// TickerOptions tune a Ticker.
type TickerOptions struct {
	Name     string
	Interval time.Duration
	// StartupDelay postpones the first tick; zero waits a full interval.
	StartupDelay time.Duration
}

// Ticker drives a job on a fixed period.
type Ticker struct {
	opts   TickerOptions
	logger zerolog.Logger
}

// NewTicker constructs a Ticker.
func NewTicker(opts TickerOptions, logger zerolog.Logger) (*Ticker, error) {
	if opts.Interval <= 0 {
		return nil, errors.New("ticker interval must be positive")
	}
	if opts.Name == "" {
		opts.Name = "ticker"
	}
	return &Ticker{opts: opts, logger: logging.Component(logger, "scheduler").With().Str("job", opts.Name).Logger()}, nil
}

// Run blocks, invoking tick until ctx is cancelled. Tick errors are logged.
func (t *Ticker) Run(ctx context.Context, tick TickFunc) error {
	first := t.opts.Interval
	if t.opts.StartupDelay > 0 {
		first = t.opts.StartupDelay
	}

	timer := time.NewTimer(first)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case at := <-timer.C:
			t.logger.Debug().Time("at", at).Msg("executing scheduled tick")
			if err := tick(ctx, at.UTC()); err != nil && ctx.Err() == nil {
				t.logger.Error().Err(err).Msg("tick execution failed")
			}
			timer.Reset(t.opts.Interval)
		}
	}
}
