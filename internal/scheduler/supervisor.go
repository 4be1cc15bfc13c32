package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"walletledger/internal/logging"
)

// Watch identifies one monitored wallet and where its requests go.
type Watch struct {
	Alias   string
	Address string
	Target  string
}

// WatchFunc runs one monitor session; it returns when the session ends.
type WatchFunc func(ctx context.Context, w Watch) error

// OutageFunc is told once a watch reaches the consecutive failure threshold.
type OutageFunc func(ctx context.Context, w Watch, failures int, err error)

// StableFunc reports whether a failed session had been healthy long enough
// to restart the backoff sequence.
type StableFunc func(err error) bool

// SupervisorOptions configure a Supervisor.
type SupervisorOptions struct {
	Backoff    BackoffOptions
	AlertAfter int
	OnOutage   OutageFunc
	Stable     StableFunc
	Generator  *Ticker
	// Random feeds backoff jitter; nil uses math/rand/v2.
	Random func() float64
}

type task struct {
	watch  Watch
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns one restartable task per alias plus the shared generator.
type Supervisor struct {
	watchFn WatchFunc
	opts    SupervisorOptions
	logger  zerolog.Logger

	mu        sync.Mutex
	base      context.Context
	tasks     map[string]*task
	generator *task
	genTick   TickFunc
	closed    bool
}

// NewSupervisor builds a Supervisor; tasks derive from ctx.
func NewSupervisor(ctx context.Context, watchFn WatchFunc, opts SupervisorOptions, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		watchFn: watchFn,
		opts:    opts,
		logger:  logging.Component(logger, "supervisor"),
		base:    ctx,
		tasks:   make(map[string]*task),
	}
}

// Start cancels any task for w.Alias and starts a fresh one.
func (s *Supervisor) Start(w Watch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if prev, ok := s.tasks[w.Alias]; ok {
		prev.cancel()
		<-prev.done
	}

	ctx, cancel := context.WithCancel(s.base)
	t := &task{watch: w, cancel: cancel, done: make(chan struct{})}
	s.tasks[w.Alias] = t
	go s.loop(ctx, t)

	s.logger.Info().Str("alias", w.Alias).Str("address", w.Address).Msg("monitor started")
}

// Stop cancels the task for alias and waits for it to exit. It reports whether one was running.
func (s *Supervisor) Stop(alias string) bool {
	s.mu.Lock()
	t, ok := s.tasks[alias]
	delete(s.tasks, alias)
	s.mu.Unlock()

	if !ok {
		return false
	}
	t.cancel()
	<-t.done
	s.logger.Info().Str("alias", alias).Msg("monitor stopped")
	return true
}

// Running lists the aliases with a live task.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tasks))
	for alias := range s.tasks {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// StartGenerator starts tick on the generator ticker unless it already runs.
func (s *Supervisor) StartGenerator(tick TickFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.generator != nil || s.opts.Generator == nil {
		return false
	}

	ctx, cancel := context.WithCancel(s.base)
	t := &task{cancel: cancel, done: make(chan struct{})}
	s.generator = t
	go func() {
		defer close(t.done)
		if err := s.opts.Generator.Run(ctx, tick); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn().Err(err).Msg("generator exited")
		}
	}()

	s.logger.Info().Msg("generator started")
	return true
}

// StopGenerator stops the generator if it runs.
func (s *Supervisor) StopGenerator() bool {
	s.mu.Lock()
	t := s.generator
	s.generator = nil
	s.mu.Unlock()

	if t == nil {
		return false
	}
	t.cancel()
	<-t.done
	s.logger.Info().Msg("generator stopped")
	return true
}

// GeneratorRunning reports whether the generator is active.
func (s *Supervisor) GeneratorRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generator != nil
}

// Shutdown cancels every monitor, then the generator, and waits for them.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	s.closed = true
	tasks := s.tasks
	s.tasks = make(map[string]*task)
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	for _, t := range tasks {
		<-t.done
	}
	s.StopGenerator()
}

func (s *Supervisor) loop(ctx context.Context, t *task) {
	defer close(t.done)

	w := t.watch
	log := s.logger.With().Str("alias", w.Alias).Str("address", w.Address).Logger()
	backoff := NewBackoff(s.opts.Backoff, s.opts.Random)
	failures := 0

	for {
		err := s.watchFn(ctx, w)
		if ctx.Err() != nil {
			return
		}

		if s.opts.Stable != nil && s.opts.Stable(err) {
			backoff.Reset()
			failures = 0
		}
		failures++

		if s.opts.AlertAfter > 0 && failures == s.opts.AlertAfter && s.opts.OnOutage != nil {
			s.opts.OnOutage(ctx, w, failures, err)
		}

		delay := backoff.Next()
		log.Warn().Err(err).Int("attempt", failures).Dur("delay", delay).Msg("monitor session ended, restarting")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
