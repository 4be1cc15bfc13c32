package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffSequence(t *testing.T) {
	b := NewBackoff(DefaultBackoff(), func() float64 { return 0.5 })

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second, 80 * time.Second, 160 * time.Second, 5 * time.Minute, 5 * time.Minute}
	for i, d := range want {
		assert.Equal(t, d, b.Next(), "attempt %d", i)
	}

	b.Reset()
	assert.Equal(t, 5*time.Second, b.Next())
}

func TestBackoffJitterBounds(t *testing.T) {
	low := NewBackoff(DefaultBackoff(), func() float64 { return 0 })
	high := NewBackoff(DefaultBackoff(), func() float64 { return 0.999999 })

	assert.Equal(t, 4*time.Second, low.Next())
	d := high.Next()
	assert.Greater(t, d, 5*time.Second)
	assert.LessOrEqual(t, d, 6*time.Second)
}

func TestTickerFiresAfterStartupDelay(t *testing.T) {
	ticker, err := NewTicker(TickerOptions{Interval: 20 * time.Millisecond, StartupDelay: time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var fired atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- ticker.Run(ctx, func(context.Context, time.Time) error {
			if fired.Add(1) == 3 {
				cancel()
			}
			return errors.New("logged only")
		})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("ticker did not stop")
	}
	assert.Equal(t, int32(3), fired.Load())

	_, err = NewTicker(TickerOptions{}, zerolog.Nop())
	require.Error(t, err)
}

func TestSupervisorRestartsAndAlerts(t *testing.T) {
	var (
		attempts atomic.Int32
		mu       sync.Mutex
		outages  []int
	)
	alerted := make(chan struct{})

	watchFn := func(ctx context.Context, w Watch) error {
		attempts.Add(1)
		return errors.New("connection refused")
	}
	sup := NewSupervisor(context.Background(), watchFn, SupervisorOptions{
		Backoff:    BackoffOptions{Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2},
		AlertAfter: 3,
		OnOutage: func(_ context.Context, w Watch, failures int, _ error) {
			mu.Lock()
			outages = append(outages, failures)
			mu.Unlock()
			close(alerted)
		},
	}, zerolog.Nop())

	sup.Start(Watch{Alias: "main", Address: "ADDR1", Target: "7"})

	select {
	case <-alerted:
	case <-time.After(5 * time.Second):
		t.Fatal("outage was not reported")
	}
	require.True(t, sup.Stop("main"))
	assert.GreaterOrEqual(t, attempts.Load(), int32(3))
	assert.Empty(t, sup.Running())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{3}, outages)
}

func TestSupervisorStartReplacesTask(t *testing.T) {
	var live atomic.Int32
	started := make(chan Watch, 4)
	watchFn := func(ctx context.Context, w Watch) error {
		live.Add(1)
		defer live.Add(-1)
		started <- w
		<-ctx.Done()
		return ctx.Err()
	}
	sup := NewSupervisor(context.Background(), watchFn, SupervisorOptions{}, zerolog.Nop())

	sup.Start(Watch{Alias: "main", Address: "A"})
	<-started
	sup.Start(Watch{Alias: "main", Address: "B"})
	w := <-started

	assert.Equal(t, "B", w.Address)
	assert.Equal(t, int32(1), live.Load())
	assert.Equal(t, []string{"main"}, sup.Running())

	assert.False(t, sup.Stop("other"))
	sup.Shutdown()
	assert.Equal(t, int32(0), live.Load())
}

func TestSupervisorGeneratorLifecycle(t *testing.T) {
	ticker, err := NewTicker(TickerOptions{Name: "generator", Interval: time.Hour}, zerolog.Nop())
	require.NoError(t, err)

	sup := NewSupervisor(context.Background(), func(ctx context.Context, _ Watch) error {
		<-ctx.Done()
		return ctx.Err()
	}, SupervisorOptions{Generator: ticker}, zerolog.Nop())

	tick := func(context.Context, time.Time) error { return nil }
	assert.True(t, sup.StartGenerator(tick))
	assert.False(t, sup.StartGenerator(tick), "generator must start only once")
	assert.True(t, sup.GeneratorRunning())

	assert.True(t, sup.StopGenerator())
	assert.False(t, sup.GeneratorRunning())
	assert.False(t, sup.StopGenerator())

	sup.Shutdown()
	assert.False(t, sup.StartGenerator(tick))
}
