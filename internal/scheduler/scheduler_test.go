package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// TestAddRejectsInvalidJobs checks job validation.
func TestAddRejectsInvalidJobs(t *testing.T) {
	t.Parallel()

	s := New(zerolog.Nop())
	noop := func(context.Context) error { return nil }

	require.Error(t, s.Add(Job{Interval: time.Second, Run: noop}))
	require.Error(t, s.Add(Job{Name: "a", Run: noop}))
	require.Error(t, s.Add(Job{Name: "a", Interval: time.Second}))

	require.NoError(t, s.Add(Job{Name: "a", Interval: time.Second, Run: noop}))
	require.Error(t, s.Add(Job{Name: "a", Interval: time.Second, Run: noop}))
}

// TestRunNowExecutesJob checks that a registered job can be run on demand
// and that failures and panics do not escape.
func TestRunNowExecutesJob(t *testing.T) {
	t.Parallel()

	s := New(zerolog.Nop())
	var calls atomic.Int32

	require.NoError(t, s.Add(Job{Name: "count", Interval: time.Hour, Run: func(context.Context) error {
		calls.Add(1)
		return nil
	}}))
	require.NoError(t, s.Add(Job{Name: "fail", Interval: time.Hour, Run: func(context.Context) error {
		return errors.New("boom")
	}}))
	require.NoError(t, s.Add(Job{Name: "panic", Interval: time.Hour, Run: func(context.Context) error {
		panic("boom")
	}}))

	require.NoError(t, s.RunNow("count"))
	require.NoError(t, s.RunNow("count"))
	require.NoError(t, s.RunNow("fail"))
	require.NoError(t, s.RunNow("panic"))
	require.Error(t, s.RunNow("missing"))

	require.Equal(t, int32(2), calls.Load())
}

// TestRunStopsOnCancel checks that Run returns once its context is cancelled
// and that the job context is cancelled with it.
func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := New(zerolog.Nop())
	started := make(chan struct{})
	var once atomic.Bool

	require.NoError(t, s.Add(Job{Name: "tick", Interval: 10 * time.Millisecond, Run: func(ctx context.Context) error {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		return nil
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	require.Error(t, s.ctx.Err())
}
