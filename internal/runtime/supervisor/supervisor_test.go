package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopWaitsForGoroutines(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	stopped := make(chan struct{})
	s.Go0("worker", func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	})
	assert.EqualValues(t, 1, s.Active())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	<-stopped
	assert.Zero(t, s.Active())

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "worker", snap[0].Name)
	assert.False(t, snap[0].Running)
}

func TestPanicIsRecordedAndCancels(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))
	s.Go0("boom", func(context.Context) { panic("kaput") })
	s.Go("waiter", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in boom: kaput")

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.EqualValues(t, 1, snap[0].Panics)
	assert.Empty(t, snap[1].LastErr, "context.Canceled is a clean stop")
}

func TestFirstErrorWins(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	first := errors.New("first")
	s.Go("a", func(context.Context) error { return first })
	require.Eventually(t, func() bool { return s.Err() != nil }, time.Second, 5*time.Millisecond)
	s.Go("b", func(context.Context) error { return errors.New("second") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.Wait(ctx)
	assert.ErrorIs(t, err, first)
	assert.Equal(t, "a: first", err.Error())
}

func TestWaitBoundedByContext(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	release := make(chan struct{})
	defer close(release)
	s.Go0("stuck", func(context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}
