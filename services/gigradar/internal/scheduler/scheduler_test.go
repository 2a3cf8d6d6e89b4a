package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_RunOnStart(t *testing.T) {
	s := New(zap.NewNop())
	ran := make(chan struct{}, 1)

	require.NoError(t, s.Add(Job{
		Name:       "forum",
		Interval:   time.Hour,
		RunOnStart: true,
		Run: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}))
	require.NoError(t, s.Add(Job{Name: "monitor", Interval: 0, Run: func(context.Context) error { return nil }}))
	require.Len(t, s.entries, 1)
	require.Len(t, s.cron.Entries(), 1)

	s.Start(context.Background())
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := New(zap.NewNop())
	var runs int32
	release := make(chan struct{})

	require.NoError(t, s.Add(Job{
		Name:     "slow",
		Interval: time.Hour,
		Run: func(context.Context) error {
			atomic.AddInt32(&runs, 1)
			<-release
			return nil
		},
	}))
	s.Start(context.Background())

	wrapped := s.entries[0].wrapped
	go wrapped.Run()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, 2*time.Second, 10*time.Millisecond)

	// a second tick while the first is still running is skipped
	wrapped.Run()
	require.Equal(t, int32(1), atomic.LoadInt32(&runs))

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_JobSeesCancellation(t *testing.T) {
	s := New(zap.NewNop())
	done := make(chan error, 1)
	started := make(chan struct{})
	require.NoError(t, s.Add(Job{
		Name:       "wait",
		Interval:   time.Hour,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			done <- ctx.Err()
			return ctx.Err()
		},
	}))
	s.Start(context.Background())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not cancelled")
	}
}
