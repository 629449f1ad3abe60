package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerLoopRunOnStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var ticks atomic.Int32

	done := make(chan error, 1)

	go func() {
		done <- TickerLoop(ctx, TickerConfig{
			Name:       "test",
			Interval:   time.Hour,
			RunOnStart: true,
			OnTick: func(context.Context) {
				ticks.Add(1)
			},
		})
	}()

	require.Eventually(t, func() bool {
		return ticks.Load() == 1
	}, time.Second, 10*time.Millisecond)

	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTickerLoopStopCallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stopped := false

	err := TickerLoop(ctx, TickerConfig{
		Name:     "test",
		Interval: time.Hour,
		OnStop:   func() { stopped = true },
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, stopped)
}

func TestRunWithTimeoutExpires(t *testing.T) {
	err := RunWithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()

		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunWithTimeoutPassesThrough(t *testing.T) {
	err := RunWithTimeout(context.Background(), time.Hour, func(context.Context) error {
		return nil
	})

	assert.NoError(t, err)
}
