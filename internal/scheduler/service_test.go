package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payline/internal/eventbus"
	logx "payline/pkg/logx"
)

func TestStartStopLifecycle(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	svc := New(Config{Enabled: true, Interval: 10 * time.Millisecond}, st, &fakeExecutor{}, eventbus.New(), logx.Nop())

	ctx := context.Background()
	svc.Start(ctx)
	// Second Start is a no-op while running.
	svc.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if svc.Snapshot().Cycles >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap := svc.Snapshot()
	assert.True(t, snap.Running)
	require.GreaterOrEqual(t, snap.Cycles, uint64(2))

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	svc.Stop(stopCtx)
	assert.False(t, svc.Snapshot().Running)

	// Restart after a clean stop works.
	svc.Start(ctx)
	svc.Stop(stopCtx)
}

func TestApplyTakesEffectWithoutRestart(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	svc := New(Config{Enabled: true, Interval: time.Minute}, st, &fakeExecutor{}, eventbus.New(), logx.Nop())

	svc.Apply(Config{Enabled: true, Interval: 5 * time.Second})
	assert.Equal(t, "5s", svc.Snapshot().Interval)

	svc.Apply(Config{Enabled: false, Interval: 5 * time.Second})
	assert.False(t, svc.Enabled())
}

func TestNextWaitPrefersCronSpec(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	svc := New(Config{Enabled: true, Interval: time.Minute, PollSpec: "*/5 * * * *"}, st, &fakeExecutor{}, eventbus.New(), logx.Nop())

	wait := svc.nextWait(time.Now())
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 5*time.Minute)
}

func TestNextWaitFallsBackOnBadSpec(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	svc := New(Config{Enabled: true, Interval: 42 * time.Second, PollSpec: "not a cron spec"}, st, &fakeExecutor{}, eventbus.New(), logx.Nop())

	assert.Equal(t, 42*time.Second, svc.nextWait(time.Now()))
}

func TestDefaultInterval(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	svc := New(Config{Enabled: true}, st, &fakeExecutor{}, eventbus.New(), logx.Nop())
	assert.Equal(t, "1m0s", svc.Snapshot().Interval)
}
