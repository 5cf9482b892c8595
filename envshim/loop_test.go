package envshim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunOnce_order(t *testing.T) {
	loop := NewLoop()

	var calls []string
	loop.RequestAnimationFrame(func(time.Time) { calls = append(calls, "frame") })
	loop.SetTimeout(func() { calls = append(calls, "timeout") }, 0)
	loop.SetImmediate(func() { calls = append(calls, "immediate") })
	loop.Post(func() { calls = append(calls, "posted") })

	count := loop.RunOnce()
	assert.Equal(t, 4, count)
	assert.Equal(t, []string{"posted", "immediate", "timeout", "frame"}, calls)
	assert.True(t, loop.Idle())
}

func TestLoop_ClearImmediateAndTimeout(t *testing.T) {
	loop := NewLoop()

	called := false
	immediate := loop.SetImmediate(func() { called = true })
	loop.ClearImmediate(immediate)

	id := loop.SetTimeout(func() { called = true }, 0)
	loop.ClearTimeout(id)

	frameID := loop.RequestAnimationFrame(func(time.Time) { called = true })
	loop.CancelAnimationFrame(frameID)
	assert.Equal(t, 0, loop.PendingAnimationFrames())

	loop.RunOnce()
	assert.False(t, called)
}

func TestLoop_RunUntil_backgroundWork(t *testing.T) {
	loop := NewLoop()

	release := loop.Track()
	assert.False(t, loop.Idle())

	done := false
	go func() {
		time.Sleep(time.Millisecond * 10)
		loop.Post(func() { done = true })
		release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := loop.RunUntilIdle(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestLoop_RunUntil_contextDone(t *testing.T) {
	loop := NewLoop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*20)
	defer cancel()

	err := loop.RunUntil(ctx, func() bool { return false })
	require.Error(t, err)
}

func TestLoop_unrefTimerDoesNotKeepLoopBusy(t *testing.T) {
	loop := NewLoop()
	g := NewGlobals(loop)
	ApplyFeature(g, FeatureTimerHandles)

	handle := g.SetTimeout(func() {}, time.Hour).(*TimerHandle)
	assert.False(t, loop.Idle())

	assert.Same(t, handle, handle.Unref())
	assert.False(t, handle.HasRef())
	assert.True(t, loop.Idle())

	assert.Same(t, handle, handle.Ref())
	assert.False(t, loop.Idle())

	g.ClearTimeout(handle)
	assert.True(t, loop.Idle())
}

func TestLoop_timerFires(t *testing.T) {
	loop := NewLoop()

	fired := false
	loop.SetTimeout(func() { fired = true }, time.Millisecond*5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := loop.RunUntil(ctx, func() bool { return fired })
	require.NoError(t, err)
}
