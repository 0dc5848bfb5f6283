package ringbuf_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaoguangleo/spead2/recv/ringbuf"
)

func TestPushPopOrder(t *testing.T) {
	r := ringbuf.NewRing[int](4)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, r.Push(ctx, i))
	}
	for i := 0; i < 4; i++ {
		v, err := r.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestTryPushFullTryPopEmpty(t *testing.T) {
	r := ringbuf.NewRing[int](1)
	assert.True(t, r.TryPush(1))
	assert.False(t, r.TryPush(2))

	v, ok := r.TryPop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = r.TryPop()
	assert.False(t, ok)
}

func TestStopWakesBlockedPop(t *testing.T) {
	r := ringbuf.NewRing[int](1)
	done := make(chan error, 1)
	go func() {
		_, err := r.Pop(context.Background())
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	r.Stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ringbuf.ErrStopped)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after Stop")
	}
}

func TestStopDrainsBeforeStopped(t *testing.T) {
	r := ringbuf.NewRing[int](2)
	require.NoError(t, r.Push(context.Background(), 7))
	r.Stop()

	v, err := r.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = r.Pop(context.Background())
	assert.ErrorIs(t, err, ringbuf.ErrStopped)
}

// Stop() called k times must have the same effect as calling it once.
func TestStopIdempotent(t *testing.T) {
	r := ringbuf.NewRing[int](1)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Stop()
		}()
	}
	wg.Wait()
	_, err := r.Push(context.Background(), 1)
	assert.ErrorIs(t, err, ringbuf.ErrStopped)
}

func TestPushBlocksWhenFull(t *testing.T) {
	r := ringbuf.NewRing[int](1)
	require.NoError(t, r.Push(context.Background(), 1))

	pushed := make(chan struct{})
	go func() {
		_ = r.Push(context.Background(), 2)
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("Push returned while ring was full")
	case <-time.After(50 * time.Millisecond):
	}

	_, _ = r.Pop(context.Background())
	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("Push did not unblock after Pop freed a slot")
	}
}
