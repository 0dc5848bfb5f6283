package udpsource

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSourceLoopbackRoundTrip(t *testing.T) {
	src, err := Open(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer src.Close()

	sender, err := net.Dial("udp", src.conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	want := []byte("hello spead")
	_, err = sender.Write(want)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, ts, err := src.Poll(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.False(t, ts.IsZero())
}

func TestSourceCloseUnblocksPoll(t *testing.T) {
	src, err := Open(Config{Addr: "127.0.0.1:0", ReadTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, _, err := src.Poll(context.Background())
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, src.Close())

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Poll did not unblock after Close")
	}
}

func TestSourceCtxCancelUnblocksPoll(t *testing.T) {
	src, err := Open(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := src.Poll(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Poll did not unblock after ctx cancel")
	}
}
