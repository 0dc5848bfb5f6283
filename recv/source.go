package recv

import (
	"context"
	"errors"
	"time"

	"github.com/shaoguangleo/spead2/cmn/nlog"
)

// ErrSourceClosed is returned by DatagramSource.Poll once the underlying
// transport has been closed; the stream treats it as SourceFatal.
var ErrSourceClosed = errors.New("recv: datagram source closed")

// DatagramSource is anything that can hand the stream one datagram at a
// time. Poll blocks until a datagram arrives, ctx is cancelled, or the
// source is closed.
type DatagramSource interface {
	Poll(ctx context.Context) (buf []byte, ts time.Time, err error)
	Close() error
}

// Executor runs the per-stream ingest loop. The default, goroutineExecutor,
// spawns one goroutine per stream that Group.Start dispatches; tests may supply a
// synchronous Executor to make ordering deterministic.
type Executor interface {
	Go(fn func())
}

type goroutineExecutor struct{}

func (goroutineExecutor) Go(fn func()) { go fn() }

// DefaultExecutor spawns fn on its own goroutine, one per stream.
func DefaultExecutor() Executor { return goroutineExecutor{} }

// Logger is the external logging collaborator a Stream/Group reports
// through. The default wraps this module's own cmn/nlog package.
type Logger interface {
	Infof(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nlogLogger struct{}

func (nlogLogger) Infof(format string, args ...any)    { nlog.Infof(format, args...) }
func (nlogLogger) Warningf(format string, args ...any) { nlog.Warningf(format, args...) }
func (nlogLogger) Errorf(format string, args ...any)   { nlog.Errorf(format, args...) }

// DefaultLogger returns the cmn/nlog-backed Logger.
func DefaultLogger() Logger { return nlogLogger{} }
