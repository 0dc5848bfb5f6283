// Package ringbuf implements the bounded, stoppable queues the chunk stream
// group uses to hand chunks to the consumer (data_ring) and get them back
// (free_ring): C7 of the receive engine.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package ringbuf

import (
	"context"
	"errors"

	"github.com/shaoguangleo/spead2/cmn/cos"
)

// ErrStopped is returned by Pop/Push once Stop has been called and, for Pop,
// no buffered item remains to drain.
var ErrStopped = errors.New("ringbuf: stopped")

// Ring is a bounded MPMC queue of capacity N with blocking and non-blocking
// push/pop and an idempotent, broadcast Stop. The original design calls for
// a readable/writable file descriptor pair so the queue composes with an
// external event loop (original_source/src/common_semaphore.cpp); in Go,
// select already composes with channels and sockets directly, so Readable
// and Writable return plain level-triggered channels instead of eventfds.
type Ring[T any] struct {
	items chan T
	// notifyData/notifySpace are semaphore-style tokens: a non-blocking
	// send/receive mirrors every successful Push/Pop so Readable/Writable
	// give a best-effort (level-triggered) hint. Callers must still retry
	// with TryPush/TryPop after waking -- the same contract as epoll.
	notifyData  chan struct{}
	notifySpace chan struct{}

	stopCh cos.StopCh
}

// NewRing returns a Ring with the given capacity, which must be >= 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	r := &Ring[T]{
		items:       make(chan T, capacity),
		notifyData:  make(chan struct{}, capacity),
		notifySpace: make(chan struct{}, capacity),
	}
	r.stopCh.Init()
	for i := 0; i < capacity; i++ {
		r.notifySpace <- struct{}{}
	}
	return r
}

// Push blocks until x is enqueued, the ring is stopped (returns ErrStopped),
// or ctx is done. This is the back-pressure path: a full data ring blocks
// the ingest goroutine until the consumer catches up.
func (r *Ring[T]) Push(ctx context.Context, x T) error {
	if r.stopCh.IsStopped() {
		return ErrStopped
	}
	select {
	case r.items <- x:
		r.signal(r.notifyData)
		r.drain(r.notifySpace)
		return nil
	case <-r.stopCh.Listen():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues x without blocking; ok is false if the ring is full or
// stopped.
func (r *Ring[T]) TryPush(x T) (ok bool) {
	if r.stopCh.IsStopped() {
		return false
	}
	select {
	case r.items <- x:
		r.signal(r.notifyData)
		r.drain(r.notifySpace)
		return true
	default:
		return false
	}
}

// Pop blocks until an item is available, the ring is stopped and drained
// (returns ErrStopped), or ctx is done.
func (r *Ring[T]) Pop(ctx context.Context) (x T, err error) {
	for {
		select {
		case x = <-r.items:
			r.signal(r.notifySpace)
			r.drain(r.notifyData)
			return x, nil
		default:
		}
		select {
		case x = <-r.items:
			r.signal(r.notifySpace)
			r.drain(r.notifyData)
			return x, nil
		case <-r.stopCh.Listen():
			// drain whatever remains before surfacing Stopped.
			select {
			case x = <-r.items:
				r.signal(r.notifySpace)
				r.drain(r.notifyData)
				return x, nil
			default:
				return x, ErrStopped
			}
		case <-ctx.Done():
			return x, ctx.Err()
		}
	}
}

// TryPop dequeues an item without blocking; ok is false if the ring is
// currently empty.
func (r *Ring[T]) TryPop() (x T, ok bool) {
	select {
	case x = <-r.items:
		r.signal(r.notifySpace)
		r.drain(r.notifyData)
		return x, true
	default:
		return x, false
	}
}

// Readable returns a channel that is receivable when the ring likely has at
// least one item; it is a hint, not a guarantee -- always follow up with
// TryPop.
func (r *Ring[T]) Readable() <-chan struct{} { return r.notifyData }

// Writable returns a channel that is receivable when the ring likely has at
// least one free slot; a hint, follow up with TryPush.
func (r *Ring[T]) Writable() <-chan struct{} { return r.notifySpace }

// Stop marks the ring closed: blocked and future Pop calls drain any
// buffered items then return ErrStopped; Push calls return ErrStopped
// immediately. Safe to call more than once, from any goroutine.
func (r *Ring[T]) Stop() { r.stopCh.Close() }

func (r *Ring[T]) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (r *Ring[T]) drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}
