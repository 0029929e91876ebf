package client

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Future is the handle to a result delivered by a deferred receive.
// It is resolved exactly once, either with a value or with an error.
type Future[T any] struct {
	done     chan struct{}
	resolved atomic.Bool

	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{
		done: make(chan struct{}),
	}
}

// Done returns a channel closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsResolved reports whether the result is available.
func (f *Future[T]) IsResolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future is resolved or ctx is done.
// Giving up on ctx leaves the future pending.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the resolved value; it blocks until the future is resolved.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}

// resolve completes the future; a second call is a programming error.
func (f *Future[T]) resolve(value T, err error) {
	if !f.resolved.CompareAndSwap(false, true) {
		panic(errors.AssertionFailedf("future resolved twice"))
	}

	f.value, f.err = value, err
	close(f.done)
}

func (f *Future[T]) reject(err error) {
	var zero T
	f.resolve(zero, err)
}
