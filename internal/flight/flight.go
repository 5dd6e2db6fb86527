// Package flight provides a single in-flight call whose result is shared by
// every waiter, the owner/waiter primitive behind the identity cache.
package flight

import "context"

// Call represents an active or completed refresh. The owner publishes one
// result via Finish; any number of waiters observe it through Wait.
type Call[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// New creates a pending call.
func New[T any]() *Call[T] {
	return &Call[T]{done: make(chan struct{})}
}

// Finish publishes the result and releases all waiters. It must be called
// exactly once, by the owner.
func (c *Call[T]) Finish(val T, err error) {
	c.val = val
	c.err = err
	close(c.done)
}

// Wait blocks until the owner finishes or the context is done. A canceled
// waiter does not affect the call or other waiters.
func (c *Call[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Completed reports whether the result has been published.
func (c *Call[T]) Completed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
