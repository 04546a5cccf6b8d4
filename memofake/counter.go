// Package memofake provides an instrumented computation for testing code
// that memoizes through a memo.Memo.
package memofake

import (
	"context"
	"sync"
	"testing"
)

// Counter wraps a computation and records how often it runs per key.
// Hand Counter.Func to memo.NewCtx and assert on the counts afterwards.
type Counter[K comparable, V any] struct {
	fn func(context.Context, K) (V, error)

	mu       sync.Mutex
	calls    map[K]int
	failures map[K][]error
}

// New creates a Counter around fn.
func New[K comparable, V any](fn func(context.Context, K) (V, error)) *Counter[K, V] {
	return &Counter[K, V]{
		fn:       fn,
		calls:    make(map[K]int),
		failures: make(map[K][]error),
	}
}

// Pure creates a Counter around a computation that cannot fail.
func Pure[K comparable, V any](fn func(K) V) *Counter[K, V] {
	return New(func(_ context.Context, key K) (V, error) { return fn(key), nil })
}

// Func returns the instrumented computation.
func (c *Counter[K, V]) Func() func(context.Context, K) (V, error) {
	return c.call
}

// FailNext makes the next invocation for key return err instead of running
// the computation. Queued failures are consumed in order.
func (c *Counter[K, V]) FailNext(key K, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[key] = append(c.failures[key], err)
}

func (c *Counter[K, V]) call(ctx context.Context, key K) (V, error) {
	c.mu.Lock()
	c.calls[key]++
	var queued error
	if errs := c.failures[key]; len(errs) > 0 {
		queued, c.failures[key] = errs[0], errs[1:]
	}
	c.mu.Unlock()

	if queued != nil {
		var zero V
		return zero, queued
	}
	return c.fn(ctx, key)
}

// Calls returns how many times key was computed.
func (c *Counter[K, V]) Calls(key K) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[key]
}

// Total returns the number of invocations across keys.
func (c *Counter[K, V]) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum int
	for _, n := range c.calls {
		sum += n
	}
	return sum
}

// Reset clears recorded counts and queued failures.
func (c *Counter[K, V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = make(map[K]int)
	c.failures = make(map[K][]error)
}

// AssertCalled verifies key was computed the expected number of times.
func (c *Counter[K, V]) AssertCalled(t testing.TB, key K, times int) {
	t.Helper()
	if got := c.Calls(key); got != times {
		t.Fatalf("expected computation for %v called %d times, got %d", key, times, got)
	}
}

// AssertNotCalled ensures key was never computed.
func (c *Counter[K, V]) AssertNotCalled(t testing.TB, key K) {
	t.Helper()
	if got := c.Calls(key); got != 0 {
		t.Fatalf("expected computation for %v not called, got %d", key, got)
	}
}

// AssertTotal ensures the total invocation count matches times.
func (c *Counter[K, V]) AssertTotal(t testing.TB, times int) {
	t.Helper()
	if got := c.Total(); got != times {
		t.Fatalf("expected total computations=%d, got %d", times, got)
	}
}
