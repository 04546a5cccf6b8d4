package memo

import (
	"context"
	"time"
)

// Op names a memo operation reported to an Observer.
type Op string

const (
	// OpGet is reported once per lookup; hit is true when the in-process map answered it.
	OpGet Op = "get"
	// OpCompute is reported after each invocation of the wrapped computation.
	OpCompute Op = "compute"
	// OpStoreGet is reported after each backing store read.
	OpStoreGet Op = "store_get"
	// OpStoreSet is reported after each backing store write.
	OpStoreSet Op = "store_set"
)

// Observer receives events for memo operations.
// It is called synchronously after each operation completes.
type Observer interface {
	OnMemoOp(ctx context.Context, op Op, key string, hit bool, err error, dur time.Duration, driver Driver)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op Op, key string, hit bool, err error, dur time.Duration, driver Driver)

// OnMemoOp implements Observer.
func (f ObserverFunc) OnMemoOp(ctx context.Context, op Op, key string, hit bool, err error, dur time.Duration, driver Driver) {
	if f == nil {
		return
	}
	f(ctx, op, key, hit, err, dur, driver)
}
