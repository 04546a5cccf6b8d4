package memo

import (
	"errors"
	"fmt"
)

// ErrNilComputation is returned on a miss when the Memo was built without a computation.
var ErrNilComputation = errors.New("memo: computation is nil")

// PanicError is returned to callers that were waiting on a computation that panicked.
// The goroutine that ran the computation re-panics with the original value.
type PanicError struct {
	Key   string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("memo: computation for key %s panicked: %v", e.Key, e.Value)
}
