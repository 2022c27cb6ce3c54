package coalescing

import "fmt"

// ComputationError is delivered to every waiter when the handler for their
// key fails. All waiters of the same cycle receive the same value.
type ComputationError struct {
	Key   any
	Cause error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation for key %v failed: %v", e.Key, e.Cause)
}

func (e *ComputationError) Unwrap() error {
	return e.Cause
}

// PanicError is the cause recorded when a handler panics instead of
// returning an error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}
