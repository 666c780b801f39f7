package domain

import "fmt"

// ValidationError rejects a job before it touches any ledger state.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// OutOfStockError is the terminal failure for a reservation attempt against
// an exhausted resource.
type OutOfStockError struct {
	Resource string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("%s: out of stock", e.Resource)
}

// StoreError wraps a failure talking to the durable counter store.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
