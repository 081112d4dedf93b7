package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransfer      = errors.New("source and target table must differ")
	ErrNothingToTransfer    = errors.New("no pending orders at source table")
	ErrOrderNotFound        = errors.New("order not found")
	ErrWaiterCallNotFound   = errors.New("waiter call not found")
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrMissingTable         = errors.New("table id is required")
	ErrUnknownTable         = errors.New("table is not on the roster")
	ErrCallCooldown         = errors.New("waiter was called recently")
)

// StoreError wraps a failure reported by the backing store. Such failures are
// scoped to the one operation and may be retried by the caller.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Retryable() bool { return true }

func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsRetryable reports whether err is a store failure the caller may retry.
func IsRetryable(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Retryable()
}
