package service

import (
	"errors"
	"fmt"
)

// Errors returned by the order service.
var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidTableID   = errors.New("table_id must be > 0")
	ErrInvalidQuantity  = errors.New("quantity must be >= 1")
	ErrInvalidStatus    = errors.New("invalid order status")
	ErrOrderNotFound    = errors.New("order not found")
	ErrMenuItemNotFound = errors.New("menu item not found")
	ErrInvalidRating    = errors.New("ratings must be between 1 and 5")
	ErrCommentTooLong   = errors.New("comment exceeds 200 characters")
	ErrNotCompleted     = errors.New("feedback requires a completed order")
	ErrFeedbackExists   = errors.New("feedback already submitted for this order")
)

// InvalidTransitionError rejects a status change not present in the
// transition table, including re-completing an already-completed order.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// PersistenceError wraps a failed call to the data service. Callers decide
// whether to retry; the service never retries on its own.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// persist wraps a database error, keeping nil errors nil.
func persist(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
