package markov

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput matches any *InvalidInputError via errors.Is.
	ErrInvalidInput = errors.New("markov: invalid input")
	// ErrInvalidOrder matches any *InvalidOrderError via errors.Is.
	ErrInvalidOrder = errors.New("markov: invalid order")
)

// InvalidInputError is returned when text handed to the model is not usable
// as text (invalid UTF-8, NUL bytes) or when a caller supplied argument is
// malformed, such as a start state shorter than the chain order.
type InvalidInputError struct {
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("markov: invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("markov: invalid input: %s: %v", e.Reason, e.Err)
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// InvalidOrderError is returned when a chain order below 1 is used, or when
// two models of different order are merged.
type InvalidOrderError struct {
	Order    int
	Expected int // non-zero only for order mismatches
}

func (e *InvalidOrderError) Error() string {
	if e.Expected > 0 {
		return fmt.Sprintf("markov: invalid order %d, model has order %d", e.Order, e.Expected)
	}
	return fmt.Sprintf("markov: invalid order %d, must be at least 1", e.Order)
}

// Is reports whether target is ErrInvalidOrder.
func (e *InvalidOrderError) Is(target error) bool {
	return target == ErrInvalidOrder
}

func invalidInput(reason string, err error) error {
	return &InvalidInputError{Reason: reason, Err: err}
}
