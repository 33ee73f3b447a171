package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation              = errors.New("validation failed")
	ErrNotFound                = errors.New("not found")
	ErrForbidden               = errors.New("forbidden")
	ErrInsufficientInventory   = errors.New("not enough seats")
	ErrBookingClosed           = errors.New("booking is canceled")
	ErrAlreadyCanceled         = errors.New("booking already canceled")
	ErrCodeGenerationExhausted = errors.New("could not generate a unique booking code")
	ErrTransactionConflict     = errors.New("transaction conflict")
	ErrFlightHasBookings       = errors.New("flight has bookings")
)

// ValidationError describes a rejected input field. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InsufficientInventoryError carries the seat shortfall. It matches ErrInsufficientInventory.
type InsufficientInventoryError struct {
	FlightID  int64
	Requested int
	Available int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("not enough seats on flight %d: requested %d, available %d", e.FlightID, e.Requested, e.Available)
}

func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}

// IsRetryable reports whether the whole operation may be retried by the caller.
// Only infrastructure failures qualify; business rule violations are deterministic.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionConflict) || errors.Is(err, ErrCodeGenerationExhausted)
}
