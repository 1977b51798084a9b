package core

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the module. Handlers map them to HTTP
// statuses; everything else wraps them with context.
var (
	ErrInvalidAmount = errors.New("amount must be a positive decimal")
	ErrInvalidDate   = errors.New("date must be a valid YYYY-MM-DD day")
	ErrNotFound      = errors.New("not found")
	ErrBusy          = errors.New("entity busy, retry later")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// OverpaymentError rejects a payment exceeding the allocation's remaining
// balance. The payment is refused whole, never clamped.
type OverpaymentError struct {
	AllocationID int64
	Remaining    Money
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment exceeds remaining balance %s on allocation %d", e.Remaining, e.AllocationID)
}

// InsufficientBalanceError rejects a debit that would take an asset account
// below zero.
type InsufficientBalanceError struct {
	AccountID int64
	Balance   Money
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance %s on account %d", e.Balance, e.AccountID)
}

// IsValidation reports whether err is any kind of input rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDate)
}
