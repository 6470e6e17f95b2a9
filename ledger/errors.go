/*
errors.go - Centralized error types for the record ledger and the program

PURPOSE:
  All error types in one place for consistency and discoverability.
  The charging package returns these (wrapped with context); the API maps
  them to HTTP status codes.

ERROR CATEGORIES:
  1. Authorization   - ErrUnauthorized
  2. Addressing      - ErrKeyAlreadyExists, ErrRecordNotFound, ErrWrongKind
  3. Funds           - ErrInsufficientFunds, ErrNotEnoughCredits
  4. State machine   - ErrAlreadyReleased
  5. Input           - ErrInvalidDiscount, ErrFieldTooLong, ErrMissingField,
                       ErrImmutableName
  6. Arithmetic      - ErrArithmeticOverflow, ErrArithmeticUnderflow

USAGE:
  if errors.Is(err, ledger.ErrKeyAlreadyExists) {
      // resubmission of an already-applied operation
  }

Nothing is retried internally. Every failure aborts the whole operation.
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnauthorized is returned when a signer fails an ownership or authority check.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrKeyAlreadyExists is returned when a record already occupies a derived address.
	// Resubmitting an applied operation with the same seeds yields this error.
	ErrKeyAlreadyExists = errors.New("key already exists")

	// ErrRecordNotFound is returned when no record lives at an address.
	ErrRecordNotFound = errors.New("record not found")

	// ErrWrongKind is returned when a record exists but holds a different kind.
	ErrWrongKind = errors.New("record has wrong kind")

	// ErrInsufficientFunds is returned when a balance is below amount + reserve.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAlreadyReleased is returned on a second release of the same escrow.
	ErrAlreadyReleased = errors.New("escrow already released")

	// ErrNotEnoughCredits is returned when the redeemable credit balance is too low.
	ErrNotEnoughCredits = errors.New("not enough credits")

	// ErrInvalidDiscount is returned when the credit discount exceeds the payment.
	ErrInvalidDiscount = errors.New("discount exceeds payment amount")

	// ErrArithmeticOverflow is returned instead of wrapping an integer.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrArithmeticUnderflow is returned instead of wrapping below zero.
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")

	// ErrFieldTooLong is returned when a string exceeds its allocated footprint.
	ErrFieldTooLong = errors.New("field exceeds allocated size")

	// ErrMissingField is returned when a required field is empty.
	ErrMissingField = errors.New("required field missing")

	// ErrImmutableName is returned when an update tries to rename a keyed record.
	ErrImmutableName = errors.New("name is part of the record key and cannot change")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError provides details about a balance shortage.
type InsufficientFundsError struct {
	Address   Address
	Available uint64
	Required  uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds at %s: available %d, required %d",
		e.Address, e.Available, e.Required)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// NotEnoughCreditsError provides details about a credit shortage.
type NotEnoughCreditsError struct {
	Owner     Identity
	Available uint64
	Requested uint64
}

func (e *NotEnoughCreditsError) Error() string {
	return fmt.Sprintf("not enough credits: available %d, requested %d", e.Available, e.Requested)
}

func (e *NotEnoughCreditsError) Unwrap() error { return ErrNotEnoughCredits }

// FieldTooLongError names the offending field.
type FieldTooLongError struct {
	Field string
	Max   int
	Got   int
}

func (e *FieldTooLongError) Error() string {
	return fmt.Sprintf("%s: %d bytes exceeds limit of %d", e.Field, e.Got, e.Max)
}

func (e *FieldTooLongError) Unwrap() error { return ErrFieldTooLong }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the caller's request
// rather than a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrKeyAlreadyExists) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrAlreadyReleased) ||
		errors.Is(err, ErrNotEnoughCredits) ||
		errors.Is(err, ErrInvalidDiscount) ||
		errors.Is(err, ErrArithmeticOverflow) ||
		errors.Is(err, ErrArithmeticUnderflow) ||
		errors.Is(err, ErrFieldTooLong) ||
		errors.Is(err, ErrImmutableName) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrWrongKind)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}
