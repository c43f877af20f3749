/*
errors.go - Centralized error types for the rental engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure surfaced by the engine belongs to exactly one category
  so callers can branch with errors.Is instead of parsing messages.

ERROR CATEGORIES:
  1. Invalid argument   - Missing fields, negative price, reversed dates,
                          unknown car/customer, entity in the wrong state
  2. Conflict           - Duplicate plate/license, overlapping rents
  3. Not found          - Update/delete/return of an absent record
  4. Transaction failed - Store error inside a unit of work (rolled back)

USAGE:
  rent, err := svc.RentOut(ctx, carID, customerID, from, to)
  switch {
  case fleet.IsConflict(err):
      // pick other dates
  case fleet.IsRetryable(err):
      // store hiccup, safe to retry
  }

SEE ALSO:
  - store.go: Stores return NotFoundError and DuplicateError
  - rental/service.go: Wraps store failures in TransactionError
  - api/handlers.go: Maps categories to HTTP status codes
*/
package fleet

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidArgument is returned for caller-input errors. The store is
	// never touched when this is returned.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict is returned for uniqueness violations and scheduling overlaps.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrTransactionFailed is returned when a unit of work could not be
	// committed. The whole unit has been rolled back.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrInvalidPeriod is returned when a period is malformed (start after end).
	ErrInvalidPeriod = errors.New("invalid period: rent date after due date")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError identifies the field that failed validation.
type ValidationError struct {
	Kind   Kind
	Field  string
	Reason string
	Err    error // optional finer-grained cause
}

func (e *ValidationError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("invalid argument: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s %s", e.Kind, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidArgument, e.Err}
	}
	return []error{ErrInvalidArgument}
}

// DuplicateError reports a value that must be unique and already exists.
type DuplicateError struct {
	Kind       Kind
	Field      string
	Value      string
	ExistingID string
}

func (e *DuplicateError) Error() string {
	if e.ExistingID == "" {
		return fmt.Sprintf("duplicate %s %s %q", e.Kind, e.Field, e.Value)
	}
	return fmt.Sprintf("duplicate %s %s %q (held by %s)", e.Kind, e.Field, e.Value, e.ExistingID)
}

func (e *DuplicateError) Unwrap() error {
	return ErrConflict
}

// OverlapError reports a requested period that intersects an existing rent
// of the same car.
type OverlapError struct {
	CarID        CarID
	Requested    Period
	ExistingRent RentID
	Existing     Period
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("car %s already rented for %s (rent %s), requested %s",
		e.CarID, e.Existing, e.ExistingRent, e.Requested)
}

func (e *OverlapError) Unwrap() error {
	return ErrConflict
}

// NotFoundError reports an absent record.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// TransactionError wraps a store failure raised inside a unit of work.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: transaction failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() []error {
	return []error{ErrTransactionFailed, e.Err}
}

// IntegrityError reports stored data that breaks an invariant, such as two
// rents for one car or a rent pointing at a deleted customer.
type IntegrityError struct {
	Kind   Kind
	ID     string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation on %s %s: %s", e.Kind, e.ID, e.Detail)
}

func (e *IntegrityError) Unwrap() error {
	return ErrTransactionFailed
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// ErrorCategory is the wire name of an error category.
type ErrorCategory string

const (
	CategoryInvalidArgument   ErrorCategory = "invalid_argument"
	CategoryConflict          ErrorCategory = "conflict"
	CategoryNotFound          ErrorCategory = "not_found"
	CategoryTransactionFailed ErrorCategory = "transaction_failed"
	CategoryInternal          ErrorCategory = "internal"
)

// Category classifies err. Unknown errors are CategoryInternal.
func Category(err error) ErrorCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return CategoryInvalidArgument
	case errors.Is(err, ErrConflict):
		return CategoryConflict
	case errors.Is(err, ErrNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrTransactionFailed):
		return CategoryTransactionFailed
	default:
		return CategoryInternal
	}
}

// CategoryError rebuilds a typed error from a category received over the
// wire, keeping the remote message.
func CategoryError(category ErrorCategory, message string) error {
	var sentinel error
	switch category {
	case CategoryInvalidArgument:
		sentinel = ErrInvalidArgument
	case CategoryConflict:
		sentinel = ErrConflict
	case CategoryNotFound:
		sentinel = ErrNotFound
	case CategoryTransactionFailed:
		sentinel = ErrTransactionFailed
	default:
		return errors.New(message)
	}
	return fmt.Errorf("%s: %w", message, sentinel)
}

// IsDomain reports whether err already carries one of the four categories.
func IsDomain(err error) bool {
	return Category(err) != CategoryInternal && err != nil
}

// IsRetryable returns true if the error might succeed on retry. Integrity
// violations stay until the data is repaired.
func IsRetryable(err error) bool {
	var integrity *IntegrityError
	return errors.Is(err, ErrTransactionFailed) && !errors.As(err, &integrity)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrConflict)
}

// IsConflict returns true for uniqueness and overlap violations.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
