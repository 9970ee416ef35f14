/*
errors.go - Centralized error types and warning values

PURPOSE:
  All engine error types in one place. The split matters:

  STRUCTURAL ERRORS (returned as error):
    Unknown or inactive leave type, malformed range, non-positive or
    sub-minimum duration, invalid amounts, illegal request transitions.
    These always fail the call and are never retried.

  POLICY WARNINGS (returned as values, never as error):
    Balance shortfalls, annual-limit exceedances, split allocations.
    They ride along with a successful ValidationResult; the caller
    decides whether to ask the user for confirmation.

  Store-level write failures propagate unmodified; the engine assumes
  store-level write atomicity and implements no internal retry.

USAGE:
  if errors.Is(err, leave.ErrUnknownLeaveType) { ... }

  var minErr *leave.BelowMinimumError
  if errors.As(err, &minErr) { ... minErr.Minimum ... }
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownLeaveType is returned when the requested leave type does not exist.
	ErrUnknownLeaveType = errors.New("unknown leave type")

	// ErrInactiveLeaveType is returned when the requested leave type is disabled.
	ErrInactiveLeaveType = errors.New("inactive leave type")

	// ErrInvalidRange is returned for a malformed date range (end before start,
	// or a range whose duration comes out non-positive).
	ErrInvalidRange = errors.New("invalid leave range")

	// ErrBelowMinimumDuration is returned when the duration is under the
	// policy's minimum.
	ErrBelowMinimumDuration = errors.New("duration below policy minimum")

	// ErrInvalidAmount is returned for a day amount that is not a positive
	// multiple of 0.5.
	ErrInvalidAmount = errors.New("amount must be a positive multiple of 0.5")

	// ErrMissingParentalOptions is returned when a parental-category request
	// arrives without gender/childbirth details.
	ErrMissingParentalOptions = errors.New("parental leave requires parental options")

	// ErrDuplicateAccrual is returned when an accrual row already exists for
	// (employee, leave type, year). Expected under reruns; callers skip.
	ErrDuplicateAccrual = errors.New("accrual already recorded")

	// ErrRequestNotFound is returned when a leave request id does not exist.
	ErrRequestNotFound = errors.New("leave request not found")

	// ErrEmployeeNotFound is returned when an employee id does not exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrInvalidTransition is returned for an illegal request status change.
	ErrInvalidTransition = errors.New("invalid request status transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// BelowMinimumError details a sub-minimum duration rejection.
type BelowMinimumError struct {
	Duration decimal.Decimal
	Minimum  decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("duration %s is below policy minimum %s", e.Duration, e.Minimum)
}

func (e *BelowMinimumError) Unwrap() error { return ErrBelowMinimumDuration }

// TransitionError details an illegal request lifecycle transition.
type TransitionError struct {
	RequestID RequestID
	From      RequestStatus
	To        RequestStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("request %s: cannot move from %s to %s", e.RequestID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// IsClientError reports whether the error is due to invalid caller input
// (as opposed to a store failure).
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownLeaveType) ||
		errors.Is(err, ErrInactiveLeaveType) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrBelowMinimumDuration) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrMissingParentalOptions) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownLeaveType) || errors.Is(err, ErrRequestNotFound)
}

// =============================================================================
// WARNINGS - Advisory, never block a validation
// =============================================================================

type WarningCode string

const (
	WarnSplitAllocation     WarningCode = "split_allocation"
	WarnBalanceShortfall    WarningCode = "balance_shortfall"
	WarnAnnualLimitExceeded WarningCode = "annual_limit_exceeded"
	WarnUnallocated         WarningCode = "unallocated_remainder"
)

// Warning is an advisory note attached to a successful validation.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

func warnf(code WarningCode, format string, args ...any) Warning {
	return Warning{Code: code, Message: fmt.Sprintf(format, args...)}
}
