/*
ports.go - Store and provider interfaces

PURPOSE:
  Defines the seams between the engine and persistence. The engine only
  ever talks to these interfaces; store/sqlite provides the
  persistence-backed implementation and leave/store the in-memory one
  used by tests.

APPEND-ONLY CONTRACT:
  LedgerStore has Append and read methods, nothing else. No Update, no
  Delete - corrections are new offsetting transactions.

MONTH SCOPING:
  LedgerStore.Sum with a non-nil month must include rows whose
  PeriodMonth is NULL (annual scope) as well as rows matching the month.
  Annual-scope credits are always visible no matter which month is
  queried.
*/
package leave

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LOOKUP PROVIDERS
// =============================================================================

// LeaveTypeProvider resolves leave types by id and by code.
type LeaveTypeProvider interface {
	GetByID(ctx context.Context, id LeaveTypeID) (LeaveType, error)

	// GetByCode resolves a well-known code such as "PAID" or "UNPAID".
	// Returns ErrUnknownLeaveType when absent.
	GetByCode(ctx context.Context, code string) (LeaveType, error)

	// ListActive returns active, non-system leave types for balance summaries.
	ListActive(ctx context.Context) ([]LeaveType, error)
}

// PolicyProvider resolves the policy active for a leave type at a date.
// A nil policy with nil error means "no limits configured".
type PolicyProvider interface {
	ActivePolicy(ctx context.Context, leaveTypeID LeaveTypeID, at Date) (*LeaveTypePolicy, error)
}

// ConversionProvider returns active conversion rules for a source type,
// ordered by ascending priority (see OrderConversions).
type ConversionProvider interface {
	Conversions(ctx context.Context, from LeaveTypeID) ([]Conversion, error)
}

// CalendarProvider returns holiday/working overrides in [from, to].
type CalendarProvider interface {
	Overrides(ctx context.Context, from, to Date) ([]CalendarOverride, error)
}

// =============================================================================
// LEDGER PERSISTENCE
// =============================================================================

// LedgerStore persists balance transactions. Append-only.
type LedgerStore interface {
	// Sum totals AmountDays for one direction. month scoping: nil month
	// sums the whole year; a set month sums rows with a NULL PeriodMonth
	// (annual scope) plus rows matching the month.
	Sum(ctx context.Context, employeeID EmployeeID, leaveTypeID LeaveTypeID, year int, month *int, direction Direction) (decimal.Decimal, error)

	// Append persists transactions atomically. The ONLY write operation.
	Append(ctx context.Context, txs []Transaction) error

	// HasAccrual reports whether an ACCRUAL credit already exists for
	// (employee, leave type, year). Backs idempotent initialization.
	HasAccrual(ctx context.Context, employeeID EmployeeID, leaveTypeID LeaveTypeID, year int) (bool, error)

	// Transactions lists ledger rows for an employee/year, oldest first.
	Transactions(ctx context.Context, employeeID EmployeeID, year int) ([]Transaction, error)
}

// PendingStore sums the soft reservation: day amounts of items attached
// to still-pending requests. No lock is taken; concurrent submissions
// validating at the same instant may both observe the unreserved balance
// (documented, accepted - limits here are advisory).
type PendingStore interface {
	SumPendingDays(ctx context.Context, employeeID EmployeeID, leaveTypeID LeaveTypeID, year int, excludeRequestID *RequestID) (decimal.Decimal, error)
}

// =============================================================================
// SUPPORTING STORES
// =============================================================================

// EmployeeStore lists employees for accrual runs.
type EmployeeStore interface {
	ListActiveEmployees(ctx context.Context) ([]Employee, error)
	GetEmployee(ctx context.Context, id EmployeeID) (Employee, error)
}

// RequestStore persists leave requests and their item breakdowns.
type RequestStore interface {
	CreateRequest(ctx context.Context, req *Request) error
	GetRequest(ctx context.Context, id RequestID) (*Request, error)
	ListPendingRequests(ctx context.Context) ([]Request, error)

	// SetRequestStatus updates status and decision metadata only; the
	// request body and items are immutable after creation.
	SetRequestStatus(ctx context.Context, id RequestID, status RequestStatus, decidedBy, note string) error
}
