/*
Package leave provides the core leave-management engine.

PURPOSE:
  This package contains the domain types and algorithms for managing
  employee leave balances: half-day duration arithmetic over a working
  calendar, an append-only balance ledger per employee/leave-type/year,
  and a policy-driven waterfall that splits one leave request across
  multiple leave types when balances or per-request limits run out.

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveType: A kind of leave (paid annual, unpaid, parental, ...)
  - Category: Groups leave types by allocation behavior
  - Transaction: An immutable CREDIT/DEBIT ledger entry
  - Amounts: decimal day counts, always a multiple of 0.5

DESIGN PRINCIPLES:
  1. Immutability: Ledger transactions are never modified, only offset
  2. Precision: decimal.Decimal day amounts derived from integer
     half-day slot counts - no floating-point drift
  3. Advisory limits: balance and limit shortfalls produce warnings,
     never hard failures (see waterfall.go)

SEE ALSO:
  - calendar.go: Dates, AM/PM sessions, working-day rules
  - duration.go: Half-day duration calculation
  - ledger.go: Balance queries and mutations
  - waterfall.go: Request validation and conversion waterfall
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type LeaveTypeID string
type RequestID string
type TransactionID string

// =============================================================================
// DAY AMOUNTS - decimal, half-day granularity
// =============================================================================

var (
	two      = decimal.NewFromInt(2)
	HalfDay  = decimal.New(5, -1) // 0.5
	ZeroDays = decimal.Zero
)

// Days builds a day amount from a float. Test and seed convenience.
func Days(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// DaysFromSlots converts a half-day slot count to a day amount.
func DaysFromSlots(slots int) decimal.Decimal {
	return decimal.NewFromInt(int64(slots)).Mul(HalfDay)
}

// IsHalfStep reports whether the amount is a non-negative multiple of 0.5.
func IsHalfStep(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Mul(two).IsInteger()
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

// Category groups leave types by how requests against them are allocated.
type Category string

const (
	CategoryAnnual   Category = "ANNUAL"   // paid/unpaid annual entitlement
	CategoryParental Category = "PARENTAL" // maternity/paternity leave
	CategoryPolicy   Category = "POLICY"   // company-policy leave (per-request capped)
	CategorySocial   Category = "SOCIAL"   // social leave (marriage, bereavement, ...)
)

// Well-known leave type codes. The waterfall and the safety-net fallback
// resolve these by code, not by id.
const (
	CodePaid   = "PAID"
	CodeUnpaid = "UNPAID"
)

// LeaveType is a kind of leave. Immutable once referenced by transactions.
type LeaveType struct {
	ID           LeaveTypeID
	Code         string // unique
	Name         string
	CategoryCode Category
	IsSystem     bool
	IsActive     bool
}

// =============================================================================
// LEDGER TRANSACTIONS - Append-only. Never updated, never deleted.
// =============================================================================

type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

type SourceType string

const (
	SourceAccrual    SourceType = "ACCRUAL"    // yearly/pro-rated initialization
	SourceApproval   SourceType = "APPROVAL"   // request approved
	SourceRefund     SourceType = "REFUND"     // approved request cancelled
	SourceAdjustment SourceType = "ADJUSTMENT" // manual admin correction
)

// Transaction is one immutable ledger row. AmountDays is always positive
// and a multiple of 0.5; the sign lives in Direction. Corrections are new
// offsetting rows, preserving the full audit history.
type Transaction struct {
	ID          TransactionID
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	PeriodYear  int
	PeriodMonth *int // nil = annual scope
	Direction   Direction
	AmountDays  decimal.Decimal
	SourceType  SourceType
	SourceID    string
	Note        string
	CreatedAt   time.Time
}

// =============================================================================
// EMPLOYEES
// =============================================================================

type Employee struct {
	ID       EmployeeID
	Name     string
	Email    string
	HireDate Date
	IsActive bool
}

// =============================================================================
// BALANCE SUMMARY - per-type view returned to callers
// =============================================================================

// BalanceInfo is the per-leave-type balance view produced by
// BalanceLedger.EmployeeSummary.
type BalanceInfo struct {
	LeaveTypeID LeaveTypeID
	Code        string
	Name        string

	TotalCredit decimal.Decimal
	TotalDebit  decimal.Decimal // approved debits plus pending reservations
	PendingDays decimal.Decimal
	Balance     decimal.Decimal

	MonthlyLimit *decimal.Decimal // nil = unlimited
	AnnualLimit  *decimal.Decimal // nil = unlimited
}

// InitResult summarizes a yearly accrual run.
type InitResult struct {
	Credited int
	Skipped  int
	Total    int
}
