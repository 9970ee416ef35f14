/*
initializer.go - Idempotent yearly and pro-rated accrual bookkeeping

PURPOSE:
  Writes the ACCRUAL credits that open each year's paid-leave balance.
  Rerun-safe: an employee who already has an ACCRUAL credit for
  (paid type, year) is skipped, so running the yearly job twice credits
  nobody twice. The SQLite adapter additionally enforces this with a
  unique index, closing the check-then-insert race under concurrency.

PRO-RATION:
  Mid-year hires get round(((13 - month) / 12) x annualDays x 2) / 2 -
  the remaining months' share, rounded to the nearest half day.
*/
package leave

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE INITIALIZER
// =============================================================================

type BalanceInitializer struct {
	Store     LedgerStore
	Employees EmployeeStore
	Types     LeaveTypeProvider

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewBalanceInitializer(store LedgerStore, employees EmployeeStore, types LeaveTypeProvider) *BalanceInitializer {
	return &BalanceInitializer{Store: store, Employees: employees, Types: types, Now: time.Now}
}

func (b *BalanceInitializer) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// InitializeYearly credits annualDays of paid leave to every active
// employee lacking an ACCRUAL credit for the year. Safe to rerun.
func (b *BalanceInitializer) InitializeYearly(ctx context.Context, year int, annualDays decimal.Decimal) (InitResult, error) {
	if !IsHalfStep(annualDays) || annualDays.IsZero() {
		return InitResult{}, ErrInvalidAmount
	}

	paid, err := b.Types.GetByCode(ctx, CodePaid)
	if err != nil {
		return InitResult{}, err
	}

	employees, err := b.Employees.ListActiveEmployees(ctx)
	if err != nil {
		return InitResult{}, err
	}

	result := InitResult{Total: len(employees)}
	for _, emp := range employees {
		exists, err := b.Store.HasAccrual(ctx, emp.ID, paid.ID, year)
		if err != nil {
			return result, err
		}
		if exists {
			result.Skipped++
			continue
		}
		if err := b.credit(ctx, emp.ID, paid.ID, year, annualDays, "yearly accrual"); err != nil {
			return result, err
		}
		result.Credited++
	}
	return result, nil
}

// InitializeEmployee credits a single employee, pro-rated by the current
// month. Returns the credited amount, or skipped=true when an accrual
// already exists for the year.
func (b *BalanceInitializer) InitializeEmployee(ctx context.Context, employeeID EmployeeID, year int, annualDays decimal.Decimal) (credited decimal.Decimal, skipped bool, err error) {
	if !IsHalfStep(annualDays) || annualDays.IsZero() {
		return decimal.Zero, false, ErrInvalidAmount
	}

	paid, err := b.Types.GetByCode(ctx, CodePaid)
	if err != nil {
		return decimal.Zero, false, err
	}
	if _, err := b.Employees.GetEmployee(ctx, employeeID); err != nil {
		return decimal.Zero, false, err
	}

	exists, err := b.Store.HasAccrual(ctx, employeeID, paid.ID, year)
	if err != nil {
		return decimal.Zero, false, err
	}
	if exists {
		return decimal.Zero, true, nil
	}

	amount := ProrateAnnualDays(annualDays, int(b.now().Month()))
	if amount.IsZero() {
		return decimal.Zero, true, nil
	}
	if err := b.credit(ctx, employeeID, paid.ID, year, amount, "pro-rated accrual"); err != nil {
		return decimal.Zero, false, err
	}
	return amount, false, nil
}

// ProrateAnnualDays computes the remaining-months share of an annual
// entitlement, rounded to the nearest half day:
// round(((13 - month) / 12) x annualDays x 2) / 2.
func ProrateAnnualDays(annualDays decimal.Decimal, month int) decimal.Decimal {
	months := decimal.NewFromInt(int64(13 - month))
	share := annualDays.Mul(months).Div(decimal.NewFromInt(12))
	return share.Mul(two).Round(0).Div(two)
}

func (b *BalanceInitializer) credit(ctx context.Context, employeeID EmployeeID, leaveTypeID LeaveTypeID, year int, amount decimal.Decimal, note string) error {
	return b.Store.Append(ctx, []Transaction{{
		ID:          TransactionID(uuid.NewString()),
		EmployeeID:  employeeID,
		LeaveTypeID: leaveTypeID,
		PeriodYear:  year,
		Direction:   DirectionCredit,
		AmountDays:  amount,
		SourceType:  SourceAccrual,
		SourceID:    "accrual-" + string(employeeID),
		Note:        note,
		CreatedAt:   b.now(),
	}})
}
