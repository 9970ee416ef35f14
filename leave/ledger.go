/*
ledger.go - Balance queries and mutations over the append-only ledger

PURPOSE:
  BalanceLedger is the one component that reads and writes balance
  state. Balance is always derived:

    balance = sum(CREDIT) - sum(DEBIT) - sum(pending item days)

  There is no stored "balance" column that can drift out of sync.

SOFT RESERVATION:
  Items attached to a still-pending request reduce the apparent balance
  without a ledger write. Two concurrent submissions can both observe
  the same unreserved balance and both pass validation - the system's
  limits are advisory (warnings), not enforcing, so this race is
  accepted rather than locked away.

MUTATIONS:
  Exactly two, both invoked by the approval workflow:
    DebitForApproval       one DEBIT per item, sourceType=APPROVAL
    RefundForCancellation  matching CREDIT rows, sourceType=REFUND
  Validation never writes.

SEE ALSO:
  - ports.go: LedgerStore / PendingStore contracts
  - initializer.go: the ACCRUAL writes
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE LEDGER
// =============================================================================

type BalanceLedger struct {
	Store    LedgerStore
	Pending  PendingStore
	Types    LeaveTypeProvider
	Policies PolicyProvider

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewBalanceLedger(store LedgerStore, pending PendingStore, types LeaveTypeProvider, policies PolicyProvider) *BalanceLedger {
	return &BalanceLedger{Store: store, Pending: pending, Types: types, Policies: policies, Now: time.Now}
}

func (l *BalanceLedger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// =============================================================================
// READS
// =============================================================================

// Balance returns the available balance for one employee/leave-type/year:
// ledger credits minus ledger debits minus pending reservations.
// excludeRequestID removes one pending request from the reservation sum,
// used when re-validating an existing request.
func (l *BalanceLedger) Balance(ctx context.Context, employeeID EmployeeID, leaveTypeID LeaveTypeID, year int, excludeRequestID *RequestID) (decimal.Decimal, error) {
	credit, err := l.Store.Sum(ctx, employeeID, leaveTypeID, year, nil, DirectionCredit)
	if err != nil {
		return decimal.Zero, err
	}
	debit, err := l.Store.Sum(ctx, employeeID, leaveTypeID, year, nil, DirectionDebit)
	if err != nil {
		return decimal.Zero, err
	}
	pending, err := l.Pending.SumPendingDays(ctx, employeeID, leaveTypeID, year, excludeRequestID)
	if err != nil {
		return decimal.Zero, err
	}
	return credit.Sub(debit).Sub(pending), nil
}

// UsedDays mirrors Balance from the consumption side: ledger debits plus
// pending reservations.
func (l *BalanceLedger) UsedDays(ctx context.Context, employeeID EmployeeID, leaveTypeID LeaveTypeID, year int) (decimal.Decimal, error) {
	debit, err := l.Store.Sum(ctx, employeeID, leaveTypeID, year, nil, DirectionDebit)
	if err != nil {
		return decimal.Zero, err
	}
	pending, err := l.Pending.SumPendingDays(ctx, employeeID, leaveTypeID, year, nil)
	if err != nil {
		return decimal.Zero, err
	}
	return debit.Add(pending), nil
}

// EmployeeSummary returns one BalanceInfo per active non-system leave
// type. Transactions with a NULL PeriodMonth are annual-scope and are
// included no matter which month is queried.
func (l *BalanceLedger) EmployeeSummary(ctx context.Context, employeeID EmployeeID, month, year int) ([]BalanceInfo, error) {
	types, err := l.Types.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	at := NewDate(year, time.Month(month), 1)
	infos := make([]BalanceInfo, 0, len(types))
	for _, lt := range types {
		credit, err := l.Store.Sum(ctx, employeeID, lt.ID, year, &month, DirectionCredit)
		if err != nil {
			return nil, err
		}
		debit, err := l.Store.Sum(ctx, employeeID, lt.ID, year, &month, DirectionDebit)
		if err != nil {
			return nil, err
		}
		pending, err := l.Pending.SumPendingDays(ctx, employeeID, lt.ID, year, nil)
		if err != nil {
			return nil, err
		}

		info := BalanceInfo{
			LeaveTypeID: lt.ID,
			Code:        lt.Code,
			Name:        lt.Name,
			TotalCredit: credit,
			TotalDebit:  debit.Add(pending),
			PendingDays: pending,
			Balance:     credit.Sub(debit).Sub(pending),
		}
		if policy, err := l.Policies.ActivePolicy(ctx, lt.ID, at); err != nil {
			return nil, err
		} else if policy != nil {
			info.MonthlyLimit = policy.MonthlyLimitDays
			info.AnnualLimit = policy.AnnualLimitDays
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// =============================================================================
// MUTATIONS - Append-only, invoked by the approval workflow
// =============================================================================

// DebitForApproval appends one DEBIT per allocation item when a request
// is approved.
func (l *BalanceLedger) DebitForApproval(ctx context.Context, employeeID EmployeeID, requestID RequestID, items []RequestItem, year int) error {
	txs, err := l.buildTransactions(employeeID, requestID, items, year, DirectionDebit, SourceApproval)
	if err != nil {
		return err
	}
	return l.Store.Append(ctx, txs)
}

// RefundForCancellation appends CREDIT rows matching the original debits
// when an approved request is cancelled. The original rows stay put.
func (l *BalanceLedger) RefundForCancellation(ctx context.Context, employeeID EmployeeID, requestID RequestID, items []RequestItem, year int) error {
	txs, err := l.buildTransactions(employeeID, requestID, items, year, DirectionCredit, SourceRefund)
	if err != nil {
		return err
	}
	return l.Store.Append(ctx, txs)
}

func (l *BalanceLedger) buildTransactions(employeeID EmployeeID, requestID RequestID, items []RequestItem, year int, dir Direction, source SourceType) ([]Transaction, error) {
	now := l.now()
	txs := make([]Transaction, 0, len(items))
	for _, item := range items {
		if item.Days.IsZero() || !IsHalfStep(item.Days) {
			return nil, fmt.Errorf("item for leave type %s: %w", item.LeaveTypeID, ErrInvalidAmount)
		}
		txs = append(txs, Transaction{
			ID:          TransactionID(uuid.NewString()),
			EmployeeID:  employeeID,
			LeaveTypeID: item.LeaveTypeID,
			PeriodYear:  year,
			Direction:   dir,
			AmountDays:  item.Days,
			SourceType:  source,
			SourceID:    string(requestID),
			Note:        item.Note,
			CreatedAt:   now,
		})
	}
	return txs, nil
}
