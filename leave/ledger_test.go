package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) (*leave.BalanceLedger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.SaveLeaveType(ctx, leave.LeaveType{
		ID: "lt-paid", Code: leave.CodePaid, Name: "Paid Annual Leave",
		CategoryCode: leave.CategoryAnnual, IsActive: true,
	}))
	require.NoError(t, mem.SaveLeaveType(ctx, leave.LeaveType{
		ID: "lt-unpaid", Code: leave.CodeUnpaid, Name: "Unpaid Leave",
		CategoryCode: leave.CategoryAnnual, IsActive: true,
	}))

	ledger := leave.NewBalanceLedger(mem, mem, mem, mem)
	ledger.Now = func() time.Time { return time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC) }
	return ledger, mem
}

func creditPaid(t *testing.T, mem *store.Memory, emp string, days float64) {
	t.Helper()
	require.NoError(t, mem.Append(context.Background(), []leave.Transaction{{
		ID: leave.TransactionID("tx-credit-" + emp), EmployeeID: leave.EmployeeID(emp),
		LeaveTypeID: "lt-paid", PeriodYear: 2026, Direction: leave.DirectionCredit,
		AmountDays: leave.Days(days), SourceType: leave.SourceAccrual,
		CreatedAt: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}}))
}

func pendingRequest(t *testing.T, mem *store.Memory, id, emp string, days float64) {
	t.Helper()
	require.NoError(t, mem.CreateRequest(context.Background(), &leave.Request{
		ID: leave.RequestID(id), EmployeeID: leave.EmployeeID(emp),
		LeaveTypeID: "lt-paid", PeriodYear: 2026, Status: leave.StatusPending,
		DurationDays: leave.Days(days),
		Items:        []leave.RequestItem{{LeaveTypeID: "lt-paid", Days: leave.Days(days)}},
	}))
}

// =============================================================================
// BALANCE READS
// =============================================================================

func TestBalance_PendingReservationReducesBalance(t *testing.T) {
	// GIVEN: 10 credited days and a pending request reserving 2
	// WHEN: Reading the balance
	// THEN: 10 - 2 = 8, and reading again changes nothing

	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	creditPaid(t, mem, "emp-1", 10)
	pendingRequest(t, mem, "req-1", "emp-1", 2)

	for i := 0; i < 2; i++ {
		bal, err := ledger.Balance(ctx, "emp-1", "lt-paid", 2026, nil)
		require.NoError(t, err)
		assert.True(t, leave.Days(8).Equal(bal), "got %s", bal)
	}
}

func TestBalance_ExcludeRequestReleasesItsReservation(t *testing.T) {
	// GIVEN: A pending request reserving 2 days
	// WHEN: Reading the balance excluding that request (re-validation)
	// THEN: The reservation is not subtracted

	ledger, mem := newTestLedger(t)
	creditPaid(t, mem, "emp-1", 10)
	pendingRequest(t, mem, "req-1", "emp-1", 2)

	exclude := leave.RequestID("req-1")
	bal, err := ledger.Balance(context.Background(), "emp-1", "lt-paid", 2026, &exclude)
	require.NoError(t, err)
	assert.True(t, leave.Days(10).Equal(bal), "got %s", bal)
}

func TestUsedDays_DebitsPlusPending(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	creditPaid(t, mem, "emp-1", 10)
	pendingRequest(t, mem, "req-1", "emp-1", 2)

	require.NoError(t, ledger.DebitForApproval(ctx, "emp-1", "req-0",
		[]leave.RequestItem{{LeaveTypeID: "lt-paid", Days: leave.Days(3)}}, 2026))

	used, err := ledger.UsedDays(ctx, "emp-1", "lt-paid", 2026)
	require.NoError(t, err)
	assert.True(t, leave.Days(5).Equal(used), "got %s", used)
}

// =============================================================================
// MUTATIONS
// =============================================================================

func TestDebitThenRefund_RestoresBalance(t *testing.T) {
	// GIVEN: 10 credited days, a 3-day approval debit
	// WHEN: The approval is cancelled and refunded
	// THEN: Balance returns to 10 and every ledger row is kept

	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	creditPaid(t, mem, "emp-1", 10)

	items := []leave.RequestItem{
		{LeaveTypeID: "lt-paid", Days: leave.Days(2.5)},
		{LeaveTypeID: "lt-unpaid", Days: leave.Days(0.5)},
	}
	require.NoError(t, ledger.DebitForApproval(ctx, "emp-1", "req-1", items, 2026))

	bal, err := ledger.Balance(ctx, "emp-1", "lt-paid", 2026, nil)
	require.NoError(t, err)
	assert.True(t, leave.Days(7.5).Equal(bal), "got %s", bal)

	require.NoError(t, ledger.RefundForCancellation(ctx, "emp-1", "req-1", items, 2026))

	bal, err = ledger.Balance(ctx, "emp-1", "lt-paid", 2026, nil)
	require.NoError(t, err)
	assert.True(t, leave.Days(10).Equal(bal), "got %s", bal)

	txs, err := mem.Transactions(ctx, "emp-1", 2026)
	require.NoError(t, err)
	assert.Len(t, txs, 5) // accrual + 2 debits + 2 refunds
}

func TestDebit_RejectsNonHalfStepAmounts(t *testing.T) {
	ledger, _ := newTestLedger(t)

	err := ledger.DebitForApproval(context.Background(), "emp-1", "req-1",
		[]leave.RequestItem{{LeaveTypeID: "lt-paid", Days: leave.Days(1.3)}}, 2026)
	assert.ErrorIs(t, err, leave.ErrInvalidAmount)
}

// =============================================================================
// EMPLOYEE SUMMARY
// =============================================================================

func TestEmployeeSummary_MonthScoping(t *testing.T) {
	// GIVEN: An annual-scope credit and two month-scoped debits
	// WHEN: Summarizing for March
	// THEN: The annual credit counts; only the March debit does

	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	creditPaid(t, mem, "emp-1", 10)

	march, june := 3, 6
	require.NoError(t, mem.Append(ctx, []leave.Transaction{
		{ID: "tx-mar", EmployeeID: "emp-1", LeaveTypeID: "lt-paid", PeriodYear: 2026,
			PeriodMonth: &march, Direction: leave.DirectionDebit, AmountDays: leave.Days(1),
			SourceType: leave.SourceApproval},
		{ID: "tx-jun", EmployeeID: "emp-1", LeaveTypeID: "lt-paid", PeriodYear: 2026,
			PeriodMonth: &june, Direction: leave.DirectionDebit, AmountDays: leave.Days(2),
			SourceType: leave.SourceApproval},
	}))

	infos, err := ledger.EmployeeSummary(ctx, "emp-1", 3, 2026)
	require.NoError(t, err)

	var paid *leave.BalanceInfo
	for i := range infos {
		if infos[i].Code == leave.CodePaid {
			paid = &infos[i]
		}
	}
	require.NotNil(t, paid)
	assert.True(t, leave.Days(10).Equal(paid.TotalCredit), "credit %s", paid.TotalCredit)
	assert.True(t, leave.Days(1).Equal(paid.TotalDebit), "debit %s", paid.TotalDebit)
	assert.True(t, leave.Days(9).Equal(paid.Balance), "balance %s", paid.Balance)
}
