package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
//
// Catalog under test:
//   PAID      (ANNUAL)            overflows exhausted balance to UNPAID
//   UNPAID    (ANNUAL, limit 30)  absorbs everything, limit advisory
//   SICK      (SOCIAL, cap 3)     overflows its cap to PAID
//   MATERNITY (PARENTAL)          overflows its entitlement to PAID
//   SPECIAL   (POLICY, cap 2)     no conversion rules - safety-net cases
//
// February 2026: the 9th is a Monday.
// =============================================================================

func daysPtr(v float64) *decimal.Decimal {
	d := leave.Days(v)
	return &d
}

func newTestEngine(t *testing.T) (*leave.ValidationEngine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	types := []leave.LeaveType{
		{ID: "lt-paid", Code: leave.CodePaid, Name: "Paid Annual Leave", CategoryCode: leave.CategoryAnnual, IsActive: true},
		{ID: "lt-unpaid", Code: leave.CodeUnpaid, Name: "Unpaid Leave", CategoryCode: leave.CategoryAnnual, IsActive: true},
		{ID: "lt-sick", Code: "SICK", Name: "Sick Leave", CategoryCode: leave.CategorySocial, IsActive: true},
		{ID: "lt-maternity", Code: "MATERNITY", Name: "Parental Leave", CategoryCode: leave.CategoryParental, IsActive: true},
		{ID: "lt-special", Code: "SPECIAL", Name: "Special Leave", CategoryCode: leave.CategoryPolicy, IsActive: true},
	}
	for _, lt := range types {
		require.NoError(t, mem.SaveLeaveType(ctx, lt))
	}

	from := leave.NewDate(2020, time.January, 1)
	policies := []leave.LeaveTypePolicy{
		{ID: "pol-paid", LeaveTypeID: "lt-paid", EffectiveFrom: from, MinDurationDays: daysPtr(0.5)},
		{ID: "pol-unpaid", LeaveTypeID: "lt-unpaid", EffectiveFrom: from, AnnualLimitDays: daysPtr(30)},
		{ID: "pol-sick", LeaveTypeID: "lt-sick", EffectiveFrom: from, MaxPerRequestDays: daysPtr(3), MinDurationDays: daysPtr(1)},
		{ID: "pol-special", LeaveTypeID: "lt-special", EffectiveFrom: from, MaxPerRequestDays: daysPtr(2)},
	}
	for _, p := range policies {
		require.NoError(t, mem.SavePolicy(ctx, p))
	}

	conversions := []leave.Conversion{
		{FromLeaveTypeID: "lt-sick", ToLeaveTypeID: "lt-paid", Priority: 1, Reason: leave.ReasonExceedMaxPerRequest, IsActive: true},
		{FromLeaveTypeID: "lt-maternity", ToLeaveTypeID: "lt-paid", Priority: 1, Reason: leave.ReasonExceedMaxPerRequest, IsActive: true},
		{FromLeaveTypeID: "lt-paid", ToLeaveTypeID: "lt-unpaid", Priority: 1, Reason: leave.ReasonExceedBalance, IsActive: true},
	}
	for _, c := range conversions {
		require.NoError(t, mem.SaveConversion(ctx, c))
	}

	ledger := leave.NewBalanceLedger(mem, mem, mem, mem)
	return leave.NewValidationEngine(mem, mem, mem, mem, ledger), mem
}

func creditDays(t *testing.T, mem *store.Memory, emp, leaveType string, days float64) {
	t.Helper()
	require.NoError(t, mem.Append(context.Background(), []leave.Transaction{{
		ID:          leave.TransactionID("tx-" + emp + "-" + leaveType),
		EmployeeID:  leave.EmployeeID(emp),
		LeaveTypeID: leave.LeaveTypeID(leaveType),
		PeriodYear:  2026,
		Direction:   leave.DirectionCredit,
		AmountDays:  leave.Days(days),
		SourceType:  leave.SourceAccrual,
	}}))
}

func debitDays(t *testing.T, mem *store.Memory, emp, leaveType string, days float64) {
	t.Helper()
	require.NoError(t, mem.Append(context.Background(), []leave.Transaction{{
		ID:          leave.TransactionID("tx-debit-" + emp + "-" + leaveType),
		EmployeeID:  leave.EmployeeID(emp),
		LeaveTypeID: leave.LeaveTypeID(leaveType),
		PeriodYear:  2026,
		Direction:   leave.DirectionDebit,
		AmountDays:  leave.Days(days),
		SourceType:  leave.SourceApproval,
	}}))
}

func input(leaveType string, start, end leave.Date) leave.ValidationInput {
	return leave.ValidationInput{
		EmployeeID:  "emp-1",
		LeaveTypeID: leave.LeaveTypeID(leaveType),
		Span:        span(start, end, leave.SessionAM, leave.SessionPM),
	}
}

// itemsSumToDuration asserts the invariant that no day is dropped.
func itemsSumToDuration(t *testing.T, result *leave.ValidationResult) {
	t.Helper()
	sum := decimal.Zero
	for _, item := range result.Items {
		sum = sum.Add(item.Days)
	}
	assert.True(t, result.DurationDays.Equal(sum),
		"items sum %s != duration %s", sum, result.DurationDays)
}

func hasWarning(result *leave.ValidationResult, code leave.WarningCode) bool {
	for _, w := range result.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// =============================================================================
// ANNUAL LEAVE
// =============================================================================

func TestValidate_PaidWithSufficientBalance(t *testing.T) {
	// GIVEN: 10 paid days, a 3-working-day request
	// THEN: One item, no warnings

	engine, mem := newTestEngine(t)
	creditDays(t, mem, "emp-1", "lt-paid", 10)

	result, err := engine.ValidateAndPrepare(context.Background(), input("lt-paid", feb(10), feb(12)))
	require.NoError(t, err)

	assert.True(t, leave.Days(3).Equal(result.DurationDays))
	require.Len(t, result.Items, 1)
	assert.Equal(t, leave.LeaveTypeID("lt-paid"), result.Items[0].LeaveTypeID)
	assert.Empty(t, result.Warnings)
	assert.True(t, result.CanProceed)
	itemsSumToDuration(t, result)
}

func TestValidate_PaidShortfallSplitsToUnpaid(t *testing.T) {
	// GIVEN: 3 paid days, a 5-working-day request (Mon-Fri)
	// THEN: [PAID 3, UNPAID 2] plus shortfall and split warnings

	engine, mem := newTestEngine(t)
	creditDays(t, mem, "emp-1", "lt-paid", 3)

	result, err := engine.ValidateAndPrepare(context.Background(), input("lt-paid", feb(9), feb(13)))
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, leave.LeaveTypeID("lt-paid"), result.Items[0].LeaveTypeID)
	assert.True(t, leave.Days(3).Equal(result.Items[0].Days))
	assert.Equal(t, leave.LeaveTypeID("lt-unpaid"), result.Items[1].LeaveTypeID)
	assert.True(t, leave.Days(2).Equal(result.Items[1].Days))

	assert.True(t, hasWarning(result, leave.WarnBalanceShortfall))
	assert.True(t, hasWarning(result, leave.WarnSplitAllocation))
	assert.True(t, result.CanProceed)
	itemsSumToDuration(t, result)
}

func TestValidate_PendingReservationReducesAvailable(t *testing.T) {
	// GIVEN: 10 paid days with 8 reserved by a pending request
	// WHEN: Validating a 3-day request
	// THEN: Only 2 fit on PAID

	engine, mem := newTestEngine(t)
	creditDays(t, mem, "emp-1", "lt-paid", 10)
	require.NoError(t, mem.CreateRequest(context.Background(), &leave.Request{
		ID: "req-open", EmployeeID: "emp-1", LeaveTypeID: "lt-paid",
		PeriodYear: 2026, Status: leave.StatusPending,
		Items: []leave.RequestItem{{LeaveTypeID: "lt-paid", Days: leave.Days(8)}},
	}))

	result, err := engine.ValidateAndPrepare(context.Background(), input("lt-paid", feb(10), feb(12)))
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.True(t, leave.Days(2).Equal(result.Items[0].Days))
	assert.True(t, leave.Days(1).Equal(result.Items[1].Days))
	itemsSumToDuration(t, result)
}

func TestValidate_NegativeBalanceWithinLimit(t *testing.T) {
	// GIVEN: PAID allows going 5 days negative, balance is 3
	// WHEN: Requesting 5 days
	// THEN: All 5 stay on PAID, no overflow

	engine, mem := newTestEngine(t)
	require.NoError(t, mem.SavePolicy(context.Background(), leave.LeaveTypePolicy{
		ID: "pol-paid", LeaveTypeID: "lt-paid",
		EffectiveFrom:        leave.NewDate(2020, time.January, 1),
		AllowNegative:        true,
		MaxNegativeLimitDays: daysPtr(5),
	}))
	creditDays(t, mem, "emp-1", "lt-paid", 3)

	result, err := engine.ValidateAndPrepare(context.Background(), input("lt-paid", feb(9), feb(13)))
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.True(t, leave.Days(5).Equal(result.Items[0].Days))
	assert.Empty(t, result.Warnings)
}

func TestValidate_UnpaidDirectExceedsLimitOnlyWarns(t *testing.T) {
	// GIVEN: 28 unpaid days already used against a 30-day annual limit
	// WHEN: Requesting 5 more unpaid days
	// THEN: All 5 allocate; the limit produces a warning, never a block

	engine, mem := newTestEngine(t)
	debitDays(t, mem, "emp-1", "lt-unpaid", 28)

	result, err := engine.ValidateAndPrepare(context.Background(), input("lt-unpaid", feb(9), feb(13)))
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.True(t, leave.Days(5).Equal(result.Items[0].Days))
	assert.True(t, hasWarning(result, leave.WarnAnnualLimitExceeded))
	assert.True(t, result.CanProceed)
}

// =============================================================================
// PER-REQUEST CAPPED LEAVE (SOCIAL / POLICY)
// =============================================================================

func TestValidate_SickCapOverflowsToPaid(t *testing.T) {
	// GIVEN: Sick leave capped at 3 per request, 10 paid days banked
	// WHEN: Requesting 5 sick days
	// THEN: [SICK 3, PAID 2]

	engine, mem := newTestEngine(t)
	creditDays(t, mem, "emp-1", "lt-paid", 10)

	result, err := engine.ValidateAndPrepare(context.Background(), input("lt-sick", feb(9), feb(13)))
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, "SICK", result.Items[0].Code)
	assert.True(t, leave.Days(3).Equal(result.Items[0].Days))
	assert.Equal(t, leave.CodePaid, result.Items[1].Code)
	assert.True(t, leave.Days(2).Equal(result.Items[1].Days))
	assert.True(t, hasWarning(result, leave.WarnSplitAllocation))
	itemsSumToDuration(t, result)
}

func TestValidate_SickCapCascadesThroughPaidToUnpaid(t *testing.T) {
	// GIVEN: Sick cap 3, only 1 paid day banked
	// WHEN: Requesting 5 sick days
	// THEN: [SICK 3, PAID 1, UNPAID 1] with a shortfall warning

	engine, mem := newTestEngine(t)
	creditDays(t, mem, "emp-1", "lt-paid", 1)

	result, err := engine.ValidateAndPrepare(context.Background(), input("lt-sick", feb(9), feb(13)))
	require.NoError(t, err)

	require.Len(t, result.Items, 3)
	assert.True(t, leave.Days(3).Equal(result.Items[0].Days))
	assert.True(t, leave.Days(1).Equal(result.Items[1].Days))
	assert.Equal(t, leave.CodeUnpaid, result.Items[2].Code)
	assert.True(t, leave.Days(1).Equal(result.Items[2].Days))
	assert.True(t, hasWarning(result, leave.WarnBalanceShortfall))
	itemsSumToDuration(t, result)
}

// =============================================================================
// PARENTAL LEAVE
// =============================================================================

func parentalInput(start, end leave.Date, opts leave.ParentalOptions) leave.ValidationInput {
	in := input("lt-maternity", start, end)
	in.Parental = &opts
	return in
}

func TestValidate_FemaleParentalWithinEntitlement(t *testing.T) {
	// GIVEN: 180 calendar days of entitlement (one child)
	// WHEN: Requesting 20 calendar days
	// THEN: Wholly covered, one item, weekends included in the count

	engine, _ := newTestEngine(t)
	start := leave.NewDate(2026, time.January, 5)

	result, err := engine.ValidateAndPrepare(context.Background(),
		parentalInput(start, start.AddDays(19), leave.ParentalOptions{
			Gender: leave.GenderFemale, NumberOfChildren: 1, Delivery: leave.DeliveryNatural,
		}))
	require.NoError(t, err)

	assert.True(t, leave.Days(20).Equal(result.DurationDays))
	require.Len(t, result.Items, 1)
	assert.Equal(t, "MATERNITY", result.Items[0].Code)
	assert.Empty(t, result.Warnings)
}

func TestValidate_FemaleParentalExcessCountedInWorkingDays(t *testing.T) {
	// GIVEN: A 200-calendar-day request against a 180-day entitlement,
	//        10 paid days banked
	// WHEN: Validating
	// THEN: 180 covered; the excess period (Jul 4 - Jul 23, 14 working
	//       days) waterfalls into PAID then UNPAID

	engine, mem := newTestEngine(t)
	creditDays(t, mem, "emp-1", "lt-paid", 10)
	start := leave.NewDate(2026, time.January, 5)

	result, err := engine.ValidateAndPrepare(context.Background(),
		parentalInput(start, start.AddDays(199), leave.ParentalOptions{
			Gender: leave.GenderFemale, NumberOfChildren: 1, Delivery: leave.DeliveryNatural,
		}))
	require.NoError(t, err)

	assert.True(t, leave.Days(194).Equal(result.DurationDays), "got %s", result.DurationDays)
	require.Len(t, result.Items, 3)
	assert.Equal(t, "MATERNITY", result.Items[0].Code)
	assert.True(t, leave.Days(180).Equal(result.Items[0].Days))
	assert.Equal(t, leave.CodePaid, result.Items[1].Code)
	assert.True(t, leave.Days(10).Equal(result.Items[1].Days))
	assert.Equal(t, leave.CodeUnpaid, result.Items[2].Code)
	assert.True(t, leave.Days(4).Equal(result.Items[2].Days))
	itemsSumToDuration(t, result)
}

func TestValidate_FemaleParentalTwinsExtendEntitlement(t *testing.T) {
	// GIVEN: Twins - entitlement 180 + 30 = 210 calendar days
	// WHEN: Requesting 200 calendar days
	// THEN: Wholly covered

	engine, _ := newTestEngine(t)
	start := leave.NewDate(2026, time.January, 5)

	result, err := engine.ValidateAndPrepare(context.Background(),
		parentalInput(start, start.AddDays(199), leave.ParentalOptions{
			Gender: leave.GenderFemale, NumberOfChildren: 2, Delivery: leave.DeliveryNatural,
		}))
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.True(t, leave.Days(200).Equal(result.Items[0].Days))
}

func TestValidate_MaleParentalByDeliveryMethod(t *testing.T) {
	// GIVEN: Cesarean delivery - 7 working days of entitlement, 2 paid banked
	// WHEN: Requesting 10 working days (Mon Feb 9 - Fri Feb 20)
	// THEN: [MATERNITY 7, PAID 2, UNPAID 1]

	engine, mem := newTestEngine(t)
	creditDays(t, mem, "emp-1", "lt-paid", 2)

	result, err := engine.ValidateAndPrepare(context.Background(),
		parentalInput(feb(9), feb(20), leave.ParentalOptions{
			Gender: leave.GenderMale, Delivery: leave.DeliveryCesarean,
		}))
	require.NoError(t, err)

	assert.True(t, leave.Days(10).Equal(result.DurationDays))
	require.Len(t, result.Items, 3)
	assert.True(t, leave.Days(7).Equal(result.Items[0].Days))
	assert.True(t, leave.Days(2).Equal(result.Items[1].Days))
	assert.True(t, leave.Days(1).Equal(result.Items[2].Days))
	itemsSumToDuration(t, result)
}

func TestValidate_MaleNaturalDeliveryFiveDays(t *testing.T) {
	// GIVEN: Natural delivery - 5 working days
	// WHEN: Requesting exactly 5 working days
	// THEN: Wholly covered

	engine, _ := newTestEngine(t)

	result, err := engine.ValidateAndPrepare(context.Background(),
		parentalInput(feb(9), feb(13), leave.ParentalOptions{
			Gender: leave.GenderMale, Delivery: leave.DeliveryNatural,
		}))
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.True(t, leave.Days(5).Equal(result.Items[0].Days))
}

func TestValidate_ParentalWithoutOptionsFails(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.ValidateAndPrepare(context.Background(), input("lt-maternity", feb(9), feb(13)))
	assert.ErrorIs(t, err, leave.ErrMissingParentalOptions)
}

// =============================================================================
// SAFETY NET
// =============================================================================

func TestValidate_NoConversionTargetRoutesToUnpaid(t *testing.T) {
	// GIVEN: SPECIAL leave capped at 2 with no conversion rules
	// WHEN: Requesting 4 working days
	// THEN: The remainder lands on UNPAID via the safety net

	engine, _ := newTestEngine(t)

	result, err := engine.ValidateAndPrepare(context.Background(), input("lt-special", feb(10), feb(13)))
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, "SPECIAL", result.Items[0].Code)
	assert.True(t, leave.Days(2).Equal(result.Items[0].Days))
	assert.Equal(t, leave.CodeUnpaid, result.Items[1].Code)
	assert.True(t, leave.Days(2).Equal(result.Items[1].Days))
	assert.True(t, hasWarning(result, leave.WarnUnallocated))
	itemsSumToDuration(t, result)
}

func TestValidate_NoUnpaidTypeKeepsRemainderOnOriginal(t *testing.T) {
	// GIVEN: The UNPAID type is disabled
	// WHEN: SPECIAL overflows with nowhere to go
	// THEN: The remainder stays on SPECIAL marked "(unallocated)" -
	//       visible and auditable, never dropped

	engine, mem := newTestEngine(t)
	require.NoError(t, mem.SaveLeaveType(context.Background(), leave.LeaveType{
		ID: "lt-unpaid", Code: leave.CodeUnpaid, Name: "Unpaid Leave",
		CategoryCode: leave.CategoryAnnual, IsActive: false,
	}))

	result, err := engine.ValidateAndPrepare(context.Background(), input("lt-special", feb(10), feb(13)))
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, "SPECIAL", result.Items[0].Code)
	assert.Equal(t, "SPECIAL", result.Items[1].Code)
	assert.Equal(t, "(unallocated)", result.Items[1].Note)
	assert.True(t, hasWarning(result, leave.WarnUnallocated))
	itemsSumToDuration(t, result)
}

// =============================================================================
// STRUCTURAL REJECTIONS
// =============================================================================

func TestValidate_StructuralErrors(t *testing.T) {
	engine, mem := newTestEngine(t)
	require.NoError(t, mem.SaveLeaveType(context.Background(), leave.LeaveType{
		ID: "lt-frozen", Code: "FROZEN", Name: "Frozen", CategoryCode: leave.CategoryAnnual, IsActive: false,
	}))
	ctx := context.Background()

	t.Run("unknown leave type", func(t *testing.T) {
		_, err := engine.ValidateAndPrepare(ctx, input("lt-ghost", feb(10), feb(12)))
		assert.ErrorIs(t, err, leave.ErrUnknownLeaveType)
	})

	t.Run("inactive leave type", func(t *testing.T) {
		_, err := engine.ValidateAndPrepare(ctx, input("lt-frozen", feb(10), feb(12)))
		assert.ErrorIs(t, err, leave.ErrInactiveLeaveType)
	})

	t.Run("end before start", func(t *testing.T) {
		_, err := engine.ValidateAndPrepare(ctx, input("lt-paid", feb(12), feb(10)))
		assert.ErrorIs(t, err, leave.ErrInvalidRange)
	})

	t.Run("same day inverted sessions", func(t *testing.T) {
		in := input("lt-paid", feb(10), feb(10))
		in.Span.StartSession = leave.SessionPM
		in.Span.EndSession = leave.SessionAM
		_, err := engine.ValidateAndPrepare(ctx, in)
		assert.ErrorIs(t, err, leave.ErrInvalidRange)
	})

	t.Run("weekend only request has zero duration", func(t *testing.T) {
		_, err := engine.ValidateAndPrepare(ctx, input("lt-paid", feb(14), feb(15)))
		assert.ErrorIs(t, err, leave.ErrInvalidRange)
	})

	t.Run("below policy minimum", func(t *testing.T) {
		in := input("lt-sick", feb(10), feb(10))
		in.Span.EndSession = leave.SessionAM // half a day vs minimum 1
		_, err := engine.ValidateAndPrepare(ctx, in)

		var minErr *leave.BelowMinimumError
		require.ErrorAs(t, err, &minErr)
		assert.True(t, leave.Days(0.5).Equal(minErr.Duration))
		assert.True(t, leave.Days(1).Equal(minErr.Minimum))
	})
}
