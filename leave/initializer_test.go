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

func newTestInitializer(t *testing.T, employees ...string) (*leave.BalanceInitializer, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.SaveLeaveType(ctx, leave.LeaveType{
		ID: "lt-paid", Code: leave.CodePaid, Name: "Paid Annual Leave",
		CategoryCode: leave.CategoryAnnual, IsActive: true,
	}))
	for _, id := range employees {
		require.NoError(t, mem.SaveEmployee(ctx, leave.Employee{
			ID: leave.EmployeeID(id), Name: id,
			HireDate: leave.NewDate(2024, time.June, 1), IsActive: true,
		}))
	}

	init := leave.NewBalanceInitializer(mem, mem, mem)
	init.Now = func() time.Time { return time.Date(2026, time.January, 2, 8, 0, 0, 0, time.UTC) }
	return init, mem
}

// =============================================================================
// YEARLY ACCRUAL RUN
// =============================================================================

func TestInitializeYearly_CreditsEveryActiveEmployee(t *testing.T) {
	init, mem := newTestInitializer(t, "emp-1", "emp-2", "emp-3")
	ctx := context.Background()

	result, err := init.InitializeYearly(ctx, 2026, leave.Days(25))
	require.NoError(t, err)
	assert.Equal(t, leave.InitResult{Credited: 3, Skipped: 0, Total: 3}, result)

	for _, emp := range []leave.EmployeeID{"emp-1", "emp-2", "emp-3"} {
		credit, err := mem.Sum(ctx, emp, "lt-paid", 2026, nil, leave.DirectionCredit)
		require.NoError(t, err)
		assert.True(t, leave.Days(25).Equal(credit), "%s got %s", emp, credit)
	}
}

func TestInitializeYearly_RerunCreditsNobody(t *testing.T) {
	// GIVEN: A completed yearly run
	// WHEN: Running it again for the same year
	// THEN: Everyone is skipped and no balance changes

	init, mem := newTestInitializer(t, "emp-1", "emp-2")
	ctx := context.Background()

	_, err := init.InitializeYearly(ctx, 2026, leave.Days(25))
	require.NoError(t, err)

	result, err := init.InitializeYearly(ctx, 2026, leave.Days(25))
	require.NoError(t, err)
	assert.Equal(t, leave.InitResult{Credited: 0, Skipped: 2, Total: 2}, result)

	credit, err := mem.Sum(ctx, "emp-1", "lt-paid", 2026, nil, leave.DirectionCredit)
	require.NoError(t, err)
	assert.True(t, leave.Days(25).Equal(credit), "got %s", credit)
}

func TestInitializeYearly_NewHireOnlyOnRerun(t *testing.T) {
	// GIVEN: A completed run, then a new hire
	// WHEN: Rerunning
	// THEN: Only the new hire is credited

	init, mem := newTestInitializer(t, "emp-1")
	ctx := context.Background()

	_, err := init.InitializeYearly(ctx, 2026, leave.Days(25))
	require.NoError(t, err)

	require.NoError(t, mem.SaveEmployee(ctx, leave.Employee{
		ID: "emp-new", Name: "emp-new",
		HireDate: leave.NewDate(2026, time.February, 1), IsActive: true,
	}))

	result, err := init.InitializeYearly(ctx, 2026, leave.Days(25))
	require.NoError(t, err)
	assert.Equal(t, leave.InitResult{Credited: 1, Skipped: 1, Total: 2}, result)
}

func TestInitializeYearly_RejectsInvalidAmounts(t *testing.T) {
	init, _ := newTestInitializer(t, "emp-1")

	_, err := init.InitializeYearly(context.Background(), 2026, leave.Days(25.3))
	assert.ErrorIs(t, err, leave.ErrInvalidAmount)

	_, err = init.InitializeYearly(context.Background(), 2026, leave.Days(0))
	assert.ErrorIs(t, err, leave.ErrInvalidAmount)
}

// =============================================================================
// PRO-RATED SINGLE-EMPLOYEE ACCRUAL
// =============================================================================

func TestInitializeEmployee_ProRatedByCurrentMonth(t *testing.T) {
	// GIVEN: A mid-year hire initialized in July
	// WHEN: Crediting a 25-day annual entitlement
	// THEN: round(((13-7)/12) x 25 x 2)/2 = 12.5 days

	init, mem := newTestInitializer(t, "emp-1")
	init.Now = func() time.Time { return time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	credited, skipped, err := init.InitializeEmployee(ctx, "emp-1", 2026, leave.Days(25))
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.True(t, leave.Days(12.5).Equal(credited), "got %s", credited)

	credit, err := mem.Sum(ctx, "emp-1", "lt-paid", 2026, nil, leave.DirectionCredit)
	require.NoError(t, err)
	assert.True(t, leave.Days(12.5).Equal(credit), "got %s", credit)
}

func TestInitializeEmployee_SkipsWhenAccrualExists(t *testing.T) {
	init, _ := newTestInitializer(t, "emp-1")
	ctx := context.Background()

	_, _, err := init.InitializeEmployee(ctx, "emp-1", 2026, leave.Days(25))
	require.NoError(t, err)

	credited, skipped, err := init.InitializeEmployee(ctx, "emp-1", 2026, leave.Days(25))
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.True(t, credited.IsZero())
}

func TestInitializeEmployee_UnknownEmployee(t *testing.T) {
	init, _ := newTestInitializer(t, "emp-1")

	_, _, err := init.InitializeEmployee(context.Background(), "ghost", 2026, leave.Days(25))
	assert.ErrorIs(t, err, leave.ErrEmployeeNotFound)
}

func TestProrateAnnualDays_RoundsToHalfDays(t *testing.T) {
	cases := []struct {
		month int
		want  float64
	}{
		{1, 25},   // full year
		{2, 23},   // 22.9166... rounds to 23.0
		{7, 12.5}, // exactly half
		{12, 2},   // 2.0833... rounds to 2.0
	}
	for _, tc := range cases {
		got := leave.ProrateAnnualDays(leave.Days(25), tc.month)
		assert.True(t, leave.Days(tc.want).Equal(got), "month %d: got %s", tc.month, got)
	}
}
