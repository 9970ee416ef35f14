/*
waterfall.go - Request validation and the conversion waterfall

PURPOSE:
  Turns one leave request into a breakdown of ledger-attributable items
  plus advisory warnings. This is the orchestration point: calendar,
  policy, conversion and ledger reads feed in, an allocation comes out,
  and the approval workflow later commits it via BalanceLedger.

THE WATERFALL:
  Days that cannot stay on the requested type overflow along a directed,
  acyclic chain of conversion rules:

    requested --EXCEED_MAX_PER_REQUEST--> paid --EXCEED_BALANCE--> unpaid

  Stage one consumes the paid type's live balance; a shortfall emits a
  warning. Stage two routes whatever is left to an unpaid type; the
  unpaid annual limit is advisory, so exceeding it still allocates the
  days and only adds a warning. If no rule can place the remainder, a
  safety-net fallback pushes it onto the UNPAID type (by code) or back
  onto the requested type marked "(unallocated)" - days are never
  silently dropped, so sum(items) == durationDays always holds.

PARENTAL LEAVE:
  Female: entitlement = 180 + 30 per additional child, in CALENDAR days.
  A request inside the entitlement is covered wholly; beyond it, the
  entitlement's calendar end is projected slot by slot and the excess
  period is measured with the WORKING-day calculator.
  Male: 7 working days (c-section) or 5 (natural); the whole request is
  working-day counted and the excess overflows like any other.

FAILURE MODEL:
  Only structural problems fail the call: unknown/inactive type, bad
  range, non-positive or sub-minimum duration, missing parental options.
  Balance and limit shortfalls become warnings on a successful result.

SEE ALSO:
  - duration.go: the slot arithmetic used here
  - policy.go: conversion ordering and reason gating
  - request.go: persists the allocation as a pending request
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PARENTAL ENTITLEMENTS
// =============================================================================

type Gender string

const (
	GenderFemale Gender = "FEMALE"
	GenderMale   Gender = "MALE"
)

type DeliveryMethod string

const (
	DeliveryNatural  DeliveryMethod = "NATURAL"
	DeliveryCesarean DeliveryMethod = "CESAREAN"
)

const (
	femaleBaseEntitlementDays   = 180 // calendar days
	femalePerExtraChildDays     = 30  // calendar days per child beyond the first
	maleCesareanEntitlementDays = 7   // working days
	maleNaturalEntitlementDays  = 5   // working days
)

// ParentalOptions carries the childbirth details that drive parental
// entitlement. Required for PARENTAL-category requests.
type ParentalOptions struct {
	Gender           Gender
	NumberOfChildren int
	Delivery         DeliveryMethod
}

// FemaleEntitlementDays returns the calendar-day entitlement for the
// given number of children.
func FemaleEntitlementDays(numberOfChildren int) int {
	extra := numberOfChildren - 1
	if extra < 0 {
		extra = 0
	}
	return femaleBaseEntitlementDays + extra*femalePerExtraChildDays
}

// MaleEntitlementDays returns the working-day entitlement for the
// delivery method.
func MaleEntitlementDays(delivery DeliveryMethod) int {
	if delivery == DeliveryCesarean {
		return maleCesareanEntitlementDays
	}
	return maleNaturalEntitlementDays
}

// =============================================================================
// VALIDATION ENGINE
// =============================================================================

type ValidationEngine struct {
	Types       LeaveTypeProvider
	Policies    PolicyProvider
	Conversions ConversionProvider
	Calendar    CalendarProvider
	Ledger      *BalanceLedger
}

func NewValidationEngine(types LeaveTypeProvider, policies PolicyProvider, conversions ConversionProvider, calendar CalendarProvider, ledger *BalanceLedger) *ValidationEngine {
	return &ValidationEngine{Types: types, Policies: policies, Conversions: conversions, Calendar: calendar, Ledger: ledger}
}

// ValidationInput is one leave request to validate.
type ValidationInput struct {
	EmployeeID       EmployeeID
	LeaveTypeID      LeaveTypeID
	Span             Span
	ExcludeRequestID *RequestID
	Parental         *ParentalOptions
}

// ConversionItem is one slice of the allocation breakdown.
type ConversionItem struct {
	LeaveTypeID LeaveTypeID     `json:"leave_type_id"`
	Code        string          `json:"code"`
	Days        decimal.Decimal `json:"days"`
	Note        string          `json:"note,omitempty"`
}

// ValidationResult is the allocation plus advisory warnings.
// sum(Items[].Days) == DurationDays, always.
type ValidationResult struct {
	DurationDays decimal.Decimal  `json:"duration_days"`
	Items        []ConversionItem `json:"items"`
	Warnings     []Warning        `json:"warnings"`
	CanProceed   bool             `json:"can_proceed"`
}

// allocation is the working state threaded through one validation.
type allocation struct {
	in        ValidationInput
	leaveType LeaveType
	policy    *LeaveTypePolicy
	overrides OverrideSet
	year      int

	duration decimal.Decimal
	covered  decimal.Decimal // parental entitlement-covered portion
	excess   decimal.Decimal

	items    []ConversionItem
	warnings []Warning
}

func (a *allocation) add(lt LeaveType, days decimal.Decimal, note string) {
	if days.IsZero() || days.IsNegative() {
		return
	}
	for i := range a.items {
		if a.items[i].LeaveTypeID == lt.ID && a.items[i].Note == note {
			a.items[i].Days = a.items[i].Days.Add(days)
			return
		}
	}
	a.items = append(a.items, ConversionItem{LeaveTypeID: lt.ID, Code: lt.Code, Days: days, Note: note})
}

func (a *allocation) warn(w Warning) { a.warnings = append(a.warnings, w) }

type allocateFunc func(ctx context.Context, a *allocation) (remaining decimal.Decimal, err error)

// strategyTable maps each category to its allocation strategy. Selected
// once per validation, invoked uniformly.
func (e *ValidationEngine) strategyTable() map[Category]allocateFunc {
	return map[Category]allocateFunc{
		CategoryAnnual:   e.allocateAnnual,
		CategoryParental: e.allocateParental,
		CategoryPolicy:   e.allocateCapped,
		CategorySocial:   e.allocateCapped,
	}
}

// =============================================================================
// VALIDATE AND PREPARE
// =============================================================================

// ValidateAndPrepare validates a request and computes its allocation.
// It never writes: concurrent validations cannot corrupt the ledger.
func (e *ValidationEngine) ValidateAndPrepare(ctx context.Context, in ValidationInput) (*ValidationResult, error) {
	lt, err := e.Types.GetByID(ctx, in.LeaveTypeID)
	if err != nil {
		return nil, err
	}
	if !lt.IsActive {
		return nil, fmt.Errorf("leave type %s: %w", lt.Code, ErrInactiveLeaveType)
	}
	if in.Span.End.Before(in.Span.Start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, in.Span.End, in.Span.Start)
	}

	rows, err := e.Calendar.Overrides(ctx, in.Span.Start, in.Span.End)
	if err != nil {
		return nil, err
	}
	policy, err := e.Policies.ActivePolicy(ctx, lt.ID, in.Span.Start)
	if err != nil {
		return nil, err
	}

	a := &allocation{
		in:        in,
		leaveType: lt,
		policy:    policy,
		overrides: NewOverrideSet(rows),
		year:      in.Span.Start.Year,
	}

	if err := e.computeDuration(a); err != nil {
		return nil, err
	}
	if !a.duration.IsPositive() {
		return nil, fmt.Errorf("%w: duration is not positive", ErrInvalidRange)
	}
	if policy != nil && policy.MinDurationDays != nil && a.duration.LessThan(*policy.MinDurationDays) {
		return nil, &BelowMinimumError{Duration: a.duration, Minimum: *policy.MinDurationDays}
	}

	strategy, ok := e.strategyTable()[lt.CategoryCode]
	if !ok {
		strategy = e.allocateDirect
	}
	remaining, err := strategy(ctx, a)
	if err != nil {
		return nil, err
	}

	if remaining.IsPositive() {
		e.allocateFallback(ctx, a, remaining)
	}

	if len(a.items) > 1 {
		parts := make([]string, len(a.items))
		for i, item := range a.items {
			parts[i] = fmt.Sprintf("%s %s", item.Code, item.Days)
		}
		composite := warnf(WarnSplitAllocation,
			"request split across %d leave types: %s", len(a.items), strings.Join(parts, ", "))
		a.warnings = append([]Warning{composite}, a.warnings...)
	}

	return &ValidationResult{
		DurationDays: a.duration,
		Items:        a.items,
		Warnings:     a.warnings,
		CanProceed:   true,
	}, nil
}

// =============================================================================
// DURATION - category-dependent
// =============================================================================

func (e *ValidationEngine) computeDuration(a *allocation) error {
	if a.leaveType.CategoryCode != CategoryParental {
		a.duration = WorkingDays(a.in.Span, a.overrides)
		return nil
	}

	opts := a.in.Parental
	if opts == nil {
		return ErrMissingParentalOptions
	}

	switch opts.Gender {
	case GenderFemale:
		return e.femaleParentalDuration(a, opts)
	case GenderMale:
		entitlement := DaysFromSlots(MaleEntitlementDays(opts.Delivery) * 2)
		a.duration = WorkingDays(a.in.Span, a.overrides)
		a.excess = decimal.Max(decimal.Zero, a.duration.Sub(entitlement))
		a.covered = a.duration.Sub(a.excess)
		return nil
	default:
		return fmt.Errorf("%w: gender must be FEMALE or MALE", ErrMissingParentalOptions)
	}
}

// femaleParentalDuration mixes the two counting modes: the entitlement is
// measured in calendar days, everything past it in working days.
func (e *ValidationEngine) femaleParentalDuration(a *allocation, opts *ParentalOptions) error {
	entitlement := decimal.NewFromInt(int64(FemaleEntitlementDays(opts.NumberOfChildren)))
	calendarDur := CalendarDays(a.in.Span)

	if calendarDur.LessThanOrEqual(entitlement) {
		// Wholly covered by the entitlement.
		a.duration = calendarDur
		a.covered = calendarDur
		a.excess = decimal.Zero
		return nil
	}

	// Project where the entitlement runs out, slot by slot.
	entSlots := int(entitlement.Mul(two).IntPart())
	entEnd, entSession, ok := ProjectCalendarEnd(a.in.Span.Start, a.in.Span.StartSession, entSlots)
	if !ok {
		return fmt.Errorf("%w: cannot project entitlement end", ErrInvalidRange)
	}

	// The excess period starts at the very next slot and is counted in
	// working days through the requested end.
	excessStart, excessSession := NextSlot(entEnd, entSession)
	excessSpan := Span{
		Start:        excessStart,
		End:          a.in.Span.End,
		StartSession: excessSession,
		EndSession:   a.in.Span.EndSession,
	}
	a.covered = entitlement
	a.excess = WorkingDays(excessSpan, a.overrides)
	a.duration = a.covered.Add(a.excess)
	return nil
}

// =============================================================================
// ALLOCATION STRATEGIES
// =============================================================================

// allocateParental puts the entitlement-covered days on the parental type
// itself; the excess enters the waterfall rooted at the parental type.
func (e *ValidationEngine) allocateParental(ctx context.Context, a *allocation) (decimal.Decimal, error) {
	a.add(a.leaveType, a.covered, "parental entitlement")
	if !a.excess.IsPositive() {
		return decimal.Zero, nil
	}
	return e.runWaterfall(ctx, a, a.leaveType, a.excess)
}

// allocateCapped handles POLICY and SOCIAL leave: the requested type takes
// up to its per-request cap, the remainder overflows.
func (e *ValidationEngine) allocateCapped(ctx context.Context, a *allocation) (decimal.Decimal, error) {
	take := a.duration
	if a.policy != nil && a.policy.MaxPerRequestDays != nil {
		take = decimal.Min(a.duration, *a.policy.MaxPerRequestDays)
	}
	a.add(a.leaveType, take, "")
	remaining := a.duration.Sub(take)
	if !remaining.IsPositive() {
		return decimal.Zero, nil
	}
	return e.runWaterfall(ctx, a, a.leaveType, remaining)
}

// allocateAnnual handles paid and unpaid annual leave requested directly.
func (e *ValidationEngine) allocateAnnual(ctx context.Context, a *allocation) (decimal.Decimal, error) {
	if a.leaveType.Code == CodeUnpaid {
		// Direct unpaid: take everything, annual limit is advisory.
		a.add(a.leaveType, a.duration, "")
		if a.policy != nil && a.policy.AnnualLimitDays != nil {
			used, err := e.Ledger.UsedDays(ctx, a.in.EmployeeID, a.leaveType.ID, a.year)
			if err != nil {
				return decimal.Zero, err
			}
			if used.Add(a.duration).GreaterThan(*a.policy.AnnualLimitDays) {
				a.warn(warnf(WarnAnnualLimitExceeded,
					"%s: %s used plus %s requested exceeds annual limit %s",
					a.leaveType.Code, used, a.duration, *a.policy.AnnualLimitDays))
			}
		}
		return decimal.Zero, nil
	}

	balance, err := e.Ledger.Balance(ctx, a.in.EmployeeID, a.leaveType.ID, a.year, a.in.ExcludeRequestID)
	if err != nil {
		return decimal.Zero, err
	}
	available := decimal.Max(balance, decimal.Zero)
	if a.policy != nil && a.policy.AllowNegative {
		if a.policy.MaxNegativeLimitDays != nil {
			available = decimal.Max(balance.Add(*a.policy.MaxNegativeLimitDays), decimal.Zero)
		} else {
			available = a.duration
		}
	}

	take := decimal.Min(a.duration, available)
	a.add(a.leaveType, take, "")
	remaining := a.duration.Sub(take)
	if !remaining.IsPositive() {
		return decimal.Zero, nil
	}

	a.warn(warnf(WarnBalanceShortfall,
		"insufficient %s balance: requested %s, available %s",
		a.leaveType.Code, a.duration, available))
	return e.overflowToUnpaid(ctx, a, a.leaveType, remaining)
}

// allocateDirect: unknown categories take all days on the requested type,
// no conversion.
func (e *ValidationEngine) allocateDirect(_ context.Context, a *allocation) (decimal.Decimal, error) {
	a.add(a.leaveType, a.duration, "")
	return decimal.Zero, nil
}

// =============================================================================
// THE TWO-STAGE WATERFALL
// =============================================================================

// runWaterfall walks the EXCEED_MAX_PER_REQUEST rules of the root type in
// priority order, consuming each target's live balance, then hands any
// leftover to the EXCEED_BALANCE stage rooted at the last paid type.
func (e *ValidationEngine) runWaterfall(ctx context.Context, a *allocation, root LeaveType, remaining decimal.Decimal) (decimal.Decimal, error) {
	rules, err := e.Conversions.Conversions(ctx, root.ID)
	if err != nil {
		return remaining, err
	}
	stage1 := filterByReason(rules, ReasonExceedMaxPerRequest)

	paid := root
	for _, rule := range stage1 {
		if !remaining.IsPositive() {
			break
		}
		target, err := e.Types.GetByID(ctx, rule.ToLeaveTypeID)
		if err != nil {
			if errors.Is(err, ErrUnknownLeaveType) {
				continue // dangling rule, skip
			}
			return remaining, err
		}
		if !target.IsActive {
			continue
		}
		paid = target

		balance, err := e.Ledger.Balance(ctx, a.in.EmployeeID, target.ID, a.year, a.in.ExcludeRequestID)
		if err != nil {
			return remaining, err
		}
		take := decimal.Min(remaining, decimal.Max(balance, decimal.Zero))
		if take.IsPositive() {
			a.add(target, take, "converted from "+root.Code)
			remaining = remaining.Sub(take)
		}
	}

	if remaining.IsPositive() {
		if len(stage1) > 0 {
			a.warn(warnf(WarnBalanceShortfall,
				"insufficient %s balance to absorb overflow from %s: %s days remain",
				paid.Code, root.Code, remaining))
		}
		return e.overflowToUnpaid(ctx, a, paid, remaining)
	}
	return decimal.Zero, nil
}

// overflowToUnpaid is stage two: route everything remaining along the
// paid type's EXCEED_BALANCE rules. The unpaid annual limit never blocks;
// exceeding it only adds a warning.
func (e *ValidationEngine) overflowToUnpaid(ctx context.Context, a *allocation, paid LeaveType, remaining decimal.Decimal) (decimal.Decimal, error) {
	rules, err := e.Conversions.Conversions(ctx, paid.ID)
	if err != nil {
		return remaining, err
	}
	for _, rule := range filterByReason(rules, ReasonExceedBalance) {
		if !remaining.IsPositive() {
			break
		}
		unpaid, err := e.Types.GetByID(ctx, rule.ToLeaveTypeID)
		if err != nil {
			if errors.Is(err, ErrUnknownLeaveType) {
				continue
			}
			return remaining, err
		}
		if !unpaid.IsActive {
			continue
		}

		if policy, err := e.Policies.ActivePolicy(ctx, unpaid.ID, a.in.Span.Start); err != nil {
			return remaining, err
		} else if policy != nil && policy.AnnualLimitDays != nil {
			used, err := e.Ledger.UsedDays(ctx, a.in.EmployeeID, unpaid.ID, a.year)
			if err != nil {
				return remaining, err
			}
			if used.Add(remaining).GreaterThan(*policy.AnnualLimitDays) {
				a.warn(warnf(WarnAnnualLimitExceeded,
					"%s: %s used plus %s converted exceeds annual limit %s",
					unpaid.Code, used, remaining, *policy.AnnualLimitDays))
			}
		}

		a.add(unpaid, remaining, "converted from "+paid.Code)
		remaining = decimal.Zero
	}
	return remaining, nil
}

// allocateFallback is the safety net: days the waterfall could not place
// become a visible, auditable item rather than disappearing.
func (e *ValidationEngine) allocateFallback(ctx context.Context, a *allocation, remaining decimal.Decimal) {
	if unpaid, err := e.Types.GetByCode(ctx, CodeUnpaid); err == nil && unpaid.IsActive {
		a.add(unpaid, remaining, "no conversion target, routed to unpaid")
		a.warn(warnf(WarnUnallocated,
			"%s days had no conversion target and were routed to %s", remaining, unpaid.Code))
		return
	}
	a.add(a.leaveType, remaining, "(unallocated)")
	a.warn(warnf(WarnUnallocated,
		"%s days could not be allocated and remain on %s marked (unallocated)", remaining, a.leaveType.Code))
}
