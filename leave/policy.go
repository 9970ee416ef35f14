/*
policy.go - Effective-dated policies and conversion rules

PURPOSE:
  A LeaveTypePolicy is the ruleset attached to one leave type for a date
  range: per-request caps, minimum duration, negative-balance allowance,
  annual/monthly limits. A Conversion is one edge of the waterfall graph:
  "overflow from this type to that type, for this reason, in this order".

EFFECTIVE DATING:
  At most one policy row should be active per leave type per date. When
  rows overlap anyway, the one with the latest EffectiveFrom wins -
  SelectActivePolicy encodes that rule so every store adapter resolves
  overlaps identically.

CONVERSION ORDERING:
  Rules for a given (fromType, reason) are consumed in ascending Priority
  order. The reason tag gates which waterfall stage may use the rule:
  EXCEED_MAX_PER_REQUEST feeds stage one, EXCEED_BALANCE feeds stage two.

SEE ALSO:
  - waterfall.go: consumes both lookups
  - ports.go: PolicyProvider / ConversionProvider interfaces
*/
package leave

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POLICY - Rules for one leave type, effective-dated
// =============================================================================

// LeaveTypePolicy is read-only at validation time. Nil limit pointers
// mean "no limit".
type LeaveTypePolicy struct {
	ID          string
	LeaveTypeID LeaveTypeID

	EffectiveFrom Date
	EffectiveTo   *Date // nil = open-ended

	MaxPerRequestDays    *decimal.Decimal
	MinDurationDays      *decimal.Decimal
	AllowNegative        bool
	MaxNegativeLimitDays *decimal.Decimal
	AnnualLimitDays      *decimal.Decimal
	MonthlyLimitDays     *decimal.Decimal
	AutoCalculateEndDate bool
}

// ActiveAt reports whether the policy covers the given date.
func (p LeaveTypePolicy) ActiveAt(d Date) bool {
	if d.Before(p.EffectiveFrom) {
		return false
	}
	if p.EffectiveTo != nil && d.After(*p.EffectiveTo) {
		return false
	}
	return true
}

// SelectActivePolicy picks the policy row active at the given date.
// On overlap the latest EffectiveFrom wins. Returns nil when no row covers
// the date - callers treat nil as "no limits configured".
func SelectActivePolicy(rows []LeaveTypePolicy, at Date) *LeaveTypePolicy {
	var best *LeaveTypePolicy
	for i := range rows {
		p := rows[i]
		if !p.ActiveAt(at) {
			continue
		}
		if best == nil || best.EffectiveFrom.Before(p.EffectiveFrom) {
			best = &rows[i]
		}
	}
	return best
}

// =============================================================================
// CONVERSIONS - Waterfall edges
// =============================================================================

type ConversionReason string

const (
	ReasonExceedMaxPerRequest ConversionReason = "EXCEED_MAX_PER_REQUEST"
	ReasonExceedBalance       ConversionReason = "EXCEED_BALANCE"
)

// Conversion routes overflow days from one leave type to another.
type Conversion struct {
	FromLeaveTypeID LeaveTypeID
	ToLeaveTypeID   LeaveTypeID
	Priority        int // ascending = consumed first
	Reason          ConversionReason
	IsActive        bool
}

// OrderConversions filters to active rules and sorts by ascending priority.
// Store adapters run their rows through this before returning them.
func OrderConversions(rows []Conversion) []Conversion {
	out := make([]Conversion, 0, len(rows))
	for _, c := range rows {
		if c.IsActive {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

func filterByReason(rules []Conversion, reason ConversionReason) []Conversion {
	var out []Conversion
	for _, c := range rules {
		if c.Reason == reason {
			out = append(out, c)
		}
	}
	return out
}
