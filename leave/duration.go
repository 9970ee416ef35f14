/*
duration.go - Half-day duration calculation

PURPOSE:
  Computes leave duration over a date range at half-day precision.
  Each calendar day has two slots (AM, PM); duration = counted slots x 0.5.

SLOT RULES:
  On a counted day both slots count, except:
  - the AM slot of the start day is excluded when StartSession = PM
  - the PM slot of the end day is excluded when EndSession = AM
  A non-working day contributes zero slots regardless of sessions.

VARIANTS:
  WorkingDays:  only working days count (weekends and holidays skipped,
                weekend days with a WORKING_OVERRIDE included)
  CalendarDays: every day counts - used for female parental leave where
                the entitlement is measured in calendar days

PROJECTION:
  ProjectEnd walks forward from (start, startSession) consuming half-day
  slots one at a time and returns the date/session of the last consumed
  slot. A PM start consumes only the PM slot of day one.

EDGE CASES:
  A same-day span with StartSession=PM and EndSession=AM counts zero
  slots; callers reject non-positive durations.

SEE ALSO:
  - calendar.go: Date, Session, OverrideSet
  - waterfall.go: the validation engine driving these calculations
*/
package leave

import "github.com/shopspring/decimal"

// projectionHorizonDays bounds ProjectEnd so a bogus slot count cannot
// walk forever (entitlements are measured in months, not decades).
const projectionHorizonDays = 3660

// =============================================================================
// DURATION - Slot counting over a span
// =============================================================================

// WorkingDays returns the working-day duration of the span, in days.
func WorkingDays(span Span, overrides OverrideSet) decimal.Decimal {
	return DaysFromSlots(countSlots(span, overrides.IsWorking))
}

// CalendarDays returns the calendar-day duration of the span, in days.
// Identical slot and session rules, but every day counts.
func CalendarDays(span Span) decimal.Decimal {
	return DaysFromSlots(countSlots(span, func(Date) bool { return true }))
}

func countSlots(span Span, counts func(Date) bool) int {
	if span.End.Before(span.Start) {
		return 0
	}
	total := 0
	for d := span.Start; !d.After(span.End); d = d.AddDays(1) {
		if !counts(d) {
			continue
		}
		slots := 2
		if d == span.Start && span.StartSession == SessionPM {
			slots--
		}
		if d == span.End && span.EndSession == SessionAM {
			slots--
		}
		if slots > 0 {
			total += slots
		}
	}
	return total
}

// =============================================================================
// END-DATE PROJECTION - Where does N half-days of leave end?
// =============================================================================

// ProjectWorkingEnd returns the date and session reached after consuming
// slots half-days of working time starting at (start, startSession).
// Non-working days are skipped.
func ProjectWorkingEnd(start Date, startSession Session, slots int, overrides OverrideSet) (Date, Session, bool) {
	return projectEnd(start, startSession, slots, overrides.IsWorking)
}

// ProjectCalendarEnd is the calendar-day variant: every day consumes slots.
func ProjectCalendarEnd(start Date, startSession Session, slots int) (Date, Session, bool) {
	return projectEnd(start, startSession, slots, func(Date) bool { return true })
}

func projectEnd(start Date, startSession Session, slots int, counts func(Date) bool) (Date, Session, bool) {
	if slots <= 0 {
		return Date{}, "", false
	}

	remaining := slots
	horizon := start.AddDays(projectionHorizonDays)

	for d := start; !d.After(horizon); d = d.AddDays(1) {
		if !counts(d) {
			continue
		}
		sessions := []Session{SessionAM, SessionPM}
		if d == start && startSession == SessionPM {
			sessions = []Session{SessionPM}
		}
		for _, sess := range sessions {
			remaining--
			if remaining == 0 {
				return d, sess, true
			}
		}
	}
	return Date{}, "", false
}
