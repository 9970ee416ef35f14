package leave

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Local calendar date (no clock, no zone)
// =============================================================================

// Date is a plain calendar date. All day arithmetic happens on
// year/month/day; nothing is ever shifted through a time zone, so a
// request entered as 2026-02-10 stays 2026-02-10 everywhere.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a normalized date (out-of-range days roll over the way
// time.Date rolls them).
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// DateOf truncates a time.Time to its calendar date.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date { return DateOf(d.time().AddDate(0, 0, n)) }

// Comparison
func (d Date) Before(other Date) bool { return d.time().Before(other.time()) }
func (d Date) After(other Date) bool  { return d.time().After(other.time()) }
func (d Date) Equal(other Date) bool  { return d == other }

// Properties
func (d Date) Weekday() time.Weekday { return d.time().Weekday() }
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
func (d Date) IsZero() bool   { return d == Date{} }
func (d Date) String() string { return d.time().Format("2006-01-02") }

// =============================================================================
// SESSION - AM/PM half-day slot
// =============================================================================

// Session names one of the two half-day slots of a calendar day.
type Session string

const (
	SessionAM Session = "AM"
	SessionPM Session = "PM"
)

// ParseSession validates a session string.
func ParseSession(s string) (Session, error) {
	switch Session(s) {
	case SessionAM, SessionPM:
		return Session(s), nil
	}
	return "", fmt.Errorf("invalid session %q: must be AM or PM", s)
}

// NextSlot returns the half-day slot immediately after (d, s):
// AM rolls to PM of the same day, PM rolls to AM of the next day.
func NextSlot(d Date, s Session) (Date, Session) {
	if s == SessionAM {
		return d, SessionPM
	}
	return d.AddDays(1), SessionAM
}

// =============================================================================
// SPAN - Inclusive date range with boundary sessions
// =============================================================================

// Span is an inclusive leave range: it starts at (Start, StartSession)
// and ends at (End, EndSession).
type Span struct {
	Start        Date
	End          Date
	StartSession Session
	EndSession   Session
}

// =============================================================================
// CALENDAR OVERRIDES - Holidays and working-day exceptions
// =============================================================================

type OverrideType string

const (
	OverrideHoliday OverrideType = "HOLIDAY"
	OverrideWorking OverrideType = "WORKING_OVERRIDE"
)

// CalendarOverride marks one date as a holiday or as a working day that
// would otherwise be a weekend.
type CalendarOverride struct {
	Date Date
	Type OverrideType
}

// OverrideSet indexes overrides by date for duration calculation.
type OverrideSet map[Date]OverrideType

// NewOverrideSet builds an OverrideSet from a slice of overrides.
// A HOLIDAY marker wins if the same date appears twice.
func NewOverrideSet(overrides []CalendarOverride) OverrideSet {
	set := make(OverrideSet, len(overrides))
	for _, o := range overrides {
		if existing, ok := set[o.Date]; ok && existing == OverrideHoliday {
			continue
		}
		set[o.Date] = o.Type
	}
	return set
}

// IsWorking applies the working-day rule: a HOLIDAY override always makes
// the day non-working; a WORKING_OVERRIDE makes it working even on a
// weekend; otherwise weekends are non-working and weekdays are working.
func (s OverrideSet) IsWorking(d Date) bool {
	switch s[d] {
	case OverrideHoliday:
		return false
	case OverrideWorking:
		return true
	}
	return !d.IsWeekend()
}
