package services

import "time"

// Calendar answers business-day questions for due-date arithmetic.
// A business day is a weekday that is not in the holiday set. Production
// wiring passes no holidays, matching the contract language the due
// dates come from; the set exists so a holiday table can be plugged in
// without touching the arithmetic.
type Calendar struct {
	holidays map[string]bool
}

// NewCalendar builds a calendar over the given holidays (calendar dates;
// the time of day is ignored).
func NewCalendar(holidays ...time.Time) *Calendar {
	c := &Calendar{holidays: make(map[string]bool, len(holidays))}
	for _, h := range holidays {
		c.holidays[dateKey(h)] = true
	}
	return c
}

// IsBusinessDay reports whether d falls on a working day.
func (c *Calendar) IsBusinessDay(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidays[dateKey(d)]
}

// SubtractBusinessDays walks n business days backwards from d. Calling
// with n=0 returns d unchanged even when d itself is a weekend.
func (c *Calendar) SubtractBusinessDays(d time.Time, n int) time.Time {
	for i := 0; i < n; {
		d = d.AddDate(0, 0, -1)
		if c.IsBusinessDay(d) {
			i++
		}
	}
	return d
}

// AddBusinessDays walks n business days forward from d.
func (c *Calendar) AddBusinessDays(d time.Time, n int) time.Time {
	for i := 0; i < n; {
		d = d.AddDate(0, 0, 1)
		if c.IsBusinessDay(d) {
			i++
		}
	}
	return d
}

// dateKey normalizes a timestamp to its calendar date. Due-date math and
// reminder classification only ever compare dates, never clock times.
func dateKey(d time.Time) string {
	return d.Format("2006-01-02")
}

// sameDate reports whether two timestamps fall on the same calendar date.
func sameDate(a, b time.Time) bool {
	return dateKey(a) == dateKey(b)
}

// beforeDate reports whether a's calendar date precedes b's.
func beforeDate(a, b time.Time) bool {
	return dateKey(a) < dateKey(b)
}
