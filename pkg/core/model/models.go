package model

import "time"

// Shift represents one scheduled work interval from the portal roster.
// Start and End carry the location the roster was parsed in; the portal
// never transmits a year or timezone itself. Start <= End is assumed but
// not checked anywhere: the portal is trusted on this.
type Shift struct {
	Start time.Time
	End   time.Time
	Role  string
	// Columns carries any additional portal columns through unchanged.
	// Cells the portal left empty are omitted.
	Columns map[string]string
}

// Roster is one period's worth of shifts, in the order the portal lists
// them. A week with no roster is represented by a nil *Roster, not by an
// empty one.
type Roster struct {
	PeriodStart time.Time
	Shifts      []Shift
}

// StartOfWeek normalizes t to 00:00 on the Monday of its calendar week,
// which is how the portal identifies a period.
func StartOfWeek(t time.Time) time.Time {
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	t = t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
