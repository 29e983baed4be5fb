// Package extractor parses usable data structures out of portal page dumps.
package extractor

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jakechorley/shift-mirror/pkg/core/model"
)

// Layouts used by the portal. Shift rows carry a day label ("Mon, Jan 06")
// and bare 24h times; the period filter spans carry full dates.
const (
	shiftTimeLayout   = "Mon, Jan 2 2006, 15:04"
	periodDateLayout  = "2 Jan 2006"
	periodStartSpanID = "_content_ctl09__filtersPersonal__lblStartDate"
	periodEndSpanID   = "_content_ctl09__filtersPersonal__lblEndDate"
)

// Column names in the personal roster grid that are consumed (and dropped)
// while building shifts. Everything else is carried through unchanged.
const (
	colRoster    = "Roster"
	colDate      = "Date"
	colStartTime = "Start Time"
	colEndTime   = "End Time"
	colRole      = "Role"
)

// rosterTableID matches the id the portal generates for the personal roster
// grid, e.g. "ctl00_content_ctl09_gridPersonalRoster".
var rosterTableID = regexp.MustCompile(`[a-zA-Z0-9_-]*gridPersonalRoster`)

// FindRosterTable locates the personal roster grid on a portal page.
// Returns nil when the page has no roster table, which is how the portal
// renders a week with no assigned shifts.
func FindRosterTable(doc *goquery.Document) *goquery.Selection {
	tables := doc.Find("table").FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, ok := s.Attr("id")
		return ok && rosterTableID.MatchString(id)
	})
	if tables.Length() == 0 {
		return nil
	}
	return tables.First()
}

// Roster extracts the roster from a portal page. A nil roster with a nil
// error means no roster table is present — a valid empty result, not a
// failure. period is the start of the week the page displays; it supplies
// the calendar year the portal omits from its day labels. loc is the
// timezone the portal's times are read in.
func Roster(doc *goquery.Document, period time.Time, loc *time.Location) (*model.Roster, error) {
	table := FindRosterTable(doc)
	if table == nil {
		return nil, nil
	}

	shifts, err := ParseRosterTable(table, period, loc)
	if err != nil {
		return nil, err
	}

	return &model.Roster{Shifts: shifts}, nil
}

// ParseRosterTable converts the roster grid into typed shifts. The first
// row must be a header row of <th> column names; each following row is one
// shift with one <td> per column, its effective text nested in a <span>.
// A structurally broken table is a contract error; callers are expected to
// have checked table existence via FindRosterTable first.
func ParseRosterTable(table *goquery.Selection, period time.Time, loc *time.Location) ([]model.Shift, error) {
	rows := table.Find("tr")
	if rows.Length() == 0 {
		return nil, fmt.Errorf("roster table has no rows")
	}

	var headings []string
	rows.First().Find("th").Each(func(_ int, th *goquery.Selection) {
		headings = append(headings, strings.TrimSpace(th.Text()))
	})
	if len(headings) == 0 {
		return nil, fmt.Errorf("roster table header row has no columns")
	}

	shifts := make([]model.Shift, 0, rows.Length()-1)
	var rowErr error
	rows.Slice(1, rows.Length()).EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < len(headings) {
			rowErr = fmt.Errorf("roster row %d has %d cells, want %d", i+1, cells.Length(), len(headings))
			return false
		}

		// Cell text lives in an inline span; cells without one are
		// empty placeholders and stay absent.
		record := make(map[string]*string, len(headings))
		cells.Each(func(j int, td *goquery.Selection) {
			if j >= len(headings) {
				return
			}
			span := td.Find("span").First()
			if span.Length() == 0 {
				record[headings[j]] = nil
				return
			}
			text := span.Text()
			record[headings[j]] = &text
		})

		shift, err := buildShift(record, period, loc)
		if err != nil {
			rowErr = fmt.Errorf("roster row %d: %w", i+1, err)
			return false
		}
		shifts = append(shifts, shift)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	return shifts, nil
}

// buildShift resolves a raw string-keyed record into a Shift, combining the
// day label with the period's year and the bare start/end times, and
// dropping the redundant Date and Roster columns from the output.
func buildShift(record map[string]*string, period time.Time, loc *time.Location) (model.Shift, error) {
	day := record[colDate]
	startStr := record[colStartTime]
	endStr := record[colEndTime]
	if day == nil || startStr == nil || endStr == nil {
		return model.Shift{}, fmt.Errorf("missing date or time cells")
	}

	start, err := resolveShiftTime(*day, period, *startStr, loc)
	if err != nil {
		return model.Shift{}, err
	}
	end, err := resolveShiftTime(*day, period, *endStr, loc)
	if err != nil {
		return model.Shift{}, err
	}

	shift := model.Shift{
		Start:   start,
		End:     end,
		Columns: map[string]string{},
	}
	if role := record[colRole]; role != nil {
		shift.Role = *role
	}
	for name, value := range record {
		switch name {
		case colRoster, colDate, colStartTime, colEndTime, colRole:
			continue
		}
		if value != nil {
			shift.Columns[name] = *value
		}
	}

	return shift, nil
}

// resolveShiftTime combines a portal day label ("Mon, Jan 06"), the year of
// the displayed period and a bare time of day ("08:00") into a full
// timestamp in loc. A period can straddle New Year; January rows under a
// December period start belong to the following year.
func resolveShiftTime(dayLabel string, period time.Time, clock string, loc *time.Location) (time.Time, error) {
	stamp := fmt.Sprintf("%s %d, %s", dayLabel, period.Year(), clock)
	t, err := time.ParseInLocation(shiftTimeLayout, stamp, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse shift time %q: %w", stamp, err)
	}
	if t.Month() == time.January && period.Month() == time.December {
		t = t.AddDate(1, 0, 0)
	}
	return t, nil
}

// PeriodStart reads the start date of the roster period the page currently
// displays, at midnight in loc. Both period date labels must be present;
// their absence means the portal returned an unexpected page shape.
func PeriodStart(doc *goquery.Document, loc *time.Location) (time.Time, error) {
	start := doc.Find("span#" + periodStartSpanID)
	end := doc.Find("span#" + periodEndSpanID)
	if start.Length() == 0 || end.Length() == 0 {
		return time.Time{}, fmt.Errorf("period date labels not found on page")
	}

	raw := strings.TrimSpace(start.Text())
	t, err := time.ParseInLocation(periodDateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse period start date %q: %w", raw, err)
	}
	return t, nil
}
