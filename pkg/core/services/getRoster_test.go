package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-mirror/pkg/core/model"
	"github.com/jakechorley/shift-mirror/pkg/core/navigator"
)

type shiftRow struct {
	date  string
	start string
	end   string
	role  string
}

// rosterPageHTML renders a portal roster page for the given week. A nil
// rows slice renders a page with no roster table, the portal's "nothing
// rostered" shape.
func rosterPageHTML(week time.Time, rows []shiftRow) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Employee Home</title></head><body>`)
	fmt.Fprintf(&b, `<span id="_content_ctl09__filtersPersonal__lblStartDate">%s</span>`, week.Format("02 Jan 2006"))
	fmt.Fprintf(&b, `<span id="_content_ctl09__filtersPersonal__lblEndDate">%s</span>`, week.AddDate(0, 0, 6).Format("02 Jan 2006"))

	if rows != nil {
		b.WriteString(`<table id="ctl00_content_ctl09_gridPersonalRoster">`)
		b.WriteString(`<tr><th>Roster</th><th>Date</th><th>Start Time</th><th>End Time</th><th>Role</th></tr>`)
		for _, row := range rows {
			fmt.Fprintf(&b, `<tr><td><span>R1</span></td><td><span>%s</span></td><td><span>%s</span></td><td><span>%s</span></td><td><span>%s</span></td></tr>`,
				row.date, row.start, row.end, row.role)
		}
		b.WriteString(`</table>`)
	}

	b.WriteString(`</body></html>`)
	return b.String()
}

// fakePortalSession is an in-memory portal: one current period, moved a
// week at a time, serving a fixed page per week.
type fakePortalSession struct {
	period time.Time
	pages  map[time.Time][]shiftRow
}

func (f *fakePortalSession) Period(ctx context.Context) (time.Time, error) {
	return f.period, nil
}

func (f *fakePortalSession) Advance(ctx context.Context) (time.Time, error) {
	f.period = f.period.AddDate(0, 0, 7)
	return f.period, nil
}

func (f *fakePortalSession) Retreat(ctx context.Context) (time.Time, error) {
	f.period = f.period.AddDate(0, 0, -7)
	return f.period, nil
}

func (f *fakePortalSession) Refresh(ctx context.Context) (*goquery.Document, error) {
	rows, ok := f.pages[f.period]
	if !ok {
		rows = nil
	}
	return goquery.NewDocumentFromReader(strings.NewReader(rosterPageHTML(f.period, rows)))
}

func utcMonday(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestGetRosterByDate_FetchesTargetWeek(t *testing.T) {
	target := utcMonday(2025, 1, 13)
	session := &fakePortalSession{
		period: utcMonday(2025, 1, 6),
		pages: map[time.Time][]shiftRow{
			target: {{date: "Tue, Jan 14", start: "08:00", end: "16:00", role: "Cashier"}},
		},
	}

	roster, err := GetRosterByDate(context.Background(), session, zap.NewNop(), time.UTC, target, 10)
	require.NoError(t, err)
	require.NotNil(t, roster)

	assert.Equal(t, target, roster.PeriodStart)
	require.Len(t, roster.Shifts, 1)
	assert.Equal(t, time.Date(2025, 1, 14, 8, 0, 0, 0, time.UTC), roster.Shifts[0].Start)
	assert.Equal(t, time.Date(2025, 1, 14, 16, 0, 0, 0, time.UTC), roster.Shifts[0].End)
	assert.Equal(t, "Cashier", roster.Shifts[0].Role)
}

func TestGetRosterByDate_NormalizesDateWithinWeek(t *testing.T) {
	week := utcMonday(2025, 1, 13)
	session := &fakePortalSession{
		period: utcMonday(2025, 1, 6),
		pages: map[time.Time][]shiftRow{
			week: {{date: "Mon, Jan 13", start: "10:00", end: "18:00", role: "Stock"}},
		},
	}

	// A Saturday inside the week resolves to the same period.
	saturday := time.Date(2025, 1, 18, 13, 45, 0, 0, time.UTC)
	roster, err := GetRosterByDate(context.Background(), session, zap.NewNop(), time.UTC, saturday, 10)
	require.NoError(t, err)
	require.NotNil(t, roster)
	assert.Equal(t, week, roster.PeriodStart)
}

func TestGetRosterByDate_NoRosterIsNilNotError(t *testing.T) {
	session := &fakePortalSession{period: utcMonday(2025, 1, 6)}

	roster, err := GetRosterByDate(context.Background(), session, zap.NewNop(), time.UTC, utcMonday(2025, 1, 6), 10)
	require.NoError(t, err)
	assert.Nil(t, roster)
}

func TestGetRosterByDate_BudgetErrorPropagates(t *testing.T) {
	session := &fakePortalSession{period: utcMonday(2025, 1, 6)}

	_, err := GetRosterByDate(context.Background(), session, zap.NewNop(), time.UTC, utcMonday(2025, 6, 2), 2)
	require.Error(t, err)

	var budgetErr *navigator.BudgetError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, 2, budgetErr.Budget)
}

func TestGetRosterByDate_Idempotent(t *testing.T) {
	week := utcMonday(2025, 1, 13)
	session := &fakePortalSession{
		period: utcMonday(2025, 1, 6),
		pages: map[time.Time][]shiftRow{
			week: {
				{date: "Mon, Jan 13", start: "08:00", end: "16:00", role: "Cashier"},
				{date: "Fri, Jan 17", start: "12:00", end: "20:00", role: "Stock"},
			},
		},
	}
	ctx := context.Background()

	first, err := GetRosterByDate(ctx, session, zap.NewNop(), time.UTC, week, 10)
	require.NoError(t, err)
	second, err := GetRosterByDate(ctx, session, zap.NewNop(), time.UTC, week, 10)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGetRoster_ZeroWeeksAheadMatchesToday(t *testing.T) {
	now := time.Now().UTC()
	week := model.StartOfWeek(now)
	session := &fakePortalSession{
		period: week,
		pages: map[time.Time][]shiftRow{
			week: {{date: week.Format("Mon, Jan 02"), start: "09:00", end: "17:00", role: "Cashier"}},
		},
	}
	ctx := context.Background()

	byOffset, err := GetRoster(ctx, session, zap.NewNop(), time.UTC, 0, 10)
	require.NoError(t, err)
	byDate, err := GetRosterByDate(ctx, session, zap.NewNop(), time.UTC, now, 10)
	require.NoError(t, err)

	require.NotNil(t, byOffset)
	require.NotNil(t, byDate)
	assert.Equal(t, byDate, byOffset)
	assert.Equal(t, week, byOffset.PeriodStart)
}

func TestGetRoster_WeeksAheadNavigatesForward(t *testing.T) {
	now := time.Now().UTC()
	week := model.StartOfWeek(now)
	next := week.AddDate(0, 0, 7)
	session := &fakePortalSession{
		period: week,
		pages: map[time.Time][]shiftRow{
			next: {{date: next.Format("Mon, Jan 02"), start: "07:00", end: "15:00", role: "Opener"}},
		},
	}

	roster, err := GetRoster(context.Background(), session, zap.NewNop(), time.UTC, 1, 10)
	require.NoError(t, err)
	require.NotNil(t, roster)
	assert.Equal(t, next, roster.PeriodStart)
	require.Len(t, roster.Shifts, 1)
	assert.Equal(t, "Opener", roster.Shifts[0].Role)
}
