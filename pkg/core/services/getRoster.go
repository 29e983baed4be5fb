// Package services contains the application operations the CLI invokes:
// fetching rosters from the portal, mirroring them to a calendar and
// exporting them as ICS.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-mirror/pkg/core/extractor"
	"github.com/jakechorley/shift-mirror/pkg/core/model"
	"github.com/jakechorley/shift-mirror/pkg/core/navigator"
)

// RosterSession is the view of a portal session the roster services need:
// the navigator's stepping primitives plus a page refetch.
type RosterSession interface {
	navigator.Stepper
	Refresh(ctx context.Context) (*goquery.Document, error)
}

// GetRosterByDate fetches the roster for the week containing date. The
// session is driven to that week first, within maxReloads steps, then the
// page is refetched and parsed.
//
// A nil roster with a nil error means the portal has no roster for that
// week. That is a normal outcome, distinct from every error kind.
func GetRosterByDate(ctx context.Context, session RosterSession, logger *zap.Logger, loc *time.Location, date time.Time, maxReloads int) (*model.Roster, error) {
	target := model.StartOfWeek(date)
	logger.Debug("Fetching roster", zap.Time("week", target))

	if _, err := navigator.GoToWeek(ctx, session, logger, target, maxReloads); err != nil {
		return nil, err
	}

	doc, err := session.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refetch roster page: %w", err)
	}

	// The portal omits the year from shift rows; the target week supplies
	// it, since the period labels just confirmed the displayed week.
	roster, err := extractor.Roster(doc, target, loc)
	if err != nil {
		return nil, err
	}
	if roster == nil {
		logger.Info("No roster for week", zap.Time("week", target))
		return nil, nil
	}

	roster.PeriodStart = target
	logger.Info("Roster fetched",
		zap.Time("week", target),
		zap.Int("shifts", len(roster.Shifts)))
	return roster, nil
}

// GetRoster fetches the roster weeksAhead weeks from today: 0 is the
// current week, 1 next week, -1 last week.
func GetRoster(ctx context.Context, session RosterSession, logger *zap.Logger, loc *time.Location, weeksAhead, maxReloads int) (*model.Roster, error) {
	date := time.Now().In(loc).AddDate(0, 0, weeksAhead*7)
	return GetRosterByDate(ctx, session, logger, loc, date, maxReloads)
}
