package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"

	"github.com/jakechorley/shift-mirror/internal/config"
	"github.com/jakechorley/shift-mirror/pkg/core/model"
)

// syncHorizon bounds how far ahead an unbounded sync rule may reach.
const syncHorizon = 365 * 24 * time.Hour

// EventStore is the slice of the calendar client the sync service uses.
type EventStore interface {
	ListOverlapping(ctx context.Context, calendarID string, start, end time.Time) ([]*calendar.Event, error)
	Insert(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	Delete(ctx context.Context, calendarID, eventID string) error
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	WeeksSynced int
	EmptyWeeks  int
	Created     int
	Deleted     int
}

// SyncCalendar mirrors the roster onto the configured calendar for every
// week named by the config's sync rule. When clearWindow is enabled,
// existing events overlapping a new shift are deleted before it is created.
// Shift times are read in the configured timezone and handed to the
// calendar service in UTC.
func SyncCalendar(ctx context.Context, session RosterSession, store EventStore, cfg *config.Config, logger *zap.Logger) (*SyncResult, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	weeks, err := syncWeeks(cfg.SyncRule, time.Now().In(loc))
	if err != nil {
		return nil, err
	}
	logger.Info("Starting calendar sync",
		zap.String("calendar_id", cfg.CalendarID),
		zap.Int("weeks", len(weeks)))

	result := &SyncResult{}
	for _, week := range weeks {
		roster, err := GetRosterByDate(ctx, session, logger, loc, week, cfg.MaxReloads)
		if err != nil {
			return result, err
		}

		result.WeeksSynced++
		if roster == nil {
			result.EmptyWeeks++
			continue
		}

		for _, shift := range roster.Shifts {
			created, deleted, err := mirrorShift(ctx, store, cfg, logger, shift)
			if err != nil {
				return result, err
			}
			result.Created += created
			result.Deleted += deleted
		}
	}

	logger.Info("Calendar sync complete",
		zap.Int("weeks", result.WeeksSynced),
		zap.Int("empty_weeks", result.EmptyWeeks),
		zap.Int("created", result.Created),
		zap.Int("deleted", result.Deleted))
	return result, nil
}

// syncWeeks expands the sync RRULE, anchored at the start of the current
// week, into the distinct week starts to mirror.
func syncWeeks(rule string, now time.Time) ([]time.Time, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("invalid syncRule: %w", err)
	}

	anchor := model.StartOfWeek(now)
	r.DTStart(anchor)

	occurrences := r.Between(anchor.Add(-time.Second), now.Add(syncHorizon), true)

	seen := map[time.Time]bool{}
	var weeks []time.Time
	for _, occ := range occurrences {
		week := model.StartOfWeek(occ)
		if !seen[week] {
			seen[week] = true
			weeks = append(weeks, week)
		}
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	if len(weeks) == 0 {
		return nil, fmt.Errorf("syncRule %q yields no weeks to sync", rule)
	}
	return weeks, nil
}

// mirrorShift creates one calendar event for a shift, clearing the window
// first when configured.
func mirrorShift(ctx context.Context, store EventStore, cfg *config.Config, logger *zap.Logger, shift model.Shift) (created, deleted int, err error) {
	start := shift.Start.UTC()
	end := shift.End.UTC()

	if cfg.ClearWindowEnabled() {
		existing, err := store.ListOverlapping(ctx, cfg.CalendarID, start, end)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to list overlapping events: %w", err)
		}
		for _, ev := range existing {
			if err := store.Delete(ctx, cfg.CalendarID, ev.Id); err != nil {
				return 0, deleted, err
			}
			deleted++
			logger.Debug("Deleted overlapping event",
				zap.String("event_id", ev.Id),
				zap.String("summary", ev.Summary))
		}
	}

	event := &calendar.Event{
		Summary:     eventSummary(cfg, shift),
		Location:    cfg.EventLocation,
		Description: shift.Role,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: "UTC",
		},
	}

	inserted, err := store.Insert(ctx, cfg.CalendarID, event)
	if err != nil {
		return 0, deleted, err
	}

	logger.Debug("Created shift event",
		zap.String("event_id", inserted.Id),
		zap.Time("start", shift.Start),
		zap.Time("end", shift.End))
	return 1, deleted, nil
}

// eventSummary picks the calendar event title: the configured override, or
// one derived from the shift's role.
func eventSummary(cfg *config.Config, shift model.Shift) string {
	if cfg.EventSummary != "" {
		return cfg.EventSummary
	}
	if shift.Role != "" {
		return "Work: " + shift.Role
	}
	return "Work shift"
}
