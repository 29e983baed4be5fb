// Package navigator drives a stateful portal session to a target roster
// week using only the portal's relative next/previous-period affordances.
package navigator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/shift-mirror/pkg/core/model"
)

// DefaultMaxReloads is the default navigation step budget.
const DefaultMaxReloads = 10

// Stepper is the minimal view of a portal session the navigator needs.
// Advance and Retreat perform the portal's next/previous-period action,
// refetch the page internally and return the newly displayed period start,
// so callers never observe a stale period.
type Stepper interface {
	Period(ctx context.Context) (time.Time, error)
	Advance(ctx context.Context) (time.Time, error)
	Retreat(ctx context.Context) (time.Time, error)
}

// BudgetError reports that the target period was not reached within the
// configured number of navigation steps.
type BudgetError struct {
	Budget int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("could not reach desired period within %d reloads", e.Budget)
}

// GoToWeek steps the session until it displays the week containing target,
// and returns the period start the session finally reported. The walk is
// greedy, one direction per iteration: advance while behind the target,
// retreat while ahead. It assumes the portal moves exactly one week per
// step; a portal that snaps to a non-adjacent period can make the walk
// oscillate, in which case only the budget terminates it.
//
// maxReloads values below 1 fall back to DefaultMaxReloads.
func GoToWeek(ctx context.Context, session Stepper, logger *zap.Logger, target time.Time, maxReloads int) (time.Time, error) {
	if maxReloads < 1 {
		maxReloads = DefaultMaxReloads
	}
	target = model.StartOfWeek(target)

	current, err := session.Period(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read displayed period: %w", err)
	}

	logger.Debug("Starting period navigation",
		zap.Time("displayed", current),
		zap.Time("target", target),
		zap.Int("max_reloads", maxReloads))

	steps := 0
	for !sameDay(current, target) {
		if steps >= maxReloads {
			return time.Time{}, &BudgetError{Budget: maxReloads}
		}

		if current.Before(target) {
			current, err = session.Advance(ctx)
		} else {
			current, err = session.Retreat(ctx)
		}
		if err != nil {
			return time.Time{}, fmt.Errorf("navigation step failed: %w", err)
		}

		steps++
		logger.Debug("Period step taken",
			zap.Int("step", steps),
			zap.Time("displayed", current))
	}

	return current, nil
}

// sameDay compares calendar days, ignoring time of day. The portal reports
// period starts at midnight but callers may hand in un-normalized clocks.
func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
