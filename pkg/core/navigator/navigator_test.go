package navigator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSession is an in-memory portal whose displayed period moves one week
// per step, like the real thing.
type fakeSession struct {
	period  time.Time
	steps   []string
	stepErr error
	// snapTo, when set, makes every step land on this period regardless of
	// direction, simulating a portal that snaps back to "today".
	snapTo *time.Time
}

func (f *fakeSession) Period(ctx context.Context) (time.Time, error) {
	return f.period, nil
}

func (f *fakeSession) Advance(ctx context.Context) (time.Time, error) {
	return f.step(ctx, "advance", 7)
}

func (f *fakeSession) Retreat(ctx context.Context) (time.Time, error) {
	return f.step(ctx, "retreat", -7)
}

func (f *fakeSession) step(_ context.Context, name string, days int) (time.Time, error) {
	if f.stepErr != nil {
		return time.Time{}, f.stepErr
	}
	f.steps = append(f.steps, name)
	if f.snapTo != nil {
		f.period = *f.snapTo
	} else {
		f.period = f.period.AddDate(0, 0, days)
	}
	return f.period, nil
}

func monday(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestGoToWeek_AlreadyThere(t *testing.T) {
	session := &fakeSession{period: monday(2025, 1, 6)}

	got, err := GoToWeek(context.Background(), session, zap.NewNop(), monday(2025, 1, 6), 10)
	require.NoError(t, err)
	assert.Equal(t, monday(2025, 1, 6), got)
	assert.Empty(t, session.steps)
}

func TestGoToWeek_AdvancesForward(t *testing.T) {
	session := &fakeSession{period: monday(2025, 1, 6)}

	got, err := GoToWeek(context.Background(), session, zap.NewNop(), monday(2025, 1, 27), 10)
	require.NoError(t, err)
	assert.Equal(t, monday(2025, 1, 27), got)
	assert.Equal(t, []string{"advance", "advance", "advance"}, session.steps)
}

func TestGoToWeek_RetreatsBackward(t *testing.T) {
	session := &fakeSession{period: monday(2025, 1, 27)}

	got, err := GoToWeek(context.Background(), session, zap.NewNop(), monday(2025, 1, 13), 10)
	require.NoError(t, err)
	assert.Equal(t, monday(2025, 1, 13), got)
	assert.Equal(t, []string{"retreat", "retreat"}, session.steps)
}

func TestGoToWeek_NormalizesTargetToWeekStart(t *testing.T) {
	session := &fakeSession{period: monday(2025, 1, 6)}

	// Thursday Jan 16 lives in the week starting Monday Jan 13.
	thursday := time.Date(2025, 1, 16, 15, 30, 0, 0, time.UTC)
	got, err := GoToWeek(context.Background(), session, zap.NewNop(), thursday, 10)
	require.NoError(t, err)
	assert.Equal(t, monday(2025, 1, 13), got)
	assert.Equal(t, []string{"advance"}, session.steps)
}

func TestGoToWeek_BudgetExceeded(t *testing.T) {
	session := &fakeSession{period: monday(2025, 1, 6)}

	// Target is 5 weeks out but the budget only allows 3 steps.
	_, err := GoToWeek(context.Background(), session, zap.NewNop(), monday(2025, 2, 10), 3)
	require.Error(t, err)

	var budgetErr *BudgetError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, 3, budgetErr.Budget)
	assert.Len(t, session.steps, 3)
}

func TestGoToWeek_SnappingPortalTerminatesViaBudget(t *testing.T) {
	today := monday(2025, 1, 6)
	session := &fakeSession{period: today, snapTo: &today}

	_, err := GoToWeek(context.Background(), session, zap.NewNop(), monday(2025, 2, 3), 4)

	var budgetErr *BudgetError
	require.ErrorAs(t, err, &budgetErr)
	// Every step moved toward the target; the loop never detects the
	// oscillation itself, the budget does.
	assert.Equal(t, []string{"advance", "advance", "advance", "advance"}, session.steps)
}

func TestGoToWeek_StepErrorPropagates(t *testing.T) {
	stepErr := errors.New("postback failed")
	session := &fakeSession{period: monday(2025, 1, 6), stepErr: stepErr}

	_, err := GoToWeek(context.Background(), session, zap.NewNop(), monday(2025, 1, 13), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, stepErr)
}

func TestGoToWeek_ZeroBudgetUsesDefault(t *testing.T) {
	session := &fakeSession{period: monday(2025, 1, 6)}

	got, err := GoToWeek(context.Background(), session, zap.NewNop(), monday(2025, 3, 10), 0)
	require.NoError(t, err)
	assert.Equal(t, monday(2025, 3, 10), got)
	assert.Len(t, session.steps, 9)
}
