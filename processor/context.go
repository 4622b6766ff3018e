package processor

import (
	"context"
	"time"

	"progresskit/core"
)

// earlyCutoffHour: completions before this local hour count as early.
const earlyCutoffHour = 10

// buildContext derives the situational flags for one incoming action.
func (p *Processor) buildContext(ctx context.Context, user core.UserID, at time.Time) (core.ActionContext, error) {
	habits, err := p.habits.ActiveHabits(ctx, user)
	if err != nil {
		return core.ActionContext{}, err
	}
	wd := at.Weekday()
	return core.ActionContext{
		UserID:          user,
		Timestamp:       at,
		EarlyCompletion: at.Hour() < earlyCutoffHour,
		Weekend:         wd == time.Saturday || wd == time.Sunday,
		PerfectDay:      isPerfectDay(habits, at),
		Comeback:        isComeback(habits, at),
	}, nil
}

// isPerfectDay: the user has at least one active habit and every active habit
// has a completion within the calendar day of date.
func isPerfectDay(habits []Habit, date time.Time) bool {
	active := 0
	for _, h := range habits {
		if !h.Active {
			continue
		}
		active++
		if !h.CompletedOn(date) {
			return false
		}
	}
	return active > 0
}

// isComeback: no habit has a completion dated exactly one calendar day before
// now.
func isComeback(habits []Habit, now time.Time) bool {
	yesterday := now.AddDate(0, 0, -1)
	for _, h := range habits {
		if h.CompletedOn(yesterday) {
			return false
		}
	}
	return true
}
