package processor

import (
	"context"

	"progresskit/core"
)

// No-op collaborator implementations. They keep the processor usable when a
// deployment has not wired real achievement/challenge/habit backends yet.

// NopAchievements satisfies AchievementService and does nothing.
type NopAchievements struct{}

func (NopAchievements) CheckAchievements(context.Context, core.UserID) error { return nil }
func (NopAchievements) Unlocked(context.Context, core.UserID) ([]string, error) {
	return nil, nil
}
func (NopAchievements) Available(context.Context, core.UserID) ([]string, error) {
	return nil, nil
}

// NopChallenges satisfies ChallengeService and does nothing.
type NopChallenges struct{}

func (NopChallenges) CreateDailyChallenge(context.Context) error    { return nil }
func (NopChallenges) CreateWeeklyChallenge(context.Context) error   { return nil }
func (NopChallenges) CreateSeasonalChallenge(context.Context) error { return nil }
func (NopChallenges) JoinChallenge(context.Context, core.UserID, string) error {
	return nil
}
func (NopChallenges) ActiveChallenges(context.Context, core.UserID) ([]string, error) {
	return nil, nil
}
func (NopChallenges) CheckCompletion(context.Context, core.UserID) error { return nil }

// EmptyHabits satisfies HabitSource with no habits.
type EmptyHabits struct{}

func (EmptyHabits) ActiveHabits(context.Context, core.UserID) ([]Habit, error) {
	return nil, nil
}

var (
	_ AchievementService = NopAchievements{}
	_ ChallengeService   = NopChallenges{}
	_ HabitSource        = EmptyHabits{}
)
