package processor

import (
	"context"
	"time"

	"progresskit/core"
)

// Scorer turns an action and its context into a point value. The processor
// treats it as an opaque oracle: point formulas live entirely behind this
// interface.
type Scorer interface {
	CalculatePoints(ctx context.Context, kind core.ActionKind, actx core.ActionContext) (int64, error)
	PointsHistory(ctx context.Context, user core.UserID, limit int) ([]PointsEntry, error)
}

// PointsEntry is one awarded-points line in a user's scoring history.
type PointsEntry struct {
	UserID core.UserID     `json:"user_id"`
	Action core.ActionKind `json:"action"`
	Points int64           `json:"points"`
	At     time.Time       `json:"at"`
}

// AchievementService is the external achievement collaborator.
type AchievementService interface {
	CheckAchievements(ctx context.Context, user core.UserID) error
	Unlocked(ctx context.Context, user core.UserID) ([]string, error)
	Available(ctx context.Context, user core.UserID) ([]string, error)
}

// ChallengeService is the external challenge collaborator.
type ChallengeService interface {
	CreateDailyChallenge(ctx context.Context) error
	CreateWeeklyChallenge(ctx context.Context) error
	CreateSeasonalChallenge(ctx context.Context) error
	JoinChallenge(ctx context.Context, user core.UserID, ref string) error
	ActiveChallenges(ctx context.Context, user core.UserID) ([]string, error)
	CheckCompletion(ctx context.Context, user core.UserID) error
}

// Habit is the read-only habit view the processor needs for context
// derivation: activity, streak counter, and completion timestamps.
type Habit struct {
	ID            string
	Name          string
	Active        bool
	CurrentStreak int
	Completions   []time.Time
}

// CompletedOn reports whether the habit has a completion within the calendar
// day containing t (local to t's location).
func (h Habit) CompletedOn(t time.Time) bool {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 0, 1)
	for _, c := range h.Completions {
		if !c.Before(start) && c.Before(end) {
			return true
		}
	}
	return false
}

// HabitSource supplies the user's habits. Read-only from this core's
// perspective.
type HabitSource interface {
	ActiveHabits(ctx context.Context, user core.UserID) ([]Habit, error)
}
