package core

import (
	"fmt"
	"time"
)

// ActionKind enumerates the closed set of user actions the processor accepts.
// New kinds are added here and in the processor's switch, never via
// open-ended subtyping.
type ActionKind string

const (
	ActionHabitCompleted  ActionKind = "habit_completed"
	ActionTaskCompleted   ActionKind = "task_completed"
	ActionGoalAchieved    ActionKind = "goal_achieved"
	ActionChallengeJoined ActionKind = "challenge_joined"
	ActionDailyLogin      ActionKind = "daily_login"
	ActionPerfectDay      ActionKind = "perfect_day"
	ActionComeback        ActionKind = "comeback"
	ActionStreakMilestone ActionKind = "streak_milestone"
)

// UserAction is the tagged input to the action processor. Ref carries the
// habit/task/goal/challenge reference for the kinds that need one;
// StreakLength is set only for streak milestones. The processor never owns
// or mutates the referenced entity.
type UserAction struct {
	Kind         ActionKind `json:"kind"`
	UserID       UserID     `json:"user_id"`
	Ref          string     `json:"ref,omitempty"`
	StreakLength int        `json:"streak_length,omitempty"`
	// Timestamp defaults to the processing time when zero.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Validate checks the kind and its required payload.
func (a UserAction) Validate() error {
	if _, err := NormalizeUserID(a.UserID); err != nil {
		return fmt.Errorf("action user: %w", err)
	}
	switch a.Kind {
	case ActionHabitCompleted, ActionTaskCompleted, ActionGoalAchieved, ActionChallengeJoined:
		if a.Ref == "" {
			return fmt.Errorf("action %s requires a ref: %w", a.Kind, ErrInvalidParameters)
		}
	case ActionStreakMilestone:
		if a.StreakLength <= 0 {
			return fmt.Errorf("action %s requires a positive streak length: %w", a.Kind, ErrInvalidParameters)
		}
	case ActionDailyLogin, ActionPerfectDay, ActionComeback:
	default:
		return fmt.Errorf("unknown action kind %q: %w", a.Kind, ErrInvalidParameters)
	}
	return nil
}

// StreakMilestones lists the streak lengths that pay a milestone bonus, in
// ascending order.
var StreakMilestones = []int{7, 14, 21, 30, 60, 90, 180, 365}

// IsStreakMilestone reports whether streak is exactly a milestone value.
func IsStreakMilestone(streak int) bool {
	for _, m := range StreakMilestones {
		if streak == m {
			return true
		}
	}
	return false
}

// MilestoneBonus returns the experience bonus for hitting a streak milestone.
func MilestoneBonus(streak int) int64 {
	return int64(streak) * 10
}
