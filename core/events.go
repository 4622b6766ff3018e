package core

import "time"

// EventType enumerates progression domain events.
type EventType string

const (
	EventXPAwarded     EventType = "xp_awarded"
	EventLevelUp       EventType = "level_up"
	EventPrestige      EventType = "prestige_reached"
	EventMilestone     EventType = "streak_milestone"
	EventRewardClaimed EventType = "reward_claimed"
	EventNotification  EventType = "notification"
)

// NotificationKind names the outbound notification categories dispatched
// after the transactional core completes.
type NotificationKind string

const (
	NotifyLevelUp           NotificationKind = "level_up"
	NotifyStreak            NotificationKind = "streak"
	NotifyPerfectDay        NotificationKind = "perfect_day"
	NotifyComeback          NotificationKind = "comeback"
	NotifyPrestigeAvailable NotificationKind = "prestige_available"
	NotifyReminder          NotificationKind = "reminder"
	NotifyWeekly            NotificationKind = "weekly_encouragement"
)

// Event represents an immutable progression domain event.
type Event struct {
	Type         EventType        `json:"type"`
	Time         time.Time        `json:"time"`
	UserID       UserID           `json:"user_id"`
	Action       ActionKind       `json:"action,omitempty"`
	Amount       int64            `json:"amount,omitempty"`
	Total        int64            `json:"total,omitempty"`
	Level        int              `json:"level,omitempty"`
	Prestige     int              `json:"prestige,omitempty"`
	Streak       int              `json:"streak,omitempty"`
	Ref          string           `json:"ref,omitempty"`
	Notification NotificationKind `json:"notification,omitempty"`
	Message      string           `json:"message,omitempty"`
}

func NewXPAwarded(user UserID, action ActionKind, amount, total int64) Event {
	return Event{Type: EventXPAwarded, Time: time.Now().UTC(), UserID: user, Action: action, Amount: amount, Total: total}
}

func NewLevelUp(user UserID, level int, xpGained int64) Event {
	return Event{Type: EventLevelUp, Time: time.Now().UTC(), UserID: user, Level: level, Amount: xpGained}
}

func NewPrestigeReached(user UserID, prestige int, bonus int64) Event {
	return Event{Type: EventPrestige, Time: time.Now().UTC(), UserID: user, Prestige: prestige, Amount: bonus, Level: 1}
}

func NewMilestoneReached(user UserID, ref string, streak int, bonus int64) Event {
	return Event{Type: EventMilestone, Time: time.Now().UTC(), UserID: user, Ref: ref, Streak: streak, Amount: bonus}
}

func NewRewardClaimed(user UserID, level int) Event {
	return Event{Type: EventRewardClaimed, Time: time.Now().UTC(), UserID: user, Level: level}
}

func NewNotification(user UserID, kind NotificationKind, message string) Event {
	return Event{Type: EventNotification, Time: time.Now().UTC(), UserID: user, Notification: kind, Message: message}
}
