package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserID uniquely identifies a user in the progression domain.
type UserID string

// ProgressionRecord is the persisted per-user progression state. It is owned
// by the progression engine and mutated only through its operations.
type ProgressionRecord struct {
	UserID    UserID    `json:"user_id" db:"user_id"`
	Level     int       `json:"level" db:"level"`
	XP        int64     `json:"xp" db:"xp"`
	TotalXP   int64     `json:"total_xp" db:"total_xp"`
	XPToNext  int64     `json:"xp_to_next" db:"xp_to_next"`
	Prestige  int       `json:"prestige" db:"prestige"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewProgressionRecord returns a fresh level-1 record for the given user.
func NewProgressionRecord(user UserID) ProgressionRecord {
	now := time.Now().UTC()
	return ProgressionRecord{
		UserID:    user,
		Level:     1,
		XPToNext:  RequiredXP(2),
		Title:     TitleFor(1, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LevelHistoryEntry is an append-only audit record, written once per level-up
// and per prestige transition. Only RewardsClaimed is ever mutated afterwards.
type LevelHistoryEntry struct {
	ID             string    `json:"id" db:"id"`
	UserID         UserID    `json:"user_id" db:"user_id"`
	Level          int       `json:"level" db:"level"`
	XPGained       int64     `json:"xp_gained" db:"xp_gained"`
	AchievedAt     time.Time `json:"achieved_at" db:"achieved_at"`
	RewardsClaimed bool      `json:"rewards_claimed" db:"rewards_claimed"`
}

// NewLevelHistoryEntry records that user reached level via a delta of xpGained.
func NewLevelHistoryEntry(user UserID, level int, xpGained int64, at time.Time) LevelHistoryEntry {
	return LevelHistoryEntry{
		ID:         uuid.NewString(),
		UserID:     user,
		Level:      level,
		XPGained:   xpGained,
		AchievedAt: at,
	}
}

// ActionContext carries the situational flags derived for a single incoming
// action. It is constructed fresh per event and never persisted.
type ActionContext struct {
	UserID          UserID    `json:"user_id"`
	Timestamp       time.Time `json:"timestamp"`
	EarlyCompletion bool      `json:"early_completion"`
	Weekend         bool      `json:"weekend"`
	PerfectDay      bool      `json:"perfect_day"`
	Comeback        bool      `json:"comeback"`
	// DifficultDay is reserved for a future difficulty signal; always false.
	DifficultDay bool `json:"difficult_day"`
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", fmt.Errorf("empty user id: %w", ErrInvalidParameters)
	}
	return UserID(strings.ToLower(s)), nil
}
