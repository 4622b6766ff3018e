// Package scoring provides the reference table-driven Scorer. Point values
// are configuration, not contract: deployments may swap in any scorer.
package scoring

import (
	"context"
	"sync"

	"progresskit/core"
	"progresskit/processor"
)

// Config holds base points per action and the context bonuses layered on top.
type Config struct {
	BasePoints   map[core.ActionKind]int64 `json:"base_points"`
	EarlyBonus   int64                     `json:"early_bonus"`
	WeekendBonus int64                     `json:"weekend_bonus"`
	HistorySize  int                       `json:"history_size"`
}

// DefaultConfig returns the reference point table.
func DefaultConfig() Config {
	return Config{
		BasePoints: map[core.ActionKind]int64{
			core.ActionHabitCompleted:  20,
			core.ActionTaskCompleted:   15,
			core.ActionGoalAchieved:    100,
			core.ActionChallengeJoined: 10,
			core.ActionDailyLogin:      5,
			core.ActionPerfectDay:      50,
			core.ActionComeback:        30,
			core.ActionStreakMilestone: 0,
		},
		EarlyBonus:   5,
		WeekendBonus: 5,
		HistorySize:  200,
	}
}

// TableScorer computes points from a static table plus context bonuses and
// keeps a bounded in-memory history per user.
type TableScorer struct {
	cfg Config

	mu      sync.Mutex
	history map[core.UserID][]processor.PointsEntry
}

func NewTableScorer(cfg Config) *TableScorer {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}
	return &TableScorer{cfg: cfg, history: map[core.UserID][]processor.PointsEntry{}}
}

func (s *TableScorer) CalculatePoints(_ context.Context, kind core.ActionKind, actx core.ActionContext) (int64, error) {
	points := s.cfg.BasePoints[kind]
	if actx.EarlyCompletion {
		points += s.cfg.EarlyBonus
	}
	if actx.Weekend {
		points += s.cfg.WeekendBonus
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append(s.history[actx.UserID], processor.PointsEntry{
		UserID: actx.UserID,
		Action: kind,
		Points: points,
		At:     actx.Timestamp,
	})
	if len(entries) > s.cfg.HistorySize {
		entries = entries[len(entries)-s.cfg.HistorySize:]
	}
	s.history[actx.UserID] = entries
	return points, nil
}

// PointsHistory returns up to limit entries, newest first.
func (s *TableScorer) PointsHistory(_ context.Context, user core.UserID, limit int) ([]processor.PointsEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.history[user]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]processor.PointsEntry, 0, limit)
	for i := len(entries) - 1; i >= len(entries)-limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

var _ processor.Scorer = (*TableScorer)(nil)
