package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"progresskit/core"
)

// ProgressionEngine owns all mutations of progression records: experience
// awards with multi-level-up handling, the prestige cycle, leaderboard reads,
// and level reward claims. Side effects (bonuses, notifications, achievement
// re-evaluation) are the caller's job; this type only persists and publishes.
type ProgressionEngine struct {
	store Store
	bus   *EventBus
	log   *slog.Logger
}

func NewProgressionEngine(store Store, bus *EventBus, log *slog.Logger) *ProgressionEngine {
	if store == nil || bus == nil {
		panic("NewProgressionEngine requires non-nil store and bus")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ProgressionEngine{store: store, bus: bus, log: log}
}

// Bus exposes the engine's event bus for subscribers.
func (e *ProgressionEngine) Bus() *EventBus { return e.bus }

// GetOrCreate returns the user's record, creating a level-1 record on first
// use. Idempotent.
func (e *ProgressionEngine) GetOrCreate(ctx context.Context, user core.UserID) (core.ProgressionRecord, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return core.ProgressionRecord{}, fmt.Errorf("%w: %v", core.ErrInvalidParameters, err)
	}
	return e.store.GetOrCreate(ctx, user)
}

// AddExperience applies a positive experience delta, advancing through as
// many levels as the delta covers. Non-positive amounts are a no-op returning
// false. The record and any new history entries persist all-or-nothing.
func (e *ProgressionEngine) AddExperience(ctx context.Context, user core.UserID, amount int64) (bool, error) {
	if amount <= 0 {
		return false, nil
	}
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return false, fmt.Errorf("%w: %v", core.ErrInvalidParameters, err)
	}

	leveled := false
	rec, err := e.store.Update(ctx, user, func(r *core.ProgressionRecord) ([]core.LevelHistoryEntry, error) {
		// stores may rerun the mutator on contention; only the final
		// attempt's outcome may escape the closure
		leveled = false
		now := time.Now().UTC()
		xp, err := core.AddSafe(r.XP, amount)
		if err != nil {
			return nil, err
		}
		total, err := core.AddSafe(r.TotalXP, amount)
		if err != nil {
			return nil, err
		}
		r.XP, r.TotalXP = xp, total

		var history []core.LevelHistoryEntry
		for r.XP >= r.XPToNext {
			r.XP -= r.XPToNext
			r.Level++
			r.XPToNext = core.RequiredXP(r.Level + 1)
			history = append(history, core.NewLevelHistoryEntry(user, r.Level, amount, now))
			leveled = true
		}
		r.Title = core.TitleFor(r.Level, r.Prestige)
		r.UpdatedAt = now
		return history, nil
	})
	if err != nil {
		return false, err
	}

	e.bus.Publish(ctx, core.NewXPAwarded(user, "", amount, rec.TotalXP))
	if leveled {
		e.bus.Publish(ctx, core.NewLevelUp(user, rec.Level, amount))
	}
	return leveled, nil
}

// GetLevelProgress returns the most recent history entry, or false if the
// user has never leveled up.
func (e *ProgressionEngine) GetLevelProgress(ctx context.Context, user core.UserID) (core.LevelHistoryEntry, bool, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return core.LevelHistoryEntry{}, false, fmt.Errorf("%w: %v", core.ErrInvalidParameters, err)
	}
	return e.store.LatestHistory(ctx, user)
}

// GetTopUsers returns up to limit records ordered by (level desc, total XP desc).
func (e *ProgressionEngine) GetTopUsers(ctx context.Context, limit int) ([]core.ProgressionRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	return e.store.TopRecords(ctx, limit)
}

// GetRank returns the user's 1-based leaderboard rank.
func (e *ProgressionEngine) GetRank(ctx context.Context, user core.UserID) (int, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrInvalidParameters, err)
	}
	return e.store.Rank(ctx, user)
}

// CheckPrestigeEligibility reports whether the user may prestige.
func (e *ProgressionEngine) CheckPrestigeEligibility(ctx context.Context, user core.UserID) (bool, error) {
	rec, ok, err := e.getExisting(ctx, user)
	if err != nil || !ok {
		return false, err
	}
	return rec.Level >= core.PrestigeThreshold, nil
}

var errNotEligible = errors.New("prestige requirements not met")

// PerformPrestige resets the record into the next prestige tier and returns
// the bonus the caller must award as ordinary experience afterwards. The
// bonus is deliberately outside the reset transaction so it cannot re-trigger
// eligibility within the same step. Ineligible users get (false, 0, nil);
// a missing record is an error.
func (e *ProgressionEngine) PerformPrestige(ctx context.Context, user core.UserID) (bool, int64, error) {
	_, ok, err := e.getExisting(ctx, user)
	if err != nil {
		return false, 0, err
	}
	if !ok {
		return false, 0, fmt.Errorf("prestige for unknown user %q: %w", user, core.ErrInvalidParameters)
	}

	user, _ = core.NormalizeUserID(user)
	rec, err := e.store.Update(ctx, user, func(r *core.ProgressionRecord) ([]core.LevelHistoryEntry, error) {
		if r.Level < core.PrestigeThreshold {
			return nil, errNotEligible
		}
		now := time.Now().UTC()
		r.Prestige++
		r.Level = 1
		r.XP = 0
		r.TotalXP = 0
		r.XPToNext = core.RequiredXP(2)
		r.Title = core.TitleFor(1, r.Prestige)
		r.UpdatedAt = now
		return []core.LevelHistoryEntry{core.NewLevelHistoryEntry(user, 1, 0, now)}, nil
	})
	if errors.Is(err, errNotEligible) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	bonus := core.PrestigeBonus(rec.Prestige)
	e.bus.Publish(ctx, core.NewPrestigeReached(user, rec.Prestige, bonus))
	e.log.Info("prestige performed", "user", string(user), "prestige", rec.Prestige, "bonus", bonus)
	return true, bonus, nil
}

// GetLevelRewards returns the stateless reward descriptors for level.
func (e *ProgressionEngine) GetLevelRewards(level int) []core.Reward {
	return core.LevelRewards(level)
}

// ClaimLevelReward flips the claimed flag on the history entry for level.
// Returns false when the user has not reached level or the entry was already
// claimed.
func (e *ProgressionEngine) ClaimLevelReward(ctx context.Context, user core.UserID, level int) (bool, error) {
	rec, ok, err := e.getExisting(ctx, user)
	if err != nil || !ok {
		return false, err
	}
	if level < 1 || rec.Level < level {
		return false, nil
	}
	user, _ = core.NormalizeUserID(user)
	claimed, err := e.store.MarkRewardsClaimed(ctx, user, level)
	if err != nil {
		return false, err
	}
	if claimed {
		e.bus.Publish(ctx, core.NewRewardClaimed(user, level))
	}
	return claimed, nil
}

func (e *ProgressionEngine) getExisting(ctx context.Context, user core.UserID) (core.ProgressionRecord, bool, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return core.ProgressionRecord{}, false, fmt.Errorf("%w: %v", core.ErrInvalidParameters, err)
	}
	return e.store.Get(ctx, user)
}
