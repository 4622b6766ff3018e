package processor

import (
	"context"
	"fmt"

	"progresskit/core"
)

// Scheduled maintenance entry points. An external scheduler invokes these;
// the processor never self-triggers.

// reminderCadenceDays keeps motivational reminders low-frequency: one fires
// only on every 3rd day of the year.
const reminderCadenceDays = 3

// DailyUpdate re-checks perfect-day for today, refreshes the record, re-runs
// achievement checks, evaluates streak/comeback/challenge events, and sends
// the occasional motivational reminder.
func (p *Processor) DailyUpdate(ctx context.Context, user core.UserID) error {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidParameters, err)
	}
	now := p.now()

	habits, err := p.habits.ActiveHabits(ctx, user)
	if err != nil {
		return fmt.Errorf("daily update: %w", err)
	}

	if isPerfectDay(habits, now) {
		if _, err := p.ProcessAction(ctx, core.UserAction{
			Kind: core.ActionPerfectDay, UserID: user, Timestamp: now,
		}); err != nil {
			return fmt.Errorf("daily perfect-day: %w", err)
		}
	}

	if _, err := p.engine.GetOrCreate(ctx, user); err != nil {
		return fmt.Errorf("daily record refresh: %w", err)
	}
	if err := p.achievements.CheckAchievements(ctx, user); err != nil {
		return fmt.Errorf("daily achievements: %w", err)
	}

	p.awardStreakMilestones(ctx, user)
	if isComeback(habits, now) {
		if _, err := p.ProcessAction(ctx, core.UserAction{
			Kind: core.ActionComeback, UserID: user, Timestamp: now,
		}); err != nil {
			return fmt.Errorf("daily comeback: %w", err)
		}
	}
	if err := p.challenges.CheckCompletion(ctx, user); err != nil {
		return fmt.Errorf("daily challenges: %w", err)
	}

	if now.YearDay()%reminderCadenceDays == 0 {
		p.notify(ctx, user, core.NotifyReminder, "keep your momentum going today")
	}
	return nil
}

// WeeklyUpdate asks the challenge collaborator for a fresh weekly challenge
// and sends the weekly encouragement.
func (p *Processor) WeeklyUpdate(ctx context.Context, user core.UserID) error {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidParameters, err)
	}
	if err := p.challenges.CreateWeeklyChallenge(ctx); err != nil {
		return fmt.Errorf("weekly challenge: %w", err)
	}
	p.notify(ctx, user, core.NotifyWeekly, "a new weekly challenge is waiting")
	return nil
}

// MonthlyUpdate requests a seasonal challenge and, when the user is eligible,
// sends the prestige-available notification once per prestige tier.
func (p *Processor) MonthlyUpdate(ctx context.Context, user core.UserID) error {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidParameters, err)
	}
	if err := p.challenges.CreateSeasonalChallenge(ctx); err != nil {
		return fmt.Errorf("seasonal challenge: %w", err)
	}

	eligible, err := p.engine.CheckPrestigeEligibility(ctx, user)
	if err != nil {
		return fmt.Errorf("prestige check: %w", err)
	}
	if !eligible {
		return nil
	}
	rec, err := p.engine.GetOrCreate(ctx, user)
	if err != nil {
		return err
	}
	key := prestigeKey{user: user, prestige: rec.Prestige}
	p.mu.Lock()
	_, seen := p.prestigeNotified[key]
	if !seen {
		p.prestigeNotified[key] = struct{}{}
	}
	p.mu.Unlock()
	if !seen {
		p.notify(ctx, user, core.NotifyPrestigeAvailable, "prestige is available, reset for a permanent mark of mastery")
	}
	return nil
}
