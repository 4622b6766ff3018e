package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"progresskit/core"
	"progresskit/engine"
	"progresskit/stats"
)

// Processor orchestrates the action pipeline: context derivation, scoring,
// experience award, dependent evaluation, and outbound notification events.
// All collaborators are injected; nothing is looked up from global state.
type Processor struct {
	engine       *engine.ProgressionEngine
	bus          *engine.EventBus
	scorer       Scorer
	achievements AchievementService
	challenges   ChallengeService
	habits       HabitSource
	stats        *stats.Collector
	log          *slog.Logger
	now          func() time.Time

	mu sync.Mutex
	// milestonesAwarded guards against re-awarding a milestone while a habit's
	// streak stays pinned at the milestone value across repeated checks.
	milestonesAwarded map[milestoneKey]struct{}
	// prestigeNotified makes the monthly prestige-available notification fire
	// once per (user, prestige tier).
	prestigeNotified map[prestigeKey]struct{}
}

type milestoneKey struct {
	user      core.UserID
	habit     string
	milestone int
}

type prestigeKey struct {
	user     core.UserID
	prestige int
}

// Option configures optional Processor behavior.
type Option func(*Processor)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func New(eng *engine.ProgressionEngine, scorer Scorer, achievements AchievementService, challenges ChallengeService, habits HabitSource, opts ...Option) *Processor {
	if eng == nil || scorer == nil || achievements == nil || challenges == nil || habits == nil {
		panic("processor.New requires non-nil engine and collaborators")
	}
	p := &Processor{
		engine:            eng,
		bus:               eng.Bus(),
		scorer:            scorer,
		achievements:      achievements,
		challenges:        challenges,
		habits:            habits,
		log:               slog.Default(),
		now:               func() time.Time { return time.Now() },
		milestonesAwarded: map[milestoneKey]struct{}{},
		prestigeNotified:  map[prestigeKey]struct{}{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Result summarizes one processed action.
type Result struct {
	Context   core.ActionContext     `json:"context"`
	Points    int64                  `json:"points"`
	LeveledUp bool                   `json:"leveled_up"`
	Record    core.ProgressionRecord `json:"record"`
}

// ProcessAction runs the fixed pipeline for one action. A storage failure at
// the experience step aborts the pipeline; already-persisted effects of
// earlier steps stay in place. Notification delivery is best-effort and never
// fails the pipeline.
func (p *Processor) ProcessAction(ctx context.Context, action core.UserAction) (Result, error) {
	if err := action.Validate(); err != nil {
		return Result{}, err
	}
	user, _ := core.NormalizeUserID(action.UserID)
	at := action.Timestamp
	if at.IsZero() {
		at = p.now()
	}

	actx, err := p.buildContext(ctx, user, at)
	if err != nil {
		return Result{}, fmt.Errorf("build context: %w", err)
	}

	points, err := p.scorer.CalculatePoints(ctx, action.Kind, actx)
	if err != nil {
		return Result{}, fmt.Errorf("score action: %w", err)
	}

	leveled, err := p.engine.AddExperience(ctx, user, points)
	if err != nil {
		return Result{}, fmt.Errorf("apply experience: %w", err)
	}

	if err := p.achievements.CheckAchievements(ctx, user); err != nil {
		return Result{}, fmt.Errorf("check achievements: %w", err)
	}

	switch action.Kind {
	case core.ActionHabitCompleted, core.ActionTaskCompleted, core.ActionPerfectDay:
		if err := p.challenges.CheckCompletion(ctx, user); err != nil {
			return Result{}, fmt.Errorf("check challenges: %w", err)
		}
	case core.ActionChallengeJoined:
		if err := p.challenges.JoinChallenge(ctx, user, action.Ref); err != nil {
			return Result{}, fmt.Errorf("join challenge: %w", err)
		}
	}

	switch action.Kind {
	case core.ActionStreakMilestone:
		p.awardExplicitMilestone(ctx, user, action)
	default:
		p.awardStreakMilestones(ctx, user)
	}

	if leveled {
		p.onLevelUp(ctx, user)
	}
	switch action.Kind {
	case core.ActionPerfectDay:
		p.notify(ctx, user, core.NotifyPerfectDay, "perfect day! every habit done")
	case core.ActionComeback:
		p.notify(ctx, user, core.NotifyComeback, "welcome back")
	}

	rec, err := p.engine.GetOrCreate(ctx, user)
	if err != nil {
		return Result{}, err
	}
	return Result{Context: actx, Points: points, LeveledUp: leveled, Record: rec}, nil
}

// ProcessBatch processes actions independently, collecting per-action errors.
func (p *Processor) ProcessBatch(ctx context.Context, actions []core.UserAction) ([]Result, error) {
	results := make([]Result, 0, len(actions))
	var errs []error
	for _, a := range actions {
		res, err := p.ProcessAction(ctx, a)
		if err != nil {
			errs = append(errs, fmt.Errorf("action %s for %s: %w", a.Kind, a.UserID, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// onLevelUp awards the tiered level-up bonus and emits the notification.
// The bonus is a plain experience award, it does not re-enter the pipeline.
func (p *Processor) onLevelUp(ctx context.Context, user core.UserID) {
	rec, err := p.engine.GetOrCreate(ctx, user)
	if err != nil {
		p.log.Warn("level-up bonus skipped", "user", string(user), "error", err)
		return
	}
	bonus := core.LevelUpBonus(rec.Level)
	if _, err := p.engine.AddExperience(ctx, user, bonus); err != nil {
		p.log.Warn("level-up bonus failed", "user", string(user), "error", err)
	}
	p.notify(ctx, user, core.NotifyLevelUp, fmt.Sprintf("you reached level %d", rec.Level))
}

// awardStreakMilestones pays the milestone bonus for every habit whose streak
// sits exactly on a milestone value, once per streak instance.
func (p *Processor) awardStreakMilestones(ctx context.Context, user core.UserID) {
	habits, err := p.habits.ActiveHabits(ctx, user)
	if err != nil {
		p.log.Warn("streak check skipped", "user", string(user), "error", err)
		return
	}
	for _, h := range habits {
		if !h.Active || !core.IsStreakMilestone(h.CurrentStreak) {
			continue
		}
		key := milestoneKey{user: user, habit: h.ID, milestone: h.CurrentStreak}
		p.mu.Lock()
		_, seen := p.milestonesAwarded[key]
		if !seen {
			p.milestonesAwarded[key] = struct{}{}
		}
		p.mu.Unlock()
		if seen {
			continue
		}
		bonus := core.MilestoneBonus(h.CurrentStreak)
		if _, err := p.engine.AddExperience(ctx, user, bonus); err != nil {
			p.log.Warn("milestone bonus failed", "user", string(user), "habit", h.ID, "error", err)
			continue
		}
		p.bus.Publish(ctx, core.NewMilestoneReached(user, h.ID, h.CurrentStreak, bonus))
		p.notify(ctx, user, core.NotifyStreak, fmt.Sprintf("%d-day streak on %s", h.CurrentStreak, h.Name))
	}
}

// awardExplicitMilestone handles the streak-milestone action variant, which
// carries its own streak length.
func (p *Processor) awardExplicitMilestone(ctx context.Context, user core.UserID, action core.UserAction) {
	if !core.IsStreakMilestone(action.StreakLength) {
		return
	}
	bonus := core.MilestoneBonus(action.StreakLength)
	if _, err := p.engine.AddExperience(ctx, user, bonus); err != nil {
		p.log.Warn("milestone bonus failed", "user", string(user), "error", err)
		return
	}
	p.bus.Publish(ctx, core.NewMilestoneReached(user, action.Ref, action.StreakLength, bonus))
	p.notify(ctx, user, core.NotifyStreak, fmt.Sprintf("%d-day streak milestone", action.StreakLength))
}

// notify publishes an outbound notification event. Delivery happens
// asynchronously in the notification dispatcher; publishing cannot fail.
func (p *Processor) notify(ctx context.Context, user core.UserID, kind core.NotificationKind, msg string) {
	p.bus.Publish(ctx, core.NewNotification(user, kind, msg))
}
