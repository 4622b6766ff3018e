package processor

import (
	"context"
	"fmt"

	"progresskit/core"
	"progresskit/stats"
)

// WithStats attaches a stats collector so GameStats has data to report.
func WithStats(c *stats.Collector) Option {
	return func(p *Processor) { p.stats = c }
}

// DashboardData is the aggregate read model for a user's overview screen.
type DashboardData struct {
	Record               core.ProgressionRecord  `json:"record"`
	LatestProgress       *core.LevelHistoryEntry `json:"latest_progress,omitempty"`
	Rank                 int                     `json:"rank"`
	ActiveChallenges     []string                `json:"active_challenges"`
	UnlockedAchievements []string                `json:"unlocked_achievements"`
	RecentPoints         []PointsEntry           `json:"recent_points"`
}

const recentPointsLimit = 20

// GetDashboardData assembles the user's progression overview.
func (p *Processor) GetDashboardData(ctx context.Context, user core.UserID) (DashboardData, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return DashboardData{}, fmt.Errorf("%w: %v", core.ErrInvalidParameters, err)
	}

	rec, err := p.engine.GetOrCreate(ctx, user)
	if err != nil {
		return DashboardData{}, err
	}
	data := DashboardData{Record: rec}

	if entry, ok, err := p.engine.GetLevelProgress(ctx, user); err != nil {
		return DashboardData{}, err
	} else if ok {
		data.LatestProgress = &entry
	}
	if data.Rank, err = p.engine.GetRank(ctx, user); err != nil {
		return DashboardData{}, err
	}
	if data.ActiveChallenges, err = p.challenges.ActiveChallenges(ctx, user); err != nil {
		return DashboardData{}, fmt.Errorf("active challenges: %w", err)
	}
	if data.UnlockedAchievements, err = p.achievements.Unlocked(ctx, user); err != nil {
		return DashboardData{}, fmt.Errorf("unlocked achievements: %w", err)
	}
	if data.RecentPoints, err = p.scorer.PointsHistory(ctx, user, recentPointsLimit); err != nil {
		return DashboardData{}, fmt.Errorf("points history: %w", err)
	}
	return data, nil
}

// GetGameStats reports today's aggregate progression stats. Returns zeroes
// when no collector is attached.
func (p *Processor) GetGameStats(ctx context.Context) (stats.Stats, error) {
	_ = ctx
	if p.stats == nil {
		return stats.Stats{}, nil
	}
	return p.stats.Snapshot(p.now()), nil
}

// GetRecommendations produces simple next-step suggestions from the user's
// current standing.
func (p *Processor) GetRecommendations(ctx context.Context, user core.UserID) ([]string, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidParameters, err)
	}

	rec, err := p.engine.GetOrCreate(ctx, user)
	if err != nil {
		return nil, err
	}

	var recs []string
	if remaining := rec.XPToNext - rec.XP; remaining <= 100 {
		recs = append(recs, fmt.Sprintf("only %d XP to level %d", remaining, rec.Level+1))
	}
	if rec.Level >= core.PrestigeThreshold {
		recs = append(recs, "prestige is available")
	}

	habits, err := p.habits.ActiveHabits(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("recommendations: %w", err)
	}
	now := p.now()
	for _, h := range habits {
		if h.Active && !h.CompletedOn(now) {
			recs = append(recs, fmt.Sprintf("complete %q to keep its streak alive", h.Name))
		}
	}

	active, err := p.challenges.ActiveChallenges(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("recommendations: %w", err)
	}
	if len(active) == 0 {
		recs = append(recs, "join a challenge for bonus points")
	}
	return recs, nil
}
