// Package stats aggregates progression events into daily engagement and
// experience KPIs for the game-stats surface.
package stats

import (
	"context"
	"sync"
	"time"

	"progresskit/core"
	"progresskit/engine"
)

const dayFormat = "2006-01-02"

// Collector is a bus subscriber accumulating per-day aggregates.
type Collector struct {
	mu            sync.Mutex
	activeByDay   map[string]map[core.UserID]struct{}
	xpByDay       map[string]int64
	levelUpsByDay map[string]int
	prestiges     int64
	milestones    int64
	claims        int64
}

func NewCollector() *Collector {
	return &Collector{
		activeByDay:   map[string]map[core.UserID]struct{}{},
		xpByDay:       map[string]int64{},
		levelUpsByDay: map[string]int{},
	}
}

// Attach subscribes the collector to every progression event type. The
// returned func unsubscribes.
func (c *Collector) Attach(bus *engine.EventBus) func() {
	types := []core.EventType{
		core.EventXPAwarded,
		core.EventLevelUp,
		core.EventPrestige,
		core.EventMilestone,
		core.EventRewardClaimed,
	}
	unsubs := make([]func(), 0, len(types))
	for _, t := range types {
		unsubs = append(unsubs, bus.Subscribe(t, c.OnEvent))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// OnEvent folds one event into the aggregates.
func (c *Collector) OnEvent(_ context.Context, e core.Event) {
	day := e.Time.UTC().Format(dayFormat)
	c.mu.Lock()
	defer c.mu.Unlock()

	users := c.activeByDay[day]
	if users == nil {
		users = map[core.UserID]struct{}{}
		c.activeByDay[day] = users
	}
	users[e.UserID] = struct{}{}

	switch e.Type {
	case core.EventXPAwarded:
		c.xpByDay[day] += e.Amount
	case core.EventLevelUp:
		c.levelUpsByDay[day]++
	case core.EventPrestige:
		c.prestiges++
	case core.EventMilestone:
		c.milestones++
	case core.EventRewardClaimed:
		c.claims++
	}
}

// Stats is a point-in-time aggregate snapshot.
type Stats struct {
	Day             string `json:"day"`
	ActiveUsers     int    `json:"active_users"`
	XPAwarded       int64  `json:"xp_awarded"`
	LevelUps        int    `json:"level_ups"`
	TotalPrestiges  int64  `json:"total_prestiges"`
	TotalMilestones int64  `json:"total_milestones"`
	TotalClaims     int64  `json:"total_claims"`
}

// Snapshot returns the aggregates for the day containing t.
func (c *Collector) Snapshot(t time.Time) Stats {
	day := t.UTC().Format(dayFormat)
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Day:             day,
		ActiveUsers:     len(c.activeByDay[day]),
		XPAwarded:       c.xpByDay[day],
		LevelUps:        c.levelUpsByDay[day],
		TotalPrestiges:  c.prestiges,
		TotalMilestones: c.milestones,
		TotalClaims:     c.claims,
	}
}
