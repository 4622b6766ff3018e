package core

import (
	"fmt"
	"math"
)

// RewardType classifies a level reward descriptor.
type RewardType string

const (
	RewardPointsBonus   RewardType = "points_bonus"
	RewardTitleUnlock   RewardType = "title_unlock"
	RewardFeatureUnlock RewardType = "feature_unlock"
	RewardSpecial       RewardType = "special"
)

// Reward describes a single reward attached to reaching a level.
type Reward struct {
	Type        RewardType `json:"type"`
	Level       int        `json:"level"`
	Description string     `json:"description"`
	Amount      int64      `json:"amount,omitempty"`
}

// specialRewards are fixed one-off rewards attached to landmark levels.
var specialRewards = map[int]string{
	1:   "welcome package",
	50:  "golden badge",
	100: "prestige unlocked",
}

// LevelRewards returns the deterministic reward list for a level: a points
// bonus every 5th level, a title unlock every 10th, a feature unlock every
// 25th, plus fixed specials. Pure function of level.
func LevelRewards(level int) []Reward {
	if level < 1 {
		return nil
	}
	var rewards []Reward
	if level%5 == 0 {
		rewards = append(rewards, Reward{
			Type:        RewardPointsBonus,
			Level:       level,
			Description: fmt.Sprintf("level %d points bonus", level),
			Amount:      int64(level) * 20,
		})
	}
	if level%10 == 0 {
		rewards = append(rewards, Reward{
			Type:        RewardTitleUnlock,
			Level:       level,
			Description: fmt.Sprintf("title unlocked: %s", TitleFor(level, 0)),
		})
	}
	if level%25 == 0 {
		rewards = append(rewards, Reward{
			Type:        RewardFeatureUnlock,
			Level:       level,
			Description: fmt.Sprintf("feature unlocked at level %d", level),
		})
	}
	if desc, ok := specialRewards[level]; ok {
		rewards = append(rewards, Reward{Type: RewardSpecial, Level: level, Description: desc})
	}
	return rewards
}

// LevelUpBonus returns the experience bonus granted for reaching level.
// Higher tiers pay proportionally more per level.
func LevelUpBonus(level int) int64 {
	switch {
	case level < 10:
		return 25
	case level < 25:
		return 50
	case level < 50:
		return 100
	case level < 100:
		return 250
	default:
		return 500
	}
}

// PrestigeBonus returns the experience awarded after a prestige reset,
// exponential in the new prestige tier: 1000 * prestige^1.5.
func PrestigeBonus(prestige int) int64 {
	if prestige <= 0 {
		return 0
	}
	return int64(math.Floor(1000 * math.Pow(float64(prestige), 1.5)))
}

var titleBrackets = []struct {
	minLevel int
	name     string
}{
	{100, "Grandmaster"},
	{75, "Master"},
	{50, "Expert"},
	{25, "Adept"},
	{10, "Apprentice"},
	{1, "Novice"},
}

// TitleFor derives the display title for a (level, prestige) pair. Prestiged
// users carry a star marker with their tier.
func TitleFor(level, prestige int) string {
	if level < 1 {
		level = 1
	}
	name := "Novice"
	for _, b := range titleBrackets {
		if level >= b.minLevel {
			name = b.name
			break
		}
	}
	if prestige > 0 {
		return fmt.Sprintf("%s ★%d", name, prestige)
	}
	return name
}
