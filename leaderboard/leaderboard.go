package leaderboard

import "progresskit/core"

// Entry is one ranked row: level first, total XP second.
type Entry struct {
	User    core.UserID
	Level   int
	TotalXP int64
}

// Board maintains the (level desc, total XP desc) ordering over users.
type Board interface {
	Update(user core.UserID, level int, totalXP int64)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	// Rank is 1 + the count of entries strictly greater than the user's
	// (level, total XP). Ties share a rank.
	Rank(user core.UserID) (int, bool)
}
