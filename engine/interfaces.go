package engine

import (
	"context"

	"progresskit/core"
)

// Mutator applies an in-place change to a progression record and returns any
// history entries to append atomically with the record write. Returning an
// error aborts the update without persisting anything.
type Mutator func(rec *core.ProgressionRecord) ([]core.LevelHistoryEntry, error)

// Store abstracts the keyed progression store. Implementations must serialize
// Update calls per user so read-modify-write sequences never interleave;
// different users may proceed in parallel.
type Store interface {
	// GetOrCreate returns the record for user, creating a fresh level-1
	// record if none exists. Never creates duplicates.
	GetOrCreate(ctx context.Context, user core.UserID) (core.ProgressionRecord, error)

	// Get returns the record and whether it exists.
	Get(ctx context.Context, user core.UserID) (core.ProgressionRecord, bool, error)

	// Update runs fn against the user's record (created fresh if absent)
	// under the per-user exclusion, persisting the record and any returned
	// history entries all-or-nothing. Implementations backed by optimistic
	// transactions may invoke fn more than once; fn must be restartable.
	Update(ctx context.Context, user core.UserID, fn Mutator) (core.ProgressionRecord, error)

	// LatestHistory returns the most recent history entry, if any.
	LatestHistory(ctx context.Context, user core.UserID) (core.LevelHistoryEntry, bool, error)

	// MarkRewardsClaimed flips RewardsClaimed on the newest history entry for
	// level. Returns false when no such entry exists or it was already claimed.
	MarkRewardsClaimed(ctx context.Context, user core.UserID, level int) (bool, error)

	// TopRecords returns records ordered by (level desc, total XP desc),
	// truncated to limit.
	TopRecords(ctx context.Context, limit int) ([]core.ProgressionRecord, error)

	// Rank returns 1 + the count of records strictly greater than the user's
	// under the (level, total XP) ordering.
	Rank(ctx context.Context, user core.UserID) (int, error)
}
