package memory

import (
	"context"
	"sync"

	"progresskit/core"
	"progresskit/engine"
	"progresskit/leaderboard"
)

// Store is a concurrent in-memory engine.Store. Each user owns a mutex, so
// Update calls for one user serialize while distinct users proceed in
// parallel. A skip list keeps the leaderboard ordering incrementally.
type Store struct {
	users sync.Map // map[core.UserID]*userEntry
	board *leaderboard.SkipList
}

type userEntry struct {
	mu      sync.Mutex
	rec     core.ProgressionRecord
	history []core.LevelHistoryEntry
}

func New() *Store {
	return &Store{board: leaderboard.NewSkipList()}
}

func (s *Store) entry(user core.UserID) (*userEntry, bool) {
	if v, ok := s.users.Load(user); ok {
		return v.(*userEntry), true
	}
	rec := core.NewProgressionRecord(user)
	actual, loaded := s.users.LoadOrStore(user, &userEntry{rec: rec})
	e := actual.(*userEntry)
	if !loaded {
		s.board.Update(user, rec.Level, rec.TotalXP)
	}
	return e, loaded
}

func (s *Store) GetOrCreate(_ context.Context, user core.UserID) (core.ProgressionRecord, error) {
	e, _ := s.entry(user)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, nil
}

func (s *Store) Get(_ context.Context, user core.UserID) (core.ProgressionRecord, bool, error) {
	v, ok := s.users.Load(user)
	if !ok {
		return core.ProgressionRecord{}, false, nil
	}
	e := v.(*userEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, true, nil
}

func (s *Store) Update(_ context.Context, user core.UserID, fn engine.Mutator) (core.ProgressionRecord, error) {
	e, _ := s.entry(user)
	e.mu.Lock()
	defer e.mu.Unlock()

	// mutate a copy so an aborted update leaves no partial state
	rec := e.rec
	history, err := fn(&rec)
	if err != nil {
		return core.ProgressionRecord{}, err
	}
	e.rec = rec
	e.history = append(e.history, history...)
	s.board.Update(user, rec.Level, rec.TotalXP)
	return rec, nil
}

func (s *Store) LatestHistory(_ context.Context, user core.UserID) (core.LevelHistoryEntry, bool, error) {
	v, ok := s.users.Load(user)
	if !ok {
		return core.LevelHistoryEntry{}, false, nil
	}
	e := v.(*userEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.history) == 0 {
		return core.LevelHistoryEntry{}, false, nil
	}
	return e.history[len(e.history)-1], true, nil
}

func (s *Store) MarkRewardsClaimed(_ context.Context, user core.UserID, level int) (bool, error) {
	v, ok := s.users.Load(user)
	if !ok {
		return false, nil
	}
	e := v.(*userEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	// newest entry for the level wins, so a post-prestige climb claims its
	// own entry rather than the previous cycle's
	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].Level != level {
			continue
		}
		if e.history[i].RewardsClaimed {
			return false, nil
		}
		e.history[i].RewardsClaimed = true
		return true, nil
	}
	return false, nil
}

func (s *Store) TopRecords(ctx context.Context, limit int) ([]core.ProgressionRecord, error) {
	entries := s.board.TopN(limit)
	out := make([]core.ProgressionRecord, 0, len(entries))
	for _, le := range entries {
		rec, ok, err := s.Get(ctx, le.User)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) Rank(_ context.Context, user core.UserID) (int, error) {
	rank, ok := s.board.Rank(user)
	if !ok {
		return 0, nil
	}
	return rank, nil
}

var _ engine.Store = (*Store)(nil)
