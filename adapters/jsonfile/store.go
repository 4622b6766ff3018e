package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"progresskit/core"
	"progresskit/engine"
)

// Store persists all progression state to a single JSON file. Suitable for
// demos and small deployments. A single mutex covers every user, which
// trivially satisfies the per-user serialization requirement.
type Store struct {
	path string
	mu   sync.Mutex
	data map[core.UserID]*userState
}

type userState struct {
	Record  core.ProgressionRecord   `json:"record"`
	History []core.LevelHistoryEntry `json:"history,omitempty"`
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.UserID]*userState{}}
	if err := s.load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, core.WrapData("jsonfile load", err)
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]*userState
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		s.data[core.UserID(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	raw := make(map[string]*userState, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) checkOpen() error {
	if s.data == nil {
		return core.ErrNotInitialized
	}
	return nil
}

// get returns the state for user, inserting a fresh one when absent. The
// second result reports whether the entry was created; failed operations must
// remove created entries so they never reach disk.
func (s *Store) get(user core.UserID) (*userState, bool) {
	if st, ok := s.data[user]; ok {
		return st, false
	}
	st := &userState{Record: core.NewProgressionRecord(user)}
	s.data[user] = st
	return st, true
}

func (s *Store) GetOrCreate(_ context.Context, user core.UserID) (core.ProgressionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return core.ProgressionRecord{}, err
	}
	st, created := s.get(user)
	if err := s.persist(); err != nil {
		if created {
			delete(s.data, user)
		}
		return core.ProgressionRecord{}, core.WrapData("jsonfile persist", err)
	}
	return st.Record, nil
}

func (s *Store) Get(_ context.Context, user core.UserID) (core.ProgressionRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return core.ProgressionRecord{}, false, err
	}
	st, ok := s.data[user]
	if !ok {
		return core.ProgressionRecord{}, false, nil
	}
	return st.Record, true, nil
}

func (s *Store) Update(_ context.Context, user core.UserID, fn engine.Mutator) (core.ProgressionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return core.ProgressionRecord{}, err
	}
	st, created := s.get(user)
	rec := st.Record
	history, err := fn(&rec)
	if err != nil {
		if created {
			delete(s.data, user)
		}
		return core.ProgressionRecord{}, err
	}
	prevRec, prevLen := st.Record, len(st.History)
	st.Record = rec
	st.History = append(st.History, history...)
	if err := s.persist(); err != nil {
		// roll back the in-memory view so no partial state is observable
		if created {
			delete(s.data, user)
		} else {
			st.Record = prevRec
			st.History = st.History[:prevLen]
		}
		return core.ProgressionRecord{}, core.WrapData("jsonfile persist", err)
	}
	return rec, nil
}

func (s *Store) LatestHistory(_ context.Context, user core.UserID) (core.LevelHistoryEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return core.LevelHistoryEntry{}, false, err
	}
	st, ok := s.data[user]
	if !ok || len(st.History) == 0 {
		return core.LevelHistoryEntry{}, false, nil
	}
	return st.History[len(st.History)-1], true, nil
}

func (s *Store) MarkRewardsClaimed(_ context.Context, user core.UserID, level int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	st, ok := s.data[user]
	if !ok {
		return false, nil
	}
	for i := len(st.History) - 1; i >= 0; i-- {
		if st.History[i].Level != level {
			continue
		}
		if st.History[i].RewardsClaimed {
			return false, nil
		}
		st.History[i].RewardsClaimed = true
		if err := s.persist(); err != nil {
			st.History[i].RewardsClaimed = false
			return false, core.WrapData("jsonfile persist", err)
		}
		return true, nil
	}
	return false, nil
}

func (s *Store) TopRecords(_ context.Context, limit int) ([]core.ProgressionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	recs := make([]core.ProgressionRecord, 0, len(s.data))
	for _, st := range s.data {
		recs = append(recs, st.Record)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Level != recs[j].Level {
			return recs[i].Level > recs[j].Level
		}
		if recs[i].TotalXP != recs[j].TotalXP {
			return recs[i].TotalXP > recs[j].TotalXP
		}
		return recs[i].UserID < recs[j].UserID
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *Store) Rank(_ context.Context, user core.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	st, ok := s.data[user]
	if !ok {
		return 0, nil
	}
	ahead := 0
	for _, other := range s.data {
		if other.Record.Level > st.Record.Level ||
			(other.Record.Level == st.Record.Level && other.Record.TotalXP > st.Record.TotalXP) {
			ahead++
		}
	}
	return ahead + 1, nil
}

var _ engine.Store = (*Store)(nil)
