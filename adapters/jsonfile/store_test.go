package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"progresskit/core"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "progress.json")
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	return s, path
}

func TestGetOrCreatePersists(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	rec, err := s.GetOrCreate(ctx, "u1")
	if err != nil || rec.Level != 1 {
		t.Fatalf("got %+v %v", rec, err)
	}

	// a fresh store over the same file sees the record
	reopened, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := reopened.Get(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("reopened get: %v %v", ok, err)
	}
	if got.UserID != "u1" || got.Level != 1 {
		t.Fatalf("reopened record: %+v", got)
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetOrCreate(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Update(ctx, "u1", func(r *core.ProgressionRecord) ([]core.LevelHistoryEntry, error) {
		r.Level = 2
		r.TotalXP = 300
		return []core.LevelHistoryEntry{core.NewLevelHistoryEntry("u1", 2, 300, r.UpdatedAt)}, nil
	}); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	rec, ok, _ := reopened.Get(ctx, "u1")
	if !ok || rec.Level != 2 || rec.TotalXP != 300 {
		t.Fatalf("persisted record: %+v", rec)
	}
	latest, ok, _ := reopened.LatestHistory(ctx, "u1")
	if !ok || latest.Level != 2 {
		t.Fatalf("persisted history: %+v %v", latest, ok)
	}
}

func TestUpdateMutatorAbort(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetOrCreate(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	_, err := s.Update(ctx, "u1", func(r *core.ProgressionRecord) ([]core.LevelHistoryEntry, error) {
		r.Level = 99
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutator error, got %v", err)
	}
	rec, _, _ := s.Get(ctx, "u1")
	if rec.Level != 1 {
		t.Fatalf("aborted update leaked state: %+v", rec)
	}
}

func TestPersistFailureDropsCreatedEntry(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	// a directory squatting on the temp-file path makes every persist fail
	blocker := path + ".tmp"
	if err := os.Mkdir(blocker, 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := s.Update(ctx, "ghost", func(r *core.ProgressionRecord) ([]core.LevelHistoryEntry, error) {
		r.TotalXP = 10
		return nil, nil
	})
	if !errors.Is(err, core.ErrDataOperation) {
		t.Fatalf("expected persist failure, got %v", err)
	}
	if _, ok, _ := s.Get(ctx, "ghost"); ok {
		t.Fatal("failed update must not leave a phantom record")
	}

	// once persistence recovers, the next flush must not resurrect the ghost
	if err := os.Remove(blocker); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetOrCreate(ctx, "real"); err != nil {
		t.Fatal(err)
	}
	reopened, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := reopened.Get(ctx, "ghost"); ok {
		t.Fatal("phantom record reached disk")
	}
	if _, ok, _ := reopened.Get(ctx, "real"); !ok {
		t.Fatal("recovered persist lost the real record")
	}
}

func TestUpdateMutatorAbortNewUser(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := s.Update(ctx, "ghost", func(r *core.ProgressionRecord) ([]core.LevelHistoryEntry, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutator error, got %v", err)
	}
	if _, ok, _ := s.Get(ctx, "ghost"); ok {
		t.Fatal("aborted first-time update must not create a record")
	}
}

func TestMarkRewardsClaimedPersists(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetOrCreate(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Update(ctx, "u1", func(r *core.ProgressionRecord) ([]core.LevelHistoryEntry, error) {
		r.Level = 5
		return []core.LevelHistoryEntry{core.NewLevelHistoryEntry("u1", 5, 1000, r.UpdatedAt)}, nil
	}); err != nil {
		t.Fatal(err)
	}

	claimed, err := s.MarkRewardsClaimed(ctx, "u1", 5)
	if err != nil || !claimed {
		t.Fatalf("claim: %v %v", claimed, err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	claimed, err = reopened.MarkRewardsClaimed(ctx, "u1", 5)
	if err != nil || claimed {
		t.Fatal("claim must survive a reopen")
	}
}

func TestTopRecordsAndRank(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, u := range []struct {
		id    core.UserID
		level int
		total int64
	}{{"a", 3, 900}, {"b", 2, 300}, {"c", 2, 600}} {
		if _, err := s.GetOrCreate(ctx, u.id); err != nil {
			t.Fatal(err)
		}
		u := u
		if _, err := s.Update(ctx, u.id, func(r *core.ProgressionRecord) ([]core.LevelHistoryEntry, error) {
			r.Level = u.level
			r.TotalXP = u.total
			return nil, nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	top, err := s.TopRecords(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 3 || top[0].UserID != "a" || top[1].UserID != "c" || top[2].UserID != "b" {
		t.Fatalf("top: %+v", top)
	}

	rank, err := s.Rank(ctx, "c")
	if err != nil || rank != 2 {
		t.Fatalf("rank(c): %d %v", rank, err)
	}
	rank, err = s.Rank(ctx, "ghost")
	if err != nil || rank != 0 {
		t.Fatalf("rank(ghost): %d %v", rank, err)
	}
}

func TestNotInitialized(t *testing.T) {
	s := &Store{}
	_, err := s.GetOrCreate(context.Background(), "u1")
	if !errors.Is(err, core.ErrNotInitialized) {
		t.Fatalf("expected not-initialized, got %v", err)
	}
}
