package leaderboard

import (
	"fmt"
	"testing"

	"progresskit/core"
)

func TestSkipListBasic(t *testing.T) {
	s := NewSkipList()
	s.Update(core.UserID("a"), 2, 300)
	s.Update(core.UserID("b"), 4, 900)
	s.Update(core.UserID("c"), 3, 600)
	top := s.TopN(3)
	if len(top) != 3 || top[0].User != "b" || top[1].User != "c" || top[2].User != "a" {
		t.Fatalf("unexpected order: %#v", top)
	}
	s.Update(core.UserID("a"), 5, 1500)
	top = s.TopN(1)
	if top[0].User != "a" {
		t.Fatalf("top should be a, got %#v", top)
	}
}

func TestSkipListOrderingRules(t *testing.T) {
	s := NewSkipList()
	// same level, ordered by total XP
	s.Update("low", 5, 100)
	s.Update("high", 5, 900)
	// higher level beats any total XP
	s.Update("boss", 6, 0)

	top := s.TopN(3)
	if top[0].User != "boss" || top[1].User != "high" || top[2].User != "low" {
		t.Fatalf("unexpected order: %#v", top)
	}
}

func TestSkipListRank(t *testing.T) {
	s := NewSkipList()
	s.Update("a", 5, 100)
	s.Update("b", 5, 50)
	s.Update("c", 6, 0)

	if r, ok := s.Rank("c"); !ok || r != 1 {
		t.Fatalf("rank(c): got %d %v", r, ok)
	}
	if r, ok := s.Rank("a"); !ok || r != 2 {
		t.Fatalf("rank(a): got %d %v", r, ok)
	}
	if r, ok := s.Rank("b"); !ok || r != 3 {
		t.Fatalf("rank(b): got %d %v", r, ok)
	}
	if _, ok := s.Rank("missing"); ok {
		t.Fatal("unknown user has no rank")
	}
}

func TestSkipListRankTies(t *testing.T) {
	s := NewSkipList()
	s.Update("a", 5, 100)
	s.Update("b", 5, 100)

	ra, _ := s.Rank("a")
	rb, _ := s.Rank("b")
	if ra != 1 || rb != 1 {
		t.Fatalf("equal standings share rank 1, got %d %d", ra, rb)
	}
}

func TestSkipListRemove(t *testing.T) {
	s := NewSkipList()
	s.Update("a", 2, 300)
	s.Update("b", 3, 600)
	s.Remove("b")

	if _, ok := s.Get("b"); ok {
		t.Fatal("removed user must be gone")
	}
	top := s.TopN(10)
	if len(top) != 1 || top[0].User != "a" {
		t.Fatalf("unexpected board: %#v", top)
	}
	// removing twice is a no-op
	s.Remove("b")
}

func TestSkipListManyUsers(t *testing.T) {
	s := NewSkipList()
	const n = 500
	for i := 0; i < n; i++ {
		s.Update(core.UserID(fmt.Sprintf("user-%03d", i)), 1+i%20, int64(i))
	}
	top := s.TopN(n)
	if len(top) != n {
		t.Fatalf("expected %d entries, got %d", n, len(top))
	}
	for i := 1; i < len(top); i++ {
		prev, cur := top[i-1], top[i]
		if cur.Level > prev.Level || (cur.Level == prev.Level && cur.TotalXP > prev.TotalXP) {
			t.Fatalf("order violated at %d: %#v before %#v", i, prev, cur)
		}
	}
}
