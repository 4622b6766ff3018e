package processor_test

import (
	"context"
	"strings"
	"testing"

	"progresskit/core"
	. "progresskit/processor"
)

func TestGetDashboardData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.proc.ProcessAction(ctx, core.UserAction{
		Kind: core.ActionGoalAchieved, UserID: "u1", Ref: "goal-1",
	}); err != nil {
		t.Fatal(err)
	}

	data, err := h.proc.GetDashboardData(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if data.Record.TotalXP != 100 {
		t.Fatalf("record total: got %d", data.Record.TotalXP)
	}
	if data.Rank != 1 {
		t.Fatalf("rank: got %d", data.Rank)
	}
	if len(data.RecentPoints) != 1 || data.RecentPoints[0].Points != 100 {
		t.Fatalf("recent points: %+v", data.RecentPoints)
	}
	if data.LatestProgress != nil {
		t.Fatal("no level-up yet, no progress entry")
	}
}

func TestGetDashboardDataAfterLevelUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.eng.AddExperience(ctx, "u1", core.RequiredXP(2)); err != nil {
		t.Fatal(err)
	}
	data, err := h.proc.GetDashboardData(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if data.LatestProgress == nil || data.LatestProgress.Level != 2 {
		t.Fatalf("latest progress: %+v", data.LatestProgress)
	}
}

func TestGetRecommendations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	recs, err := h.proc.GetRecommendations(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	// fresh user: far from level 2, not eligible, no habits, no challenges
	if len(recs) != 1 || !strings.Contains(recs[0], "challenge") {
		t.Fatalf("fresh-user recommendations: %v", recs)
	}

	// 50 XP short of the next level
	if _, err := h.eng.AddExperience(ctx, "u1", core.RequiredXP(2)-50); err != nil {
		t.Fatal(err)
	}
	h.habits.habits = []Habit{{ID: "h1", Name: "read", Active: true}}
	recs, err = h.proc.GetRecommendations(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	var nearLevel, keepStreak bool
	for _, r := range recs {
		if strings.Contains(r, "only 50 XP") {
			nearLevel = true
		}
		if strings.Contains(r, "read") {
			keepStreak = true
		}
	}
	if !nearLevel || !keepStreak {
		t.Fatalf("recommendations: %v", recs)
	}
}

func TestGetRecommendationsPrestige(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.eng.AddExperience(ctx, "u1", core.CumulativeXP(core.PrestigeThreshold)); err != nil {
		t.Fatal(err)
	}
	recs, err := h.proc.GetRecommendations(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	var prestige bool
	for _, r := range recs {
		if strings.Contains(r, "prestige") {
			prestige = true
		}
	}
	if !prestige {
		t.Fatalf("expected prestige recommendation, got %v", recs)
	}
}

func TestGetGameStatsWithoutCollector(t *testing.T) {
	h := newHarness(t)
	st, err := h.proc.GetGameStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.ActiveUsers != 0 || st.XPAwarded != 0 {
		t.Fatalf("no collector means zero stats: %+v", st)
	}
}
