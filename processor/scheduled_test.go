package processor_test

import (
	"context"
	"testing"
	"time"

	"progresskit/core"
	. "progresskit/processor"
)

func TestDailyUpdatePerfectDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	done := []time.Time{fixedClock.Add(-time.Hour)}
	h.habits.habits = []Habit{
		{ID: "h1", Name: "read", Active: true, CurrentStreak: 3, Completions: done},
	}

	if err := h.proc.DailyUpdate(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if got := h.notifications(core.NotifyPerfectDay); len(got) != 1 {
		t.Fatalf("expected perfect-day notification, got %d", len(got))
	}

	rec, err := h.eng.GetOrCreate(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	// perfect-day action pays 50; yesterday had no completion so the comeback
	// action adds 30
	if rec.TotalXP != 80 {
		t.Fatalf("daily total: got %d, want 80", rec.TotalXP)
	}
	if got := h.notifications(core.NotifyComeback); len(got) != 1 {
		t.Fatalf("expected comeback notification, got %d", len(got))
	}
}

func TestDailyUpdateOrdinaryDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.habits.habits = []Habit{{
		ID: "h1", Name: "read", Active: true, CurrentStreak: 3,
		Completions: []time.Time{fixedClock.AddDate(0, 0, -1)},
	}}

	if err := h.proc.DailyUpdate(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if got := h.notifications(core.NotifyPerfectDay); len(got) != 0 {
		t.Fatal("no perfect-day today")
	}
	if got := h.notifications(core.NotifyComeback); len(got) != 0 {
		t.Fatal("yesterday's completion rules out a comeback")
	}
	rec, _ := h.eng.GetOrCreate(ctx, "u1")
	if rec.TotalXP != 0 {
		t.Fatalf("ordinary day awards nothing, got %d", rec.TotalXP)
	}
}

func TestDailyUpdateReminderCadence(t *testing.T) {
	h := newHarness(t)
	// 2026-01-06 has YearDay 6, divisible by 3
	reminderDay := time.Date(2026, time.January, 6, 14, 0, 0, 0, time.UTC)
	SetNow(h.proc, func() time.Time { return reminderDay })

	if err := h.proc.DailyUpdate(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	if got := h.notifications(core.NotifyReminder); len(got) != 1 {
		t.Fatalf("expected reminder on cadence day, got %d", len(got))
	}
}

func TestWeeklyUpdate(t *testing.T) {
	h := newHarness(t)
	if err := h.proc.WeeklyUpdate(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	if h.challenges.weekly != 1 {
		t.Fatalf("expected one weekly challenge, got %d", h.challenges.weekly)
	}
	if got := h.notifications(core.NotifyWeekly); len(got) != 1 {
		t.Fatalf("expected weekly encouragement, got %d", len(got))
	}
}

func TestMonthlyUpdatePrestigeNotification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.proc.MonthlyUpdate(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if h.challenges.seasonal != 1 {
		t.Fatalf("expected seasonal challenge, got %d", h.challenges.seasonal)
	}
	if got := h.notifications(core.NotifyPrestigeAvailable); len(got) != 0 {
		t.Fatal("level 1 user is not prestige-eligible")
	}

	// raise the user to the threshold
	if _, err := h.eng.AddExperience(ctx, "u1", core.CumulativeXP(core.PrestigeThreshold)); err != nil {
		t.Fatal(err)
	}
	if err := h.proc.MonthlyUpdate(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if got := h.notifications(core.NotifyPrestigeAvailable); len(got) != 1 {
		t.Fatalf("expected prestige-available notification, got %d", len(got))
	}

	// fires once per prestige tier
	if err := h.proc.MonthlyUpdate(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if got := h.notifications(core.NotifyPrestigeAvailable); len(got) != 1 {
		t.Fatalf("notification must not repeat within a tier, got %d", len(got))
	}
}
