package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

func TestLeaderboardRanksFinishedAttempts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// bob: 3 correct in 9s, carol: 3 correct in 6s, alice: 2 correct in 3s.
	play := func(userID string, step time.Duration, choices []int) {
		t.Helper()
		caller := app.Caller{UserID: userID}
		view := mustStart(t, env, caller, "quiz-1")
		for pos, c := range choices {
			env.clock.Advance(step)
			if _, err := env.attempts.SubmitAnswer(ctx, caller, view.AttemptID, pos, c); err != nil {
				t.Fatalf("%s submit %d: %v", userID, pos, err)
			}
		}
	}
	play("bob", 3*time.Second, []int{1, 0, 1})
	play("carol", 2*time.Second, []int{1, 0, 1})
	play("alice", time.Second, []int{1, 0, 0})

	lb, err := env.leaderboard.GetLeaderboard(ctx, "quiz-1", 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	want := []string{"carol", "bob", "alice"}
	if len(lb.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), lb.Entries)
	}
	for i, id := range want {
		if lb.Entries[i].UserID != id {
			t.Fatalf("rank %d: expected %s, got %s", i, id, lb.Entries[i].UserID)
		}
	}

	top, err := env.leaderboard.GetLeaderboard(ctx, "quiz-1", 1)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(top.Entries) != 1 || top.Entries[0].UserID != "carol" {
		t.Fatalf("expected only carol, got %+v", top.Entries)
	}
}

func TestLeaderboardKeepsBestAttempt(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first := mustStart(t, env, alice, "quiz-1")
	for pos, c := range []int{1, 0, 1} {
		if _, err := env.attempts.SubmitAnswer(ctx, alice, first.AttemptID, pos, c); err != nil {
			t.Fatalf("submit %d: %v", pos, err)
		}
	}

	second := mustStart(t, env, alice, "quiz-1")
	if _, err := env.attempts.AbandonAttempt(ctx, alice, second.AttemptID); err != nil {
		t.Fatalf("abandon: %v", err)
	}

	entry, err := env.leaderboard.GetStanding(ctx, "quiz-1", "alice")
	if err != nil {
		t.Fatalf("standing: %v", err)
	}
	if entry.BestScore != 3*pointValue || entry.BestAttemptID != first.AttemptID || entry.AttemptCount != 2 {
		t.Fatalf("expected the first attempt to stay best, got %+v", entry)
	}
}

func TestLeaderboardEmptyQuiz(t *testing.T) {
	env := newTestEnv(t)

	lb, err := env.leaderboard.GetLeaderboard(context.Background(), "quiz-9", 5)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if lb.Entries == nil || len(lb.Entries) != 0 {
		t.Fatalf("expected an empty, non-nil entry list, got %#v", lb.Entries)
	}
	if _, err := env.leaderboard.GetStanding(context.Background(), "quiz-9", "alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLeaderboardRejectsActiveAttempts(t *testing.T) {
	service := app.NewLeaderboardService(memory.NewLeaderboardStore(), nil)
	err := service.RecordResult(context.Background(), domain.Attempt{ID: "a1", QuizID: "quiz-1", Status: domain.StatusActive})
	if !errors.Is(err, domain.ErrState) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestLeaderboardLimitIsClamped(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLeaderboardStore()
	service := app.NewLeaderboardService(store, nil, app.WithLimits(2, 3))

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, user := range []string{"a", "b", "c", "d", "e"} {
		result := domain.AttemptResult{AttemptID: "attempt-" + user, QuizID: "quiz-1", UserID: user, Score: i, CompletionMillis: 1000}
		if _, _, err := store.Record(ctx, result, now); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	tests := []struct {
		limit int
		want  int
	}{
		{limit: 0, want: 2},
		{limit: -4, want: 2},
		{limit: 1, want: 1},
		{limit: 50, want: 3},
	}
	for _, tt := range tests {
		lb, err := service.GetLeaderboard(ctx, "quiz-1", tt.limit)
		if err != nil {
			t.Fatalf("limit %d: %v", tt.limit, err)
		}
		if len(lb.Entries) != tt.want {
			t.Errorf("limit %d: got %d entries, want %d", tt.limit, len(lb.Entries), tt.want)
		}
	}
}

func TestSubscribeReceivesLeaderboardUpdates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	ch, cancel, err := env.leaderboard.Subscribe(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := <-ch
	if len(initial.Entries) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", initial.Entries)
	}

	view := mustStart(t, env, alice, "quiz-1")
	if _, err := env.attempts.AbandonAttempt(ctx, alice, view.AttemptID); err != nil {
		t.Fatalf("abandon: %v", err)
	}

	select {
	case update := <-ch:
		if len(update.Entries) != 1 || update.Entries[0].UserID != "alice" {
			t.Fatalf("unexpected update %+v", update.Entries)
		}
	case <-time.After(time.Second):
		t.Fatal("no leaderboard update received")
	}
}
