package domain

import (
	"testing"
	"time"
)

func TestSortEntriesTieBreak(t *testing.T) {
	entries := []LeaderboardEntry{
		{UserID: "A", BestScore: 80, BestCompletionMillis: 30_000},
		{UserID: "B", BestScore: 80, BestCompletionMillis: 20_000},
		{UserID: "C", BestScore: 90, BestCompletionMillis: 999_000},
		{UserID: "0", BestScore: 80, BestCompletionMillis: 30_000},
	}
	SortEntries(entries)

	want := []string{"C", "B", "0", "A"}
	for i, id := range want {
		if entries[i].UserID != id {
			t.Fatalf("position %d: expected %s, got %s (%+v)", i, id, entries[i].UserID, entries)
		}
	}
}

func TestMergeReplaceIfBetter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := NewLeaderboardEntry(AttemptResult{AttemptID: "a1", QuizID: "q", UserID: "u", Score: 5, CompletionMillis: 10_000}, now)

	tests := []struct {
		name      string
		result    AttemptResult
		wantScore int
		wantTime  int64
		wantBest  string
	}{
		{name: "higher score replaces", result: AttemptResult{AttemptID: "a2", Score: 6, CompletionMillis: 50_000}, wantScore: 6, wantTime: 50_000, wantBest: "a2"},
		{name: "tie faster replaces", result: AttemptResult{AttemptID: "a2", Score: 5, CompletionMillis: 9_000}, wantScore: 5, wantTime: 9_000, wantBest: "a2"},
		{name: "tie same time keeps", result: AttemptResult{AttemptID: "a2", Score: 5, CompletionMillis: 10_000}, wantScore: 5, wantTime: 10_000, wantBest: "a1"},
		{name: "lower score keeps", result: AttemptResult{AttemptID: "a2", Score: 4, CompletionMillis: 1_000}, wantScore: 5, wantTime: 10_000, wantBest: "a1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := base.Merge(tt.result, now.Add(time.Minute))
			if got.BestScore != tt.wantScore || got.BestCompletionMillis != tt.wantTime || got.BestAttemptID != tt.wantBest {
				t.Errorf("Merge() = %+v", got)
			}
			if got.AttemptCount != 2 {
				t.Errorf("AttemptCount = %d, want 2", got.AttemptCount)
			}
			if !got.UpdatedAt.Equal(now.Add(time.Minute)) {
				t.Errorf("UpdatedAt not refreshed: %v", got.UpdatedAt)
			}
		})
	}
}
