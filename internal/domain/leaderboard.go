package domain

import (
	"sort"
	"time"
)

// AttemptResult is a finalized attempt as the leaderboard sees it.
type AttemptResult struct {
	AttemptID        string        `json:"attemptId"`
	QuizID           string        `json:"quizId"`
	UserID           string        `json:"userId"`
	Status           AttemptStatus `json:"status"`
	Score            int           `json:"score"`
	CompletionMillis int64         `json:"completionMillis"`
	FinalizedAt      time.Time     `json:"finalizedAt"`
}

// LeaderboardEntry is the best result of one user on one quiz.
type LeaderboardEntry struct {
	QuizID               string    `json:"quizId"`
	UserID               string    `json:"userId"`
	BestScore            int       `json:"bestScore"`
	BestCompletionMillis int64     `json:"bestCompletionMillis"`
	BestAttemptID        string    `json:"bestAttemptId"`
	AttemptCount         int       `json:"attemptCount"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Leaderboard captures the ordered scoreboard for a quiz.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// NewLeaderboardEntry creates the first entry of a user from a result.
func NewLeaderboardEntry(r AttemptResult, now time.Time) LeaderboardEntry {
	return LeaderboardEntry{
		QuizID:               r.QuizID,
		UserID:               r.UserID,
		BestScore:            r.Score,
		BestCompletionMillis: r.CompletionMillis,
		BestAttemptID:        r.AttemptID,
		AttemptCount:         1,
		UpdatedAt:            now,
	}
}

// Merge applies the replace-if-better policy: the best fields move only on a strictly
// higher score, or an equal score finished strictly faster. The count always grows.
func (e LeaderboardEntry) Merge(r AttemptResult, now time.Time) LeaderboardEntry {
	if e.AttemptCount == 0 {
		return NewLeaderboardEntry(r, now)
	}
	if r.Score > e.BestScore || (r.Score == e.BestScore && r.CompletionMillis < e.BestCompletionMillis) {
		e.BestScore = r.Score
		e.BestCompletionMillis = r.CompletionMillis
		e.BestAttemptID = r.AttemptID
	}
	e.AttemptCount++
	e.UpdatedAt = now
	return e
}

// RanksBefore is the total leaderboard order: score desc, completion time asc, user id asc.
func RanksBefore(a, b LeaderboardEntry) bool {
	if a.BestScore != b.BestScore {
		return a.BestScore > b.BestScore
	}
	if a.BestCompletionMillis != b.BestCompletionMillis {
		return a.BestCompletionMillis < b.BestCompletionMillis
	}
	return a.UserID < b.UserID
}

// SortEntries orders entries in place by RanksBefore.
func SortEntries(entries []LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return RanksBefore(entries[i], entries[j])
	})
}
