package memory

import (
	"context"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
)

// LeaderboardStore keeps leaderboard entries in memory, one per (quiz, user).
type LeaderboardStore struct {
	mu       sync.RWMutex
	entries  map[string]map[string]domain.LeaderboardEntry
	ingested map[string]struct{}
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{
		entries:  make(map[string]map[string]domain.LeaderboardEntry),
		ingested: make(map[string]struct{}),
	}
}

func (s *LeaderboardStore) Record(_ context.Context, result domain.AttemptResult, now time.Time) (domain.LeaderboardEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, ok := s.entries[result.QuizID]
	if !ok {
		board = make(map[string]domain.LeaderboardEntry)
		s.entries[result.QuizID] = board
	}
	current := board[result.UserID]
	if _, seen := s.ingested[result.AttemptID]; seen {
		return current, false, nil
	}

	next := current.Merge(result, now)
	board[result.UserID] = next
	s.ingested[result.AttemptID] = struct{}{}
	return next, true, nil
}

func (s *LeaderboardStore) Top(_ context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	board := s.entries[quizID]
	entries := make([]domain.LeaderboardEntry, 0, len(board))
	for _, e := range board {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	domain.SortEntries(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *LeaderboardStore) Entry(_ context.Context, quizID, userID string) (domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[quizID][userID]; ok {
		return e, nil
	}
	return domain.LeaderboardEntry{}, domain.ErrEntryNotFound
}
