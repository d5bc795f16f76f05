package memory

import (
	"context"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
// Attempts are copied on the way in and out so callers never share state with the store.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
	active   map[activeKey]string
}

type activeKey struct {
	userID string
	quizID string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]domain.Attempt),
		active:   make(map[activeKey]string),
	}
}

func (s *AttemptStore) Create(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := activeKey{userID: attempt.UserID, quizID: attempt.QuizID}
	if _, ok := s.active[key]; ok {
		return domain.ErrActiveAttemptExists
	}
	s.attempts[attempt.ID] = attempt.Clone()
	if attempt.Status == domain.StatusActive {
		s.active[key] = attempt.ID
	}
	return nil
}

func (s *AttemptStore) Get(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt.Clone(), nil
}

func (s *AttemptStore) FindActive(_ context.Context, userID, quizID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[activeKey{userID: userID, quizID: quizID}]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return s.attempts[id].Clone(), nil
}

func (s *AttemptStore) Update(_ context.Context, attempt *domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.attempts[attempt.ID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if stored.Version != attempt.Version {
		return domain.ErrConcurrentUpdate
	}

	next := attempt.Clone()
	next.Version++
	s.attempts[attempt.ID] = next
	if next.Status.Terminal() {
		key := activeKey{userID: next.UserID, quizID: next.QuizID}
		if s.active[key] == next.ID {
			delete(s.active, key)
		}
	}
	attempt.Version = next.Version
	return nil
}
