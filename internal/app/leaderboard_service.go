package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quiz-attempt-service/internal/domain"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// LeaderboardService aggregates finalized attempts into per-quiz rankings and
// pushes refreshed rankings to live subscribers.
type LeaderboardService struct {
	repo         LeaderboardRepository
	feed         *Feed
	now          func() time.Time
	defaultLimit int
	maxLimit     int
	log          *zap.Logger
}

// LeaderboardOption customizes a LeaderboardService.
type LeaderboardOption func(*LeaderboardService)

func WithLeaderboardClock(now func() time.Time) LeaderboardOption {
	return func(s *LeaderboardService) { s.now = now }
}

func WithLeaderboardLogger(log *zap.Logger) LeaderboardOption {
	return func(s *LeaderboardService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithLimits overrides the default and maximum page sizes; non-positive values are ignored.
func WithLimits(defaultLimit, maxLimit int) LeaderboardOption {
	return func(s *LeaderboardService) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
	}
}

func NewLeaderboardService(repo LeaderboardRepository, feed *Feed, opts ...LeaderboardOption) *LeaderboardService {
	s := &LeaderboardService{
		repo:         repo,
		feed:         feed,
		now:          time.Now,
		defaultLimit: DefaultLeaderboardLimit,
		maxLimit:     MaxLeaderboardLimit,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.feed == nil {
		s.feed = NewFeed()
	}
	if s.defaultLimit > s.maxLimit {
		s.defaultLimit = s.maxLimit
	}
	return s
}

// RecordResult ingests a finalized attempt. Recording the same attempt twice is a no-op.
func (s *LeaderboardService) RecordResult(ctx context.Context, attempt domain.Attempt) error {
	if !attempt.Status.Terminal() {
		return domain.NotActiveError(attempt.Status)
	}
	result := attempt.Result()
	entry, applied, err := s.repo.Record(ctx, result, s.now())
	if err != nil {
		return fmt.Errorf("record leaderboard result: %w", err)
	}
	if !applied {
		s.log.Debug("result already recorded", zap.String("attempt_id", attempt.ID))
		return nil
	}

	s.log.Info("leaderboard updated",
		zap.String("quiz_id", entry.QuizID),
		zap.String("user_id", entry.UserID),
		zap.Int("best_score", entry.BestScore),
		zap.Int64("best_completion_ms", entry.BestCompletionMillis),
		zap.Int("attempts", entry.AttemptCount),
	)
	lb, err := s.GetLeaderboard(ctx, attempt.QuizID, s.defaultLimit)
	if err != nil {
		s.log.Warn("leaderboard snapshot for feed failed", zap.String("quiz_id", attempt.QuizID), zap.Error(err))
		return nil
	}
	s.feed.Publish(lb)
	return nil
}

// GetLeaderboard returns the top entries ordered by score, completion time and user id.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, quizID string, limit int) (domain.Leaderboard, error) {
	entries, err := s.repo.Top(ctx, quizID, s.clampLimit(limit))
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("read leaderboard: %w", err)
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return domain.Leaderboard{QuizID: quizID, Entries: entries, UpdatedAt: s.now()}, nil
}

// GetStanding returns the caller's own entry for a quiz.
func (s *LeaderboardService) GetStanding(ctx context.Context, quizID, userID string) (domain.LeaderboardEntry, error) {
	return s.repo.Entry(ctx, quizID, userID)
}

// Subscribe returns a channel that receives leaderboard updates for a quiz, starting
// with the current snapshot. The caller must invoke cancel to avoid leaks.
func (s *LeaderboardService) Subscribe(ctx context.Context, quizID string) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.GetLeaderboard(ctx, quizID, s.defaultLimit)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.Subscribe(quizID, initial)
	return ch, cancel, nil
}

func (s *LeaderboardService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}
