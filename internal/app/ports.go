package app

import (
	"context"
	"time"

	"quiz-attempt-service/internal/domain"
)

// CatalogRepository reads quiz definitions and their questions. It is read-only to the engine.
type CatalogRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// GetQuestions returns the questions in the order of ids, or domain.ErrQuestionNotFound.
	GetQuestions(ctx context.Context, ids []string) ([]domain.Question, error)
}

// AttemptRepository persists attempts (in-memory, Redis, Postgres).
type AttemptRepository interface {
	// Create stores a new active attempt, failing with domain.ErrActiveAttemptExists
	// when the user already has an active attempt at the quiz.
	Create(ctx context.Context, attempt domain.Attempt) error
	Get(ctx context.Context, attemptID string) (domain.Attempt, error)
	FindActive(ctx context.Context, userID, quizID string) (domain.Attempt, error)
	// Update is a compare-and-swap on attempt.Version. On success the stored and the
	// passed version are both incremented; otherwise domain.ErrConcurrentUpdate is
	// returned and nothing is written.
	Update(ctx context.Context, attempt *domain.Attempt) error
}

// LeaderboardRepository keeps one entry per (quiz, user).
type LeaderboardRepository interface {
	// Record merges a result atomically. applied is false when the attempt was
	// already ingested, in which case the stored entry is returned unchanged.
	Record(ctx context.Context, result domain.AttemptResult, now time.Time) (entry domain.LeaderboardEntry, applied bool, err error)
	Top(ctx context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error)
	Entry(ctx context.Context, quizID, userID string) (domain.LeaderboardEntry, error)
}

// ResultRecorder ingests finalized attempts.
type ResultRecorder interface {
	RecordResult(ctx context.Context, attempt domain.Attempt) error
}

// Caller is the identity supplied by the upstream session layer. It is trusted as is.
type Caller struct {
	UserID  string
	IsAdmin bool
}

func (c Caller) owns(a domain.Attempt) bool {
	return c.IsAdmin || c.UserID == a.UserID
}
