package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"quiz-attempt-service/internal/domain"
)

const (
	uniqueViolation    = "23505"
	activeAttemptIndex = "attempts_one_active_idx"
)

// AttemptStore persists attempts as JSONB documents with the lookup columns
// denormalized. A partial unique index allows one active attempt per user and quiz.
type AttemptStore struct {
	db DBTX
}

func NewAttemptStore(db DBTX) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO attempts (id, quiz_id, user_id, status, version, started_at, deadline, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)`,
		attempt.ID, attempt.QuizID, attempt.UserID, string(attempt.Status), attempt.Version,
		attempt.StartedAt, attempt.Deadline, string(data),
	)
	return createError(err)
}

// createError reports a clash on the one-active-attempt index as a conflict.
// Any other failure, a duplicate attempt id included, is a storage fault.
func createError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeAttemptIndex {
		return domain.ErrActiveAttemptExists
	}
	return fmt.Errorf("create attempt: %w", err)
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	return s.scanOne(ctx, `SELECT data, version FROM attempts WHERE id = $1`, attemptID)
}

func (s *AttemptStore) FindActive(ctx context.Context, userID, quizID string) (domain.Attempt, error) {
	return s.scanOne(ctx, `
		SELECT data, version FROM attempts
		WHERE quiz_id = $1 AND user_id = $2 AND status = 'active'`,
		quizID, userID,
	)
}

// Update writes attempt only if the stored version still matches.
func (s *AttemptStore) Update(ctx context.Context, attempt *domain.Attempt) error {
	next := attempt.Clone()
	next.Version = attempt.Version + 1
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE attempts
		SET status = $1,
		    data = $2::jsonb,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $3 AND version = $4`,
		string(next.Status), string(data), attempt.ID, attempt.Version,
	)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM attempts WHERE id = $1)`, attempt.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check attempt: %w", err)
		}
		if !exists {
			return domain.ErrAttemptNotFound
		}
		return domain.ErrConcurrentUpdate
	}

	attempt.Version = next.Version
	return nil
}

func (s *AttemptStore) scanOne(ctx context.Context, query string, args ...interface{}) (domain.Attempt, error) {
	var (
		raw     []byte
		version int64
	)
	err := s.db.QueryRow(ctx, query, args...).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	var attempt domain.Attempt
	if err := json.Unmarshal(raw, &attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("unmarshal attempt: %w", err)
	}
	attempt.Version = version
	return attempt, nil
}
