package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt-service/internal/domain"
)

const entryColumns = `quiz_id, user_id, best_score, best_completion_ms, best_attempt_id, attempt_count, updated_at`

// LeaderboardStore keeps one row per (quiz, user) plus a ledger of ingested
// attempts so each finalized attempt is merged exactly once.
type LeaderboardStore struct {
	pool *pgxpool.Pool
	tx   *Transactor
}

func NewLeaderboardStore(pool *pgxpool.Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool, tx: NewTransactor(pool)}
}

func (s *LeaderboardStore) Record(ctx context.Context, result domain.AttemptResult, now time.Time) (domain.LeaderboardEntry, bool, error) {
	var (
		entry   domain.LeaderboardEntry
		applied bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO leaderboard_results (attempt_id, quiz_id, user_id, status, score, completion_ms, finalized_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (attempt_id) DO NOTHING`,
			result.AttemptID, result.QuizID, result.UserID, string(result.Status),
			result.Score, result.CompletionMillis, result.FinalizedAt,
		)
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		if tag.RowsAffected() == 0 {
			entry, err = readEntry(ctx, tx, result.QuizID, result.UserID)
			return err
		}

		// Make sure a row exists so concurrent first results serialize on its lock.
		if _, err := tx.Exec(ctx, `
			INSERT INTO leaderboard_entries (quiz_id, user_id, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (quiz_id, user_id) DO NOTHING`,
			result.QuizID, result.UserID, now,
		); err != nil {
			return fmt.Errorf("ensure entry: %w", err)
		}

		current, err := scanEntry(tx.QueryRow(ctx,
			`SELECT `+entryColumns+` FROM leaderboard_entries WHERE quiz_id = $1 AND user_id = $2 FOR UPDATE`,
			result.QuizID, result.UserID,
		))
		if err != nil {
			return err
		}

		entry = current.Merge(result, now)
		if _, err := tx.Exec(ctx, `
			UPDATE leaderboard_entries
			SET best_score = $3,
			    best_completion_ms = $4,
			    best_attempt_id = $5,
			    attempt_count = $6,
			    updated_at = $7
			WHERE quiz_id = $1 AND user_id = $2`,
			entry.QuizID, entry.UserID, entry.BestScore, entry.BestCompletionMillis,
			entry.BestAttemptID, entry.AttemptCount, entry.UpdatedAt,
		); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return domain.LeaderboardEntry{}, false, err
	}
	return entry, applied, nil
}

// Top orders by score, completion time and byte-wise user id.
func (s *LeaderboardStore) Top(ctx context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM leaderboard_entries
		WHERE quiz_id = $1 AND attempt_count > 0
		ORDER BY best_score DESC, best_completion_ms ASC, user_id COLLATE "C" ASC
		LIMIT $2`,
		quizID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	return entries, nil
}

func (s *LeaderboardStore) Entry(ctx context.Context, quizID, userID string) (domain.LeaderboardEntry, error) {
	return readEntry(ctx, s.pool, quizID, userID)
}

func readEntry(ctx context.Context, db DBTX, quizID, userID string) (domain.LeaderboardEntry, error) {
	return scanEntry(db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM leaderboard_entries WHERE quiz_id = $1 AND user_id = $2 AND attempt_count > 0`,
		quizID, userID,
	))
}

func scanEntry(row pgx.Row) (domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	err := row.Scan(&e.QuizID, &e.UserID, &e.BestScore, &e.BestCompletionMillis, &e.BestAttemptID, &e.AttemptCount, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LeaderboardEntry{}, domain.ErrEntryNotFound
	}
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("scan entry: %w", err)
	}
	return e, nil
}
