package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/domain"
)

// AttemptStore keeps attempts as JSON documents so several service instances
// can share them. Writes use WATCH/MULTI so a stale version never overwrites
// a newer one.
//
//	SET attempt:{attemptID} {json}
//	SET attempt:active:{quizID}:{userID} {attemptID}   (only while active)
type AttemptStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAttemptStore returns a store whose keys live for ttl after their last write (0 keeps them forever).
func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{client: client, ttl: ttl}
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) error {
	raw, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	active := activeKey(attempt.QuizID, attempt.UserID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, active, attemptKey(attempt.ID)).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrActiveAttemptExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, attemptKey(attempt.ID), raw, s.ttl)
			pipe.Set(ctx, active, attempt.ID, s.ttl)
			return nil
		})
		return err
	}, active)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrActiveAttemptExists
	}
	return err
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	return getAttempt(ctx, s.client, attemptID)
}

func (s *AttemptStore) FindActive(ctx context.Context, userID, quizID string) (domain.Attempt, error) {
	id, err := s.client.Get(ctx, activeKey(quizID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("find active attempt: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *AttemptStore) Update(ctx context.Context, attempt *domain.Attempt) error {
	key := attemptKey(attempt.ID)
	active := activeKey(attempt.QuizID, attempt.UserID)

	next := attempt.Clone()
	next.Version = attempt.Version + 1
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := getAttempt(ctx, tx, attempt.ID)
		if err != nil {
			return err
		}
		if stored.Version != attempt.Version {
			return domain.ErrConcurrentUpdate
		}
		activeID, err := tx.Get(ctx, active).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			if next.Status.Terminal() && activeID == attempt.ID {
				pipe.Del(ctx, active)
			}
			return nil
		})
		return err
	}, key, active)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrConcurrentUpdate
	}
	if err != nil {
		return err
	}
	attempt.Version = next.Version
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getAttempt(ctx context.Context, c getter, attemptID string) (domain.Attempt, error) {
	raw, err := c.Get(ctx, attemptKey(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	var attempt domain.Attempt
	if err := json.Unmarshal(raw, &attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("unmarshal attempt: %w", err)
	}
	return attempt, nil
}

func attemptKey(attemptID string) string {
	return "attempt:" + attemptID
}

func activeKey(quizID, userID string) string {
	return "attempt:active:" + quizID + ":" + userID
}
