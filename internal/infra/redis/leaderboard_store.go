package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/domain"
)

const maxRecordRetries = 16

// LeaderboardStore ranks users per quiz with a sorted set keyed by best score.
// Ties on score are resolved in Go with the domain comparator.
//
//	ZADD leaderboard:{quizID} {bestScore} {userID}
//	HSET leaderboard:{quizID}:entries {userID} {json}
//	SADD leaderboard:{quizID}:ingested {attemptID}
type LeaderboardStore struct {
	client *redis.Client
}

func NewLeaderboardStore(client *redis.Client) *LeaderboardStore {
	return &LeaderboardStore{client: client}
}

func (s *LeaderboardStore) Record(ctx context.Context, result domain.AttemptResult, now time.Time) (domain.LeaderboardEntry, bool, error) {
	rank := rankingKey(result.QuizID)
	entries := entriesKey(result.QuizID)
	ingested := ingestedKey(result.QuizID)

	var (
		entry   domain.LeaderboardEntry
		applied bool
	)
	txf := func(tx *redis.Tx) error {
		applied = false
		seen, err := tx.SIsMember(ctx, ingested, result.AttemptID).Result()
		if err != nil {
			return err
		}
		current, err := readEntry(ctx, tx, result.QuizID, result.UserID)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrNotFound):
			current = domain.LeaderboardEntry{}
		default:
			return err
		}
		if seen {
			entry = current
			return nil
		}

		entry = current.Merge(result, now)
		raw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, ingested, result.AttemptID)
			pipe.HSet(ctx, entries, result.UserID, raw)
			pipe.ZAdd(ctx, rank, redis.Z{Score: float64(entry.BestScore), Member: result.UserID})
			return nil
		})
		if err == nil {
			applied = true
		}
		return err
	}

	for i := 0; i < maxRecordRetries; i++ {
		err := s.client.Watch(ctx, txf, ingested, entries)
		if err == nil {
			return entry, applied, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.LeaderboardEntry{}, false, err
	}
	return domain.LeaderboardEntry{}, false, domain.ErrConcurrentUpdate
}

// Top reads the best limit entries. Members sharing the boundary score are all
// fetched so the tie-break on completion time and user id stays exact.
func (s *LeaderboardStore) Top(ctx context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		return []domain.LeaderboardEntry{}, nil
	}
	head, err := s.client.ZRevRangeWithScores(ctx, rankingKey(quizID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read ranking: %w", err)
	}
	if len(head) == 0 {
		return []domain.LeaderboardEntry{}, nil
	}

	boundary := head[len(head)-1].Score
	users, err := s.client.ZRevRangeByScore(ctx, rankingKey(quizID), &redis.ZRangeBy{
		Max: "+inf",
		Min: strconv.FormatFloat(boundary, 'f', -1, 64),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read ranking: %w", err)
	}

	values, err := s.client.HMGet(ctx, entriesKey(quizID), users...).Result()
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var e domain.LeaderboardEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		entries = append(entries, e)
	}

	domain.SortEntries(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *LeaderboardStore) Entry(ctx context.Context, quizID, userID string) (domain.LeaderboardEntry, error) {
	return readEntry(ctx, s.client, quizID, userID)
}

type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func readEntry(ctx context.Context, c hashGetter, quizID, userID string) (domain.LeaderboardEntry, error) {
	raw, err := c.HGet(ctx, entriesKey(quizID), userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.LeaderboardEntry{}, domain.ErrEntryNotFound
	}
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("get entry: %w", err)
	}
	var e domain.LeaderboardEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("unmarshal entry: %w", err)
	}
	return e, nil
}

func rankingKey(quizID string) string {
	return "leaderboard:" + quizID
}

func entriesKey(quizID string) string {
	return "leaderboard:" + quizID + ":entries"
}

func ingestedKey(quizID string) string {
	return "leaderboard:" + quizID + ":ingested"
}
