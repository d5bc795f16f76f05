package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

// CatalogRepository caches quizzes and questions in Redis and falls back to a loader on cache miss.
// Quizzes are stored as:   SET catalog:quiz:{quizID} {json}
// Questions are stored as: SET catalog:question:{questionID} {json}
type CatalogRepository struct {
	client *redis.Client
	loader memory.CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewCatalogRepository(client *redis.Client, loader memory.CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cachedQuiz(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do("quiz:"+quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cachedQuiz(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		quiz = quiz.WithDefaults()

		raw, err := json.Marshal(quiz)
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("marshal quiz: %w", err)
		}
		// best-effort; the loader stays the source of truth
		_ = r.client.Set(ctx, quizKey(quizID), raw, r.ttlWithJitter()).Err()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *CatalogRepository) GetQuestions(ctx context.Context, ids []string) ([]domain.Question, error) {
	found, missing := r.cachedQuestions(ctx, ids)
	if len(missing) > 0 {
		result, err, _ := r.sf.Do("questions:"+strings.Join(missing, ","), func() (interface{}, error) {
			questions, err := r.loader.LoadQuestions(ctx, missing)
			if err != nil {
				return nil, err
			}

			ttl := r.ttlWithJitter()
			pipe := r.client.Pipeline()
			for _, q := range questions {
				raw, err := json.Marshal(q)
				if err != nil {
					return nil, fmt.Errorf("marshal question: %w", err)
				}
				pipe.Set(ctx, questionKey(q.ID), raw, ttl)
			}
			_, _ = pipe.Exec(ctx)
			return questions, nil
		})
		if err != nil {
			return nil, err
		}
		for _, q := range result.([]domain.Question) {
			found[q.ID] = q
		}
	}

	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := found[id]
		if !ok {
			return nil, domain.ErrQuestionNotFound
		}
		out = append(out, q)
	}
	return out, nil
}

func (r *CatalogRepository) cachedQuiz(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, quizKey(quizID)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

// cachedQuestions returns cache hits by id and the ids that still need loading.
func (r *CatalogRepository) cachedQuestions(ctx context.Context, ids []string) (map[string]domain.Question, []string) {
	found := make(map[string]domain.Question, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = questionKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return found, ids
	}

	var missing []string
	for i, id := range ids {
		if i >= len(values) {
			missing = append(missing, id)
			continue
		}
		s, ok := values[i].(string)
		if !ok {
			missing = append(missing, id)
			continue
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(s), &q); err != nil {
			missing = append(missing, id)
			continue
		}
		found[id] = q
	}
	return found, missing
}

func quizKey(quizID string) string {
	return "catalog:quiz:" + quizID
}

func questionKey(questionID string) string {
	return "catalog:question:" + questionID
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
