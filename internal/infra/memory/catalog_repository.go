package memory

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-attempt-service/internal/domain"
)

// CatalogLoader fetches quizzes and questions from a backing store (e.g., document DB).
type CatalogLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadQuestions(ctx context.Context, ids []string) ([]domain.Question, error)
}

// CatalogRepository caches quizzes and questions with TTL to avoid repeated DB hits.
type CatalogRepository struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu        sync.RWMutex
	quizzes   map[string]cachedQuiz
	questions map[string]cachedQuestion
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewCatalogRepository(loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		loader:    loader,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		quizzes:   make(map[string]cachedQuiz),
		questions: make(map[string]cachedQuestion),
	}
}

func (r *CatalogRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cachedQuiz(quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do("quiz:"+quizID, func() (interface{}, error) {
		if quiz, ok := r.cachedQuiz(quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		quiz = quiz.WithDefaults()

		r.mu.Lock()
		r.quizzes[quizID] = cachedQuiz{quiz: quiz, expiresAt: r.clock().Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *CatalogRepository) GetQuestions(ctx context.Context, ids []string) ([]domain.Question, error) {
	found, missing := r.cachedQuestions(ids)
	if len(missing) > 0 {
		result, err, _ := r.sf.Do("questions:"+strings.Join(missing, ","), func() (interface{}, error) {
			return r.loader.LoadQuestions(ctx, missing)
		})
		if err != nil {
			return nil, err
		}

		expiresAt := r.clock().Add(r.ttlWithJitter())
		r.mu.Lock()
		for _, q := range result.([]domain.Question) {
			r.questions[q.ID] = cachedQuestion{question: q, expiresAt: expiresAt}
			found[q.ID] = q
		}
		r.mu.Unlock()
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

func (r *CatalogRepository) cachedQuiz(quizID string) (domain.Quiz, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.quizzes[quizID]; ok && entry.expiresAt.After(now) {
		return entry.quiz, true
	}
	return domain.Quiz{}, false
}

func (r *CatalogRepository) cachedQuestions(ids []string) (map[string]domain.Question, []string) {
	now := r.clock()
	found := make(map[string]domain.Question, len(ids))
	var missing []string

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range ids {
		if entry, ok := r.questions[id]; ok && entry.expiresAt.After(now) {
			found[id] = entry.question
			continue
		}
		missing = append(missing, id)
	}
	return found, missing
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
