package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/scoring"
)

// AttemptService owns the attempt lifecycle: start, answer intake, lazy expiry,
// abandonment and the hand-off of finalized attempts to the leaderboard.
//
// Work on one attempt is serialized by an in-process keyed lock; every write is
// additionally a compare-and-swap against the store so that several instances
// sharing Redis or Postgres still produce exactly one winner.
type AttemptService struct {
	attempts AttemptRepository
	catalog  CatalogRepository
	results  ResultRecorder
	scorer   scoring.Scorer
	locks    *keyedMutex
	now      func() time.Time
	newID    func() string
	log      *zap.Logger
}

// Option customizes an AttemptService.
type Option func(*AttemptService)

// WithClock replaces time.Now, mostly for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *AttemptService) { s.now = now }
}

// WithScorer replaces the default exact-match scoring policy.
func WithScorer(scorer scoring.Scorer) Option {
	return func(s *AttemptService) { s.scorer = scorer }
}

// WithLogger sets the logger; a nil logger disables logging.
func WithLogger(log *zap.Logger) Option {
	return func(s *AttemptService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithIDGenerator replaces the UUID attempt id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *AttemptService) { s.newID = newID }
}

func NewAttemptService(attempts AttemptRepository, catalog CatalogRepository, results ResultRecorder, opts ...Option) *AttemptService {
	s := &AttemptService{
		attempts: attempts,
		catalog:  catalog,
		results:  results,
		scorer:   scoring.Default(),
		locks:    newKeyedMutex(),
		now:      time.Now,
		newID:    uuid.NewString,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartAttempt snapshots the quiz into a new active attempt for the caller and
// returns it together with the first question.
func (s *AttemptService) StartAttempt(ctx context.Context, caller Caller, quizID string) (domain.AttemptView, error) {
	unlock := s.locks.Lock("start:" + caller.UserID + ":" + quizID)
	defer unlock()

	existing, err := s.attempts.FindActive(ctx, caller.UserID, quizID)
	switch {
	case err == nil:
		// An overdue attempt is expired on this interaction rather than blocking a new one.
		expired, expErr := s.expireActive(ctx, existing.ID)
		if expErr != nil {
			return domain.AttemptView{}, expErr
		}
		if !expired {
			return domain.AttemptView{}, domain.ErrActiveAttemptExists
		}
	case !errors.Is(err, domain.ErrNotFound):
		return domain.AttemptView{}, fmt.Errorf("find active attempt: %w", err)
	}

	quiz, err := s.catalog.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.AttemptView{}, err
	}
	if len(quiz.QuestionIDs) == 0 {
		return domain.AttemptView{}, domain.ErrEmptyQuiz
	}
	questions, err := s.catalog.GetQuestions(ctx, quiz.QuestionIDs)
	if err != nil {
		return domain.AttemptView{}, err
	}

	attempt := domain.NewAttempt(s.newID(), caller.UserID, quiz, questions, s.now())
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return domain.AttemptView{}, err
	}

	s.log.Info("attempt started",
		zap.String("attempt_id", attempt.ID),
		zap.String("quiz_id", quizID),
		zap.String("user_id", caller.UserID),
		zap.Time("deadline", attempt.Deadline),
	)
	return attempt.View(), nil
}

// SubmitAnswer records choice for position, in order and before the deadline.
func (s *AttemptService) SubmitAnswer(ctx context.Context, caller Caller, attemptID string, position, choice int) (domain.AnswerResult, error) {
	unlock := s.locks.Lock(attemptID)
	defer unlock()

	attempt, err := s.load(ctx, caller, attemptID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	now := s.now()
	if attempt.Status.Terminal() {
		s.settleQuietly(ctx, &attempt)
		// Past the deadline the answer is late regardless of which call ended the attempt.
		if attempt.Status == domain.StatusExpired || attempt.Overdue(now) {
			return domain.AnswerResult{}, domain.ErrAttemptExpired
		}
		return domain.AnswerResult{}, domain.NotActiveError(attempt.Status)
	}

	if attempt.Overdue(now) {
		if err := s.finalize(ctx, &attempt, domain.StatusExpired, now); err != nil {
			return domain.AnswerResult{}, err
		}
		return domain.AnswerResult{}, domain.ErrAttemptExpired
	}

	record, err := attempt.Submit(position, choice, now, s.scorer.Score)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if err := s.attempts.Update(ctx, &attempt); err != nil {
		return domain.AnswerResult{}, fmt.Errorf("save answer: %w", err)
	}

	if attempt.Status.Terminal() {
		s.log.Info("attempt completed",
			zap.String("attempt_id", attempt.ID),
			zap.String("quiz_id", attempt.QuizID),
			zap.String("user_id", attempt.UserID),
			zap.Int("score", attempt.Score),
		)
		s.settleQuietly(ctx, &attempt)
	}

	question := attempt.Questions[record.Position]
	result := domain.AnswerResult{
		AttemptID: attempt.ID,
		Position:  record.Position,
		Correct:   *record.Choice == question.CorrectIndex,
		Awarded:   record.Awarded,
		Score:     attempt.Score,
		Status:    attempt.Status,
	}
	if attempt.Status == domain.StatusActive {
		result.Next = attempt.CurrentQuestion()
	}
	return result, nil
}

// ExpireIfDue finalizes an overdue active attempt as expired. It is idempotent and
// also completes a leaderboard hand-off that failed earlier.
func (s *AttemptService) ExpireIfDue(ctx context.Context, caller Caller, attemptID string) (domain.AttemptView, error) {
	unlock := s.locks.Lock(attemptID)
	defer unlock()

	attempt, err := s.load(ctx, caller, attemptID)
	if err != nil {
		return domain.AttemptView{}, err
	}
	if attempt.Status == domain.StatusActive {
		if now := s.now(); attempt.Overdue(now) {
			if err := s.finalize(ctx, &attempt, domain.StatusExpired, now); err != nil {
				return domain.AttemptView{}, err
			}
		}
		return attempt.View(), nil
	}
	if err := s.settle(ctx, &attempt); err != nil {
		return domain.AttemptView{}, err
	}
	return attempt.View(), nil
}

// GetAttemptStatus reports the attempt after applying any due expiry.
func (s *AttemptService) GetAttemptStatus(ctx context.Context, caller Caller, attemptID string) (domain.AttemptView, error) {
	return s.ExpireIfDue(ctx, caller, attemptID)
}

// AbandonAttempt ends an active attempt on the participant's request. It is scored
// like an expired attempt and immediately stops further submissions.
func (s *AttemptService) AbandonAttempt(ctx context.Context, caller Caller, attemptID string) (domain.AttemptView, error) {
	unlock := s.locks.Lock(attemptID)
	defer unlock()

	attempt, err := s.load(ctx, caller, attemptID)
	if err != nil {
		return domain.AttemptView{}, err
	}
	if attempt.Status.Terminal() {
		s.settleQuietly(ctx, &attempt)
		return domain.AttemptView{}, domain.NotActiveError(attempt.Status)
	}

	now := s.now()
	if attempt.Overdue(now) {
		if err := s.finalize(ctx, &attempt, domain.StatusExpired, now); err != nil {
			return domain.AttemptView{}, err
		}
		return attempt.View(), domain.ErrAttemptExpired
	}
	if err := s.finalize(ctx, &attempt, domain.StatusAbandoned, now); err != nil {
		return domain.AttemptView{}, err
	}
	return attempt.View(), nil
}

// expireActive expires attemptID if it is overdue and reports whether it is no longer active.
func (s *AttemptService) expireActive(ctx context.Context, attemptID string) (bool, error) {
	unlock := s.locks.Lock(attemptID)
	defer unlock()

	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return false, err
	}
	if attempt.Status != domain.StatusActive {
		return true, nil
	}
	now := s.now()
	if !attempt.Overdue(now) {
		return false, nil
	}
	if err := s.finalize(ctx, &attempt, domain.StatusExpired, now); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AttemptService) load(ctx context.Context, caller Caller, attemptID string) (domain.Attempt, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if !caller.owns(attempt) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

// finalize persists the terminal transition and then hands the result to the leaderboard.
// A failed hand-off is logged and retried on the next call touching the attempt.
func (s *AttemptService) finalize(ctx context.Context, attempt *domain.Attempt, status domain.AttemptStatus, now time.Time) error {
	next := attempt.Clone()
	if err := next.Finalize(status, now, s.scorer.Score); err != nil {
		return err
	}
	if err := s.attempts.Update(ctx, &next); err != nil {
		return fmt.Errorf("finalize attempt: %w", err)
	}
	*attempt = next

	s.log.Info("attempt finalized",
		zap.String("attempt_id", attempt.ID),
		zap.String("quiz_id", attempt.QuizID),
		zap.String("user_id", attempt.UserID),
		zap.String("status", string(status)),
		zap.Int("score", attempt.Score),
	)
	s.settleQuietly(ctx, attempt)
	return nil
}

// settle records the result of a terminal attempt exactly once.
func (s *AttemptService) settle(ctx context.Context, attempt *domain.Attempt) error {
	if !attempt.Status.Terminal() || attempt.ResultRecorded {
		return nil
	}
	if err := s.results.RecordResult(ctx, *attempt); err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	attempt.ResultRecorded = true
	err := s.attempts.Update(ctx, attempt)
	if err == nil {
		return nil
	}
	attempt.ResultRecorded = false
	if !errors.Is(err, domain.ErrConcurrentUpdate) {
		return fmt.Errorf("mark result recorded: %w", err)
	}
	// Another writer updated the terminal attempt first; the result is already ingested.
	stored, getErr := s.attempts.Get(ctx, attempt.ID)
	if getErr != nil {
		return fmt.Errorf("reload attempt: %w", getErr)
	}
	*attempt = stored
	return nil
}

func (s *AttemptService) settleQuietly(ctx context.Context, attempt *domain.Attempt) {
	if err := s.settle(ctx, attempt); err != nil {
		s.log.Error("leaderboard hand-off failed",
			zap.String("attempt_id", attempt.ID),
			zap.String("quiz_id", attempt.QuizID),
			zap.Error(err),
		)
	}
}
