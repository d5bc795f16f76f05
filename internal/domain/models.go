package domain

import (
	"fmt"
	"time"
)

const (
	// DefaultCategory is applied to quizzes stored without a category.
	DefaultCategory = "General"
	// DefaultTimeLimitSec is the overall budget used when a quiz declares none.
	DefaultTimeLimitSec = 60
)

// Quiz is the catalog definition of a quiz. Questions are referenced by id, in order.
type Quiz struct {
	ID                   string   `json:"id" yaml:"id"`
	Title                string   `json:"title" yaml:"title"`
	Description          string   `json:"description" yaml:"description"`
	Category             string   `json:"category" yaml:"category"`
	QuestionIDs          []string `json:"questionIds" yaml:"questionIds"`
	TimeLimitSec         int      `json:"timeLimitSec" yaml:"timeLimitSec"`
	QuestionTimeLimitSec int      `json:"questionTimeLimitSec,omitempty" yaml:"questionTimeLimitSec"`
}

// WithDefaults fills in the catalog defaults for optional fields.
func (q Quiz) WithDefaults() Quiz {
	if q.Category == "" {
		q.Category = DefaultCategory
	}
	return q
}

// Budget resolves the overall time budget of an attempt at this quiz.
func (q Quiz) Budget(questionCount int) time.Duration {
	switch {
	case q.TimeLimitSec > 0:
		return time.Duration(q.TimeLimitSec) * time.Second
	case q.QuestionTimeLimitSec > 0 && questionCount > 0:
		return time.Duration(q.QuestionTimeLimitSec*questionCount) * time.Second
	default:
		return DefaultTimeLimitSec * time.Second
	}
}

// Question models an MCQ question with exactly one correct choice.
type Question struct {
	ID           string   `json:"id" yaml:"id"`
	Prompt       string   `json:"prompt" yaml:"prompt"`
	Choices      []string `json:"choices" yaml:"choices"`
	CorrectIndex int      `json:"correctIndex" yaml:"correctIndex"`
	Points       int      `json:"points" yaml:"points"` // defaults to 1 if zero
}

// PointValue is the number of points a correct answer is worth.
func (q Question) PointValue() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// ValidChoice reports whether idx addresses one of the question's choices.
func (q Question) ValidChoice(idx int) bool {
	return idx >= 0 && idx < len(q.Choices)
}

// Validate rejects questions that could never be answered or scored correctly.
func (q Question) Validate() error {
	switch {
	case q.ID == "":
		return fmt.Errorf("%w: question without id", ErrInvalidCatalog)
	case len(q.Choices) == 0:
		return fmt.Errorf("%w: question %s has no choices", ErrInvalidCatalog, q.ID)
	case !q.ValidChoice(q.CorrectIndex):
		return fmt.Errorf("%w: question %s correctIndex %d is outside 0..%d", ErrInvalidCatalog, q.ID, q.CorrectIndex, len(q.Choices)-1)
	}
	return nil
}

// QuestionView is what a participant sees. It never carries the correct index.
type QuestionView struct {
	Position   int       `json:"position"`
	QuestionID string    `json:"questionId"`
	Prompt     string    `json:"prompt"`
	Choices    []string  `json:"choices"`
	Points     int       `json:"points"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// AttemptView summarizes an attempt for the caller.
type AttemptView struct {
	AttemptID   string        `json:"attemptId"`
	QuizID      string        `json:"quizId"`
	UserID      string        `json:"userId"`
	Status      AttemptStatus `json:"status"`
	Score       int           `json:"score"`
	Answered    int           `json:"answered"`
	Total       int           `json:"total"`
	StartedAt   time.Time     `json:"startedAt"`
	Deadline    time.Time     `json:"deadline"`
	FinalizedAt *time.Time    `json:"finalizedAt,omitempty"`
	Question    *QuestionView `json:"question,omitempty"`
}

// AnswerResult summarizes the outcome of a single submission.
type AnswerResult struct {
	AttemptID string        `json:"attemptId"`
	Position  int           `json:"position"`
	Correct   bool          `json:"correct"`
	Awarded   int           `json:"awarded"`
	Score     int           `json:"score"`
	Status    AttemptStatus `json:"status"`
	Next      *QuestionView `json:"next,omitempty"`
}
