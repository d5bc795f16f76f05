// Package scoring maps a submitted answer to points. Policies are pure functions of
// the question and the choice so they can be swapped without touching attempt state.
package scoring

import "quiz-attempt-service/internal/domain"

// Scorer computes the points awarded for one answer. A nil choice means the
// question was left unanswered.
type Scorer interface {
	Score(q domain.Question, choice *int) int
}

// Func adapts a plain function to Scorer.
type Func func(q domain.Question, choice *int) int

func (f Func) Score(q domain.Question, choice *int) int { return f(q, choice) }

// ExactMatch awards the full point value for the stored correct index and zero otherwise.
type ExactMatch struct{}

func (ExactMatch) Score(q domain.Question, choice *int) int {
	if choice == nil || *choice != q.CorrectIndex {
		return 0
	}
	return q.PointValue()
}

// Default is the policy used when none is configured.
func Default() Scorer { return ExactMatch{} }
