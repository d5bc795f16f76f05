package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine unwraps to exactly one of these.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrState         = errors.New("invalid state")
	ErrExpired       = errors.New("expired")
	ErrOutOfOrder    = errors.New("out of order")
	ErrInvalidChoice = errors.New("invalid choice")

	// ErrInvalidCatalog marks catalog entries rejected on load.
	ErrInvalidCatalog = errors.New("invalid catalog entry")
	// ErrConcurrentUpdate is returned when a compare-and-swap write lost a race.
	// The stored state is untouched and the operation is safe to retry.
	ErrConcurrentUpdate = errors.New("attempt was modified concurrently")
)

// Error pairs a kind with a human readable message.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = &Error{Kind: ErrNotFound, Msg: "quiz not found"}
	// ErrQuestionNotFound indicates a question referenced by a quiz is missing.
	ErrQuestionNotFound = &Error{Kind: ErrNotFound, Msg: "question not found"}
	// ErrAttemptNotFound is returned for unknown (or foreign) attempt ids.
	ErrAttemptNotFound = &Error{Kind: ErrNotFound, Msg: "attempt not found"}
	// ErrEntryNotFound is returned when a user has no leaderboard entry for a quiz.
	ErrEntryNotFound = &Error{Kind: ErrNotFound, Msg: "leaderboard entry not found"}
	// ErrEmptyQuiz is returned when a quiz has no questions to attempt.
	ErrEmptyQuiz = &Error{Kind: ErrNotFound, Msg: "quiz has no questions"}
	// ErrActiveAttemptExists guards the one-active-attempt-per-user-and-quiz rule.
	ErrActiveAttemptExists = &Error{Kind: ErrConflict, Msg: "an active attempt already exists for this quiz"}
	// ErrAttemptExpired is returned once the attempt deadline has passed.
	ErrAttemptExpired = &Error{Kind: ErrExpired, Msg: "attempt deadline has passed"}
)

// NotActiveError reports an operation against a terminal attempt.
func NotActiveError(status AttemptStatus) error {
	return &Error{Kind: ErrState, Msg: fmt.Sprintf("attempt is %s", status)}
}

// OutOfOrderError reports a submission for a position other than the next unanswered one.
func OutOfOrderError(expected, got int) error {
	return &Error{Kind: ErrOutOfOrder, Msg: fmt.Sprintf("expected answer for position %d, got %d", expected, got)}
}

// InvalidChoiceError reports a choice index outside the question's range.
func InvalidChoiceError(choice, count int) error {
	return &Error{Kind: ErrInvalidChoice, Msg: fmt.Sprintf("choice %d is outside 0..%d", choice, count-1)}
}

// KindOf maps an error to a stable machine-readable kind.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrState):
		return "state"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrOutOfOrder):
		return "out_of_order"
	case errors.Is(err, ErrInvalidChoice):
		return "invalid_choice"
	case errors.Is(err, ErrConcurrentUpdate):
		return "concurrent_update"
	default:
		return "internal"
	}
}
