package domain

import (
	"errors"
	"testing"
	"time"
)

func exactMatch(q Question, choice *int) int {
	if choice != nil && *choice == q.CorrectIndex {
		return q.PointValue()
	}
	return 0
}

func sampleAttempt(now time.Time) Attempt {
	quiz := Quiz{ID: "quiz-1", QuestionIDs: []string{"q1", "q2", "q3"}, TimeLimitSec: 60}
	questions := []Question{
		{ID: "q1", Prompt: "2 + 2?", Choices: []string{"3", "4"}, CorrectIndex: 1, Points: 10},
		{ID: "q2", Prompt: "3 + 3?", Choices: []string{"6", "7"}, CorrectIndex: 0, Points: 10},
		{ID: "q3", Prompt: "5 + 5?", Choices: []string{"9", "10", "11"}, CorrectIndex: 1, Points: 10},
	}
	return NewAttempt("a1", "u1", quiz, questions, now)
}

func TestSubmitCompletesOnLastAnswer(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := sampleAttempt(start)

	for pos, choice := range []int{1, 0, 2} {
		if _, err := a.Submit(pos, choice, start.Add(time.Duration(pos+1)*time.Second), exactMatch); err != nil {
			t.Fatalf("submit %d: %v", pos, err)
		}
	}
	if a.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", a.Status)
	}
	if a.Score != 20 {
		t.Fatalf("expected score 20, got %d", a.Score)
	}
	if a.FinalizedAt == nil || !a.FinalizedAt.Equal(start.Add(3*time.Second)) {
		t.Fatalf("unexpected finalized timestamp %v", a.FinalizedAt)
	}
	if got := a.Result().CompletionMillis; got != 3000 {
		t.Fatalf("expected 3000ms completion, got %d", got)
	}
}

func TestSubmitRejectsOutOfOrderAndInvalidChoice(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := sampleAttempt(start)

	if _, err := a.Submit(1, 0, start, exactMatch); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("expected out of order, got %v", err)
	}
	if _, err := a.Submit(0, 5, start, exactMatch); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected invalid choice, got %v", err)
	}
	if _, err := a.Submit(0, -1, start, exactMatch); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected invalid choice for negative index, got %v", err)
	}
	if len(a.Answers) != 0 || a.Score != 0 {
		t.Fatalf("rejected submissions must not change state: %+v", a)
	}

	if _, err := a.Submit(0, 1, start, exactMatch); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := a.Submit(0, 1, start, exactMatch); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("expected re-answer to be out of order, got %v", err)
	}
	if a.Score != 10 {
		t.Fatalf("expected score 10, got %d", a.Score)
	}
}

func TestSubmitAtDeadlineIsAccepted(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := sampleAttempt(start)

	if _, err := a.Submit(0, 1, a.Deadline, exactMatch); err != nil {
		t.Fatalf("submission exactly at the deadline should pass: %v", err)
	}
	if _, err := a.Submit(1, 0, a.Deadline.Add(time.Nanosecond), exactMatch); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestFinalizePadsUnansweredAndCapsCompletion(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := sampleAttempt(start)

	if _, err := a.Submit(0, 1, start.Add(time.Second), exactMatch); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := a.Finalize(StatusExpired, start.Add(5*time.Minute), exactMatch); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if len(a.Answers) != 3 {
		t.Fatalf("expected padded answers, got %d", len(a.Answers))
	}
	if a.Answers[2].Choice != nil || a.Answers[2].Awarded != 0 {
		t.Fatalf("expected null answer, got %+v", a.Answers[2])
	}
	if a.Score != 10 {
		t.Fatalf("expected partial score 10, got %d", a.Score)
	}
	if got := a.Result().CompletionMillis; got != 60_000 {
		t.Fatalf("expected completion capped at budget, got %d", got)
	}
	if err := a.Finalize(StatusAbandoned, start.Add(6*time.Minute), exactMatch); !errors.Is(err, ErrState) {
		t.Fatalf("expected second finalization to fail, got %v", err)
	}
	if a.Status != StatusExpired {
		t.Fatalf("status changed after second finalize: %s", a.Status)
	}
}

func TestBudgetResolution(t *testing.T) {
	tests := []struct {
		name  string
		quiz  Quiz
		count int
		want  time.Duration
	}{
		{name: "overall budget", quiz: Quiz{TimeLimitSec: 90, QuestionTimeLimitSec: 10}, count: 3, want: 90 * time.Second},
		{name: "per question only", quiz: Quiz{QuestionTimeLimitSec: 15}, count: 4, want: time.Minute},
		{name: "default", quiz: Quiz{}, count: 4, want: DefaultTimeLimitSec * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.quiz.Budget(tt.count); got != tt.want {
				t.Errorf("Budget() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestViewHidesCorrectIndex(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := sampleAttempt(start)
	a.QuestionTimeLimitSec = 20

	view := a.View()
	if view.Question == nil || view.Question.QuestionID != "q1" {
		t.Fatalf("expected first question, got %+v", view.Question)
	}
	if !view.Question.ExpiresAt.Equal(start.Add(20 * time.Second)) {
		t.Fatalf("unexpected question expiry %v", view.Question.ExpiresAt)
	}

	// Mutating the view must not leak into the snapshot.
	view.Question.Choices[0] = "changed"
	if a.Questions[0].Choices[0] != "3" {
		t.Fatalf("view shares choice storage with the attempt")
	}
}

func TestQuestionValidate(t *testing.T) {
	tests := []struct {
		name    string
		q       Question
		wantErr bool
	}{
		{name: "valid", q: Question{ID: "q1", Choices: []string{"a", "b"}, CorrectIndex: 1}},
		{name: "missing id", q: Question{Choices: []string{"a"}}, wantErr: true},
		{name: "no choices", q: Question{ID: "q1"}, wantErr: true},
		{name: "index past end", q: Question{ID: "q1", Choices: []string{"a", "b"}, CorrectIndex: 2}, wantErr: true},
		{name: "negative index", q: Question{ID: "q1", Choices: []string{"a"}, CorrectIndex: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCatalog) {
				t.Fatalf("expected ErrInvalidCatalog, got %v", err)
			}
		})
	}
}
