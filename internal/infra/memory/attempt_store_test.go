package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
)

func newAttempt(id, userID string) domain.Attempt {
	quiz := domain.Quiz{ID: "quiz-1", QuestionIDs: []string{"q1"}, TimeLimitSec: 60}
	questions := []domain.Question{{ID: "q1", Choices: []string{"a", "b"}, CorrectIndex: 1}}
	return domain.NewAttempt(id, userID, quiz, questions, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestAttemptStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	if err := store.Create(ctx, newAttempt("a1", "u1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, newAttempt("a2", "u1")); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for second active attempt, got %v", err)
	}

	active, err := store.FindActive(ctx, "u1", "quiz-1")
	if err != nil || active.ID != "a1" {
		t.Fatalf("expected active a1, got %+v (%v)", active, err)
	}

	score := func(domain.Question, *int) int { return 0 }
	if err := active.Finalize(domain.StatusAbandoned, active.StartedAt.Add(time.Second), score); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := store.Update(ctx, &active); err != nil {
		t.Fatalf("update: %v", err)
	}
	if active.Version != 1 {
		t.Fatalf("expected version 1, got %d", active.Version)
	}
	if _, err := store.FindActive(ctx, "u1", "quiz-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no active attempt after finalize, got %v", err)
	}
	if err := store.Create(ctx, newAttempt("a2", "u1")); err != nil {
		t.Fatalf("create after finalize: %v", err)
	}
}

func TestAttemptStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	if err := store.Create(ctx, newAttempt("a1", "u1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, _ := store.Get(ctx, "a1")
	second, _ := store.Get(ctx, "a1")

	if err := store.Update(ctx, &first); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := store.Update(ctx, &second); !errors.Is(err, domain.ErrConcurrentUpdate) {
		t.Fatalf("expected stale update to fail, got %v", err)
	}
}

func TestAttemptStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	if err := store.Create(ctx, newAttempt("a1", "u1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := store.Get(ctx, "a1")
	got.Answers = append(got.Answers, domain.AnswerRecord{Position: 0, Awarded: 5})
	got.Questions[0].Choices[0] = "mutated"

	again, _ := store.Get(ctx, "a1")
	if len(again.Answers) != 0 || again.Questions[0].Choices[0] != "a" {
		t.Fatalf("store state leaked through a returned attempt: %+v", again)
	}
}

func TestAttemptStoreMissing(t *testing.T) {
	store := NewAttemptStore()
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	a := newAttempt("nope", "u1")
	if err := store.Update(context.Background(), &a); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}
