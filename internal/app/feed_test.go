package app

import (
	"sync"
	"testing"

	"quiz-attempt-service/internal/domain"
)

func TestFeedDropsStaleSnapshots(t *testing.T) {
	feed := NewFeed()
	ch, cancel := feed.Subscribe("quiz-1", domain.Leaderboard{QuizID: "quiz-1"})
	defer cancel()

	// Overfill the buffer; the newest snapshot must survive.
	for i := 0; i < 20; i++ {
		feed.Publish(domain.Leaderboard{QuizID: "quiz-1", Entries: []domain.LeaderboardEntry{{BestScore: i}}})
	}

	var last domain.Leaderboard
	for len(ch) > 0 {
		last = <-ch
	}
	if len(last.Entries) != 1 || last.Entries[0].BestScore != 19 {
		t.Fatalf("expected latest snapshot, got %+v", last)
	}
}

func TestFeedScopesByQuiz(t *testing.T) {
	feed := NewFeed()
	ch, cancel := feed.Subscribe("quiz-1", domain.Leaderboard{QuizID: "quiz-1"})
	defer cancel()
	<-ch

	feed.Publish(domain.Leaderboard{QuizID: "quiz-2"})
	if len(ch) != 0 {
		t.Fatalf("received a snapshot for another quiz")
	}
}

func TestFeedCancelClosesChannel(t *testing.T) {
	feed := NewFeed()
	ch, cancel := feed.Subscribe("quiz-1", domain.Leaderboard{QuizID: "quiz-1"})
	<-ch

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if n := feed.subscriberCount("quiz-1"); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
	// Publishing after cancel must not panic.
	feed.Publish(domain.Leaderboard{QuizID: "quiz-1"})
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	locks := newKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("attempt-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Fatalf("lost updates: %d", counter)
	}
	if n := locks.size(); n != 0 {
		t.Fatalf("expected lock table to be empty, got %d entries", n)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	locks := newKeyedMutex()
	unlockA := locks.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("b")
		unlock()
		close(done)
	}()
	<-done
	if n := locks.size(); n != 1 {
		t.Fatalf("expected one held lock, got %d", n)
	}
}
