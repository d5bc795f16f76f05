package http

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

type testServer struct {
	router *gin.Engine
	clock  *testClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	catalog := memory.NewCatalogRepository(memory.NewStaticCatalog(
		[]domain.Quiz{{ID: "quiz-1", Title: "Arithmetic", QuestionIDs: []string{"q1", "q2"}, TimeLimitSec: 60}},
		[]domain.Question{
			{ID: "q1", Prompt: "What is 2 + 2?", Choices: []string{"3", "4", "5"}, CorrectIndex: 1, Points: 1},
			{ID: "q2", Prompt: "What is 3 + 3?", Choices: []string{"6", "7"}, CorrectIndex: 0, Points: 1},
		},
	), time.Minute)
	leaderboard := app.NewLeaderboardService(memory.NewLeaderboardStore(), app.NewFeed(), app.WithLeaderboardClock(clock.Now))
	attempts := app.NewAttemptService(memory.NewAttemptStore(), catalog, leaderboard, app.WithClock(clock.Now))

	return &testServer{router: NewRouter(attempts, leaderboard, RouterConfig{}), clock: clock}
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
