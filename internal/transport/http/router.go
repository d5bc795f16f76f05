package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
)

type RouterConfig struct {
	AllowOrigins []string
	Logger       *zap.Logger
}

// NewRouter wires the attempt, leaderboard and live feed endpoints.
func NewRouter(attempts *app.AttemptService, leaderboard *app.LeaderboardService, cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", userIDHeader, adminHeader},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	attemptHandler := NewAttemptHandler(attempts)
	leaderboardHandler := NewLeaderboardHandler(leaderboard)
	wsHandler := NewWSHandler(attempts, leaderboard, log)

	api := r.Group("/", Identity())
	api.POST("/quizzes/:quizID/attempts", attemptHandler.Start)
	api.GET("/quizzes/:quizID/leaderboard", leaderboardHandler.Top)
	api.GET("/quizzes/:quizID/leaderboard/me", leaderboardHandler.Standing)
	api.GET("/attempts/:attemptID", attemptHandler.Status)
	api.POST("/attempts/:attemptID/answers", attemptHandler.Answer)
	api.POST("/attempts/:attemptID/expire", attemptHandler.Expire)
	api.POST("/attempts/:attemptID/abandon", attemptHandler.Abandon)
	api.GET("/ws/leaderboard", wsHandler.ServeWS)

	return r
}
