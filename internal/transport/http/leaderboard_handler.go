package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quiz-attempt-service/internal/app"
)

type LeaderboardHandler struct {
	leaderboard *app.LeaderboardService
}

func NewLeaderboardHandler(leaderboard *app.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

// Top handles GET /quizzes/:quizID/leaderboard?limit=N.
func (h *LeaderboardHandler) Top(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	lb, err := h.leaderboard.GetLeaderboard(c.Request.Context(), c.Param("quizID"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lb)
}

// Standing handles GET /quizzes/:quizID/leaderboard/me.
func (h *LeaderboardHandler) Standing(c *gin.Context) {
	entry, err := h.leaderboard.GetStanding(c.Request.Context(), c.Param("quizID"), callerFrom(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
