package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quiz-attempt-service/internal/app"
)

type AttemptHandler struct {
	attempts *app.AttemptService
}

func NewAttemptHandler(attempts *app.AttemptService) *AttemptHandler {
	return &AttemptHandler{attempts: attempts}
}

type submitAnswerRequest struct {
	Position *int `json:"position" binding:"required"`
	Choice   *int `json:"choice" binding:"required"`
}

// Start handles POST /quizzes/:quizID/attempts.
func (h *AttemptHandler) Start(c *gin.Context) {
	view, err := h.attempts.StartAttempt(c.Request.Context(), callerFrom(c), c.Param("quizID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Status handles GET /attempts/:attemptID.
func (h *AttemptHandler) Status(c *gin.Context) {
	view, err := h.attempts.GetAttemptStatus(c.Request.Context(), callerFrom(c), c.Param("attemptID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Answer handles POST /attempts/:attemptID/answers.
func (h *AttemptHandler) Answer(c *gin.Context) {
	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "position and choice are required")
		return
	}
	result, err := h.attempts.SubmitAnswer(c.Request.Context(), callerFrom(c), c.Param("attemptID"), *req.Position, *req.Choice)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Expire handles POST /attempts/:attemptID/expire.
func (h *AttemptHandler) Expire(c *gin.Context) {
	view, err := h.attempts.ExpireIfDue(c.Request.Context(), callerFrom(c), c.Param("attemptID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Abandon handles POST /attempts/:attemptID/abandon.
func (h *AttemptHandler) Abandon(c *gin.Context) {
	view, err := h.attempts.AbandonAttempt(c.Request.Context(), callerFrom(c), c.Param("attemptID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
