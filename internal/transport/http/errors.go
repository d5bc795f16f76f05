package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quiz-attempt-service/internal/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "conflict", "state", "out_of_order":
		return http.StatusConflict
	case "expired":
		return http.StatusGone
	case "invalid_choice":
		return http.StatusUnprocessableEntity
	case "concurrent_update":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(err error) ErrorResponse {
	kind := domain.KindOf(err)
	msg := err.Error()
	if kind == "internal" {
		msg = "internal error"
	}
	return ErrorResponse{Error: kind, Message: msg}
}

func writeError(c *gin.Context, err error) {
	resp := errorResponse(err)
	if resp.Error == "internal" {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(statusFor(resp.Error), resp)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: msg})
}
