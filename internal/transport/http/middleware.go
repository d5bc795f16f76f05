package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
)

const (
	userIDHeader = "X-User-ID"
	adminHeader  = "X-User-Admin"
	callerCtxKey = "caller"
	userIDQuery  = "userId"
)

// Identity trusts the user id supplied by the upstream session layer. WebSocket
// clients cannot set headers, so the userId query parameter is accepted as well.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID == "" {
			userID = strings.TrimSpace(c.Query(userIDQuery))
		}
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "X-User-ID header required"})
			return
		}
		c.Set(callerCtxKey, app.Caller{
			UserID:  userID,
			IsAdmin: strings.EqualFold(c.GetHeader(adminHeader), "true"),
		})
		c.Next()
	}
}

func callerFrom(c *gin.Context) app.Caller {
	if v, ok := c.Get(callerCtxKey); ok {
		if caller, ok := v.(app.Caller); ok {
			return caller
		}
	}
	return app.Caller{}
}

// RequestLogger logs one line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			fields = append(fields, zap.String("errors", errs.String()))
			log.Error("request failed", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}
