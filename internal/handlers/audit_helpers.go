package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"relationship-service/internal/middleware"
)

// requestIDFromHeader returns the id assigned by middleware.RequestLogger, or a
// fresh one when the handler runs without it.
func requestIDFromHeader(c *gin.Context) string {
	if requestID := c.GetHeader(middleware.RequestIDHeader); requestID != "" {
		return requestID
	}
	return uuid.NewString()
}

// userIDFromContext reads the caller id set by middleware.JWTAuth. Headers are
// never trusted for identity.
func userIDFromContext(c *gin.Context) *int64 {
	if v, ok := c.Get(middleware.UserIDKey); ok {
		if userID, ok := v.(int64); ok {
			return &userID
		}
	}
	return nil
}
