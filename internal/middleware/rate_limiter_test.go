package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestKeyedRateLimiterPerKeyBuckets(t *testing.T) {
	limiter := NewKeyedRateLimiter(1, 2, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("user:1"))
	assert.True(t, limiter.Allow("user:1"))
	assert.False(t, limiter.Allow("user:1"))
	assert.True(t, limiter.Allow("user:2"))

	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("user:1"))
}

func TestKeyedRateLimiterForgetsIdleKeys(t *testing.T) {
	limiter := NewKeyedRateLimiter(1, 1, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	limiter.Allow("user:1")
	now = now.Add(2 * time.Minute)
	limiter.Allow("user:2")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.visitors, "user:1")
	assert.Contains(t, limiter.visitors, "user:2")
}

func TestRateLimitMiddlewareKeysByUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewKeyedRateLimiter(1, 1, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	var current int64
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", current)
		c.Next()
	})
	r.Use(RateLimit(limiter))
	r.POST("/relationships", func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func(userID int64) int {
		current = userID
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/relationships", nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, send(1))
	assert.Equal(t, http.StatusTooManyRequests, send(1))
	assert.Equal(t, http.StatusCreated, send(2))
}
