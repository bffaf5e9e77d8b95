package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRateLimit_DisabledWithoutRedis(t *testing.T) {
	router := setupTestRouter()
	router.GET("/limited", RateLimit(nil, RateLimitConfig{Prefix: "bookings", Requests: 1, Window: time.Minute}, testLogger()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 3; i++ {
		w := doRequest(router, "/limited", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestRateLimit_FailsOpenWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	router := setupTestRouter()
	router.GET("/limited", RateLimit(rdb, RateLimitConfig{Prefix: "bookings", Requests: 1, Window: time.Minute}, testLogger()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := doRequest(router, "/limited", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimitKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Authenticated requester", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
		userID := uuid.MustParse("a1b2c3d4-0000-4e5f-8a9b-1c2d3e4f5a6b")
		c.Set(UserContextKey, UserContext{UserID: userID})

		assert.Equal(t, "ratelimit:bookings:user:a1b2c3d4-0000-4e5f-8a9b-1c2d3e4f5a6b", rateLimitKey("bookings", c))
	})

	t.Run("Anonymous requester", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/coupons/validate", nil)
		c.Request.RemoteAddr = "198.51.100.7:5555"

		assert.Equal(t, "ratelimit:coupons:ip:198.51.100.7", rateLimitKey("coupons", c))
	})
}
