package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/lexvault/lexvault/internal/observability"
)

func limitedRouter(limiter *RateLimiter, scope string, limit int, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(UserIDKey, userID)
		c.Next()
	})
	router.Use(limiter.Limit(scope, limit))
	router.GET("/limited", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestLimitLocalFallback(t *testing.T) {
	// No Redis client: the limiter counts locally.
	limiter := NewRateLimiter(nil, time.Minute, observability.NewNoopLogger())
	router := limitedRouter(limiter, "chat", 2, uuid.New())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestLimitZeroLimitRejectsWithoutPanic(t *testing.T) {
	limiter := NewRateLimiter(nil, time.Minute, observability.NewNoopLogger())
	router := limitedRouter(limiter, "chat", 0, uuid.New())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLimitIsPerUser(t *testing.T) {
	limiter := NewRateLimiter(nil, time.Minute, observability.NewNoopLogger())

	first := limitedRouter(limiter, "chat", 1, uuid.New())
	second := limitedRouter(limiter, "chat", 1, uuid.New())

	w := httptest.NewRecorder()
	first.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// A different user has an untouched budget.
	w = httptest.NewRecorder()
	second.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// The first user is now out of budget.
	w = httptest.NewRecorder()
	first.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLimitRequiresUserContext(t *testing.T) {
	limiter := NewRateLimiter(nil, time.Minute, observability.NewNoopLogger())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(limiter.Limit("chat", 5))
	router.GET("/limited", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLimitSetsRateHeaders(t *testing.T) {
	limiter := NewRateLimiter(nil, time.Minute, observability.NewNoopLogger())
	router := limitedRouter(limiter, "upload", 5, uuid.New())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))

	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
}
