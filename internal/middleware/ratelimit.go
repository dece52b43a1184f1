package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/framefind/framefind/internal/apperrors"
)

// RateLimiterStore manages per-user rate limiters
type RateLimiterStore struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiterStore creates a new rate limiter store
func NewRateLimiterStore(requestsPerMinute int) *RateLimiterStore {
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiterStore{
		limiters: make(map[int64]*rate.Limiter),
		limit:    rate.Limit(float64(requestsPerMinute) / 60.0), // Convert to per-second
		burst:    burst,
	}
}

// GetLimiter returns a rate limiter for the given user ID
func (store *RateLimiterStore) GetLimiter(userID int64) *rate.Limiter {
	store.mu.Lock()
	defer store.mu.Unlock()

	limiter, exists := store.limiters[userID]
	if !exists {
		limiter = rate.NewLimiter(store.limit, store.burst)
		store.limiters[userID] = limiter
	}
	return limiter
}

// RateLimit enforces a per-user request budget on the wrapped endpoint. Must
// run after AuthRequired.
func RateLimit(store *RateLimiterStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			AbortWithError(c, apperrors.Unauthorized("authentication required"))
			return
		}

		limiter := store.GetLimiter(userID)
		if !limiter.Allow() {
			c.Header("X-RateLimit-Limit", strconv.Itoa(int(store.limit*60)))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Detail:    "search rate limit exceeded",
				Status:    http.StatusTooManyRequests,
				Timestamp: time.Now().UTC(),
				Path:      c.Request.URL.Path,
			})
			return
		}

		c.Next()
	}
}
