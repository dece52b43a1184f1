package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/framefind/framefind/internal/apperrors"
	"github.com/framefind/framefind/internal/service"
)

// userIDKey is the context key holding the authenticated user id.
const userIDKey = "user_id"

// AuthRequired validates the session token and stores the user id in the
// request context. The token is taken from the `token` query parameter, a
// Bearer Authorization header, or a `token` form field (multipart uploads).
func AuthRequired(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			AbortWithError(c, apperrors.Unauthorized("authentication required"))
			return
		}

		userID, err := auth.Validate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id stored by AuthRequired.
func UserID(c *gin.Context) (int64, bool) {
	value, exists := c.Get(userIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := value.(int64)
	return userID, ok
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	if header := c.GetHeader("Authorization"); header != "" {
		if bearer := strings.TrimPrefix(header, "Bearer "); bearer != header {
			return bearer
		}
	}
	return c.PostForm("token")
}
