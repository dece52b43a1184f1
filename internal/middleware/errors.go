package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/framefind/framefind/internal/apperrors"
)

// ErrorResponse is the single error shape rendered to clients.
type ErrorResponse struct {
	Detail    string    `json:"detail"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
}

// ErrorHandler is the top-level error mapper: handlers attach typed errors
// with c.Error and this middleware renders them. It also converts panics to
// generic 500 responses.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("path", c.Request.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("Panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Detail:    "an unexpected error occurred",
					Status:    http.StatusInternalServerError,
					Timestamp: time.Now().UTC(),
					Path:      c.Request.URL.Path,
				})
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := apperrors.Status(err)

		if status >= http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("path", c.Request.URL.Path).
				Int("status", status).
				Msg("Request failed")
		}

		c.JSON(status, ErrorResponse{
			Detail:    apperrors.Detail(err),
			Status:    status,
			Timestamp: time.Now().UTC(),
			Path:      c.Request.URL.Path,
		})
	}
}

// AbortWithError records a typed error and stops the handler chain; the
// ErrorHandler middleware renders it.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
