package sentry

import (
	"fmt"
	"net/http"
	"os"
	"time"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

// InitSentry configures error reporting when SENTRY_DSN is set; without a
// DSN it is a no-op and the service runs normally.
func InitSentry() error {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return nil
	}

	return sentrygo.Init(sentrygo.ClientOptions{
		Dsn:              dsn,
		Environment:      os.Getenv("ENVIRONMENT"),
		TracesSampleRate: 0.1,
	})
}

// Flush drains buffered events before shutdown.
func Flush(timeout time.Duration) {
	sentrygo.Flush(timeout)
}

// GinSentryMiddleware attaches a request-scoped hub and reports server
// errors. A panic that reaches this middleware is reported and re-raised to
// the enclosing handler; a panic already recovered by a middleware registered
// after this one is reported here as its 5xx response.
func GinSentryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		hub := sentrygo.CurrentHub().Clone()
		hub.Scope().SetRequest(c.Request)
		c.Request = c.Request.WithContext(sentrygo.SetHubOnContext(c.Request.Context(), hub))

		defer func() {
			if r := recover(); r != nil {
				hub.Recover(r)
				panic(r)
			}
		}()

		c.Next()

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			hub.CaptureMessage(fmt.Sprintf("HTTP %d on %s %s", status, c.Request.Method, c.Request.URL.Path))
		}
	}
}
