package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/fossbin/propease/internal/logger"
)

// Recovery creates a middleware that recovers from panics and logs them.
// It returns a 500 Internal Server Error response instead of crashing.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestLogger := GetLogger(c)
				if requestLogger == nil {
					requestLogger = log
				}

				requestLogger.Error("Panic recovered", fmt.Errorf("panic: %v", err), logger.Fields{
					"request_id": GetRequestID(c),
					"method":     c.Request.Method,
					"path":       c.Request.URL.Path,
					"stack":      string(debug.Stack()),
				})

				abortWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An unexpected error occurred")
			}
		}()

		c.Next()
	}
}

// abortWithError writes the standard error envelope and stops the chain.
// It mirrors the shape produced by the errors package, which imports this one.
func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":       code,
			"message":    message,
			"request_id": GetRequestID(c),
		},
	})
}
