package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/puku-sh/gateway/pkg/api"
)

// ErrorHandler renders errors attached by handlers as the wire envelope
// {"error": {"message", "type"}}. Typed errors carry their own status;
// anything else is a 500.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		if c.Writer.Written() {
			// A streaming handler already produced output; the failure was
			// reported in-band.
			return
		}

		err := c.Errors.Last().Err

		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			if apiErr.Log != nil {
				logger.Error("request failed",
					zap.String("path", c.Request.URL.Path),
					zap.String("type", apiErr.Type),
					zap.Error(apiErr.Log))
			}
			c.AbortWithStatusJSON(apiErr.Status, apiErr.Envelope())
			return
		}

		logger.Error("unhandled error",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			api.InternalError("an unexpected error occurred", nil).Envelope())
	}
}
