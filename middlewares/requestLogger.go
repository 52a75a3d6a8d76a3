package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request. Failed requests log at error level
// together with any errors handlers attached to the gin context.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		entry := logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.FullPath(),
			"latency_ms":     time.Since(start).Milliseconds(),
			"correlation_id": cid,
		})
		if employeeId, ok := utils.GetEmployeeIdFromContext(c.Request.Context()); ok {
			entry = entry.WithField("employee_id", employeeId)
		}
		if username, ok := utils.GetUsernameFromContext(c.Request.Context()); ok {
			entry = entry.WithField("username", username)
		}
		switch {
		case len(c.Errors) > 0:
			entry.Error(c.Errors.String())
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		default:
			entry.Info("request")
		}
	}
}
