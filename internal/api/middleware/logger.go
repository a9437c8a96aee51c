package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alpes214/crawler/internal/logging"
)

// LoggerMiddleware logs every request through zap, keyed on status-code
// bucket so 4xx/5xx surface louder than routine 2xx traffic.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		cost := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		userAgent := c.Request.UserAgent()
		errs := c.Errors.ByType(gin.ErrorTypePrivate).String()

		fields := []zap.Field{
			zap.Int("status_code", statusCode),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("client_ip", clientIP),
			zap.String("user_agent", userAgent),
			zap.String("cost", cost.String()),
		}

		switch {
		case statusCode >= 500:
			fields = append(fields, zap.String("errors", errs))
			logging.Logger.Error("http request", fields...)
		case statusCode >= 400:
			fields = append(fields, zap.String("errors", errs))
			logging.Logger.Warn("http request", fields...)
		default:
			logging.Logger.Info("http request", fields...)
		}
	}
}
