package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextKeyRouteKind is set by the dynamic dispatcher so request logs show
// what the catch-all resolved the path to ("endpoint" or "page").
const ContextKeyRouteKind = "route_kind"

// Logger returns a Gin middleware that logs each request using zap.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if kind := c.GetString(ContextKeyRouteKind); kind != "" {
			fields = append(fields, zap.String("route", kind))
		}
		log.Info("request", fields...)
	}
}
