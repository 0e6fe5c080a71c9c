package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"whaleflow/logger"
)

// noStore disables intermediary and browser caching. Freshness is managed
// application-side by the two-tier cache.
func noStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// accessLog writes one structured line per request.
func accessLog(log *logger.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithComponent("http").WithFields(logger.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(time.Since(start).Nanoseconds()) / 1e6,
			"client":      c.ClientIP(),
		}).Info("Request handled")
	}
}

// requestID tags every response, echoing the client's id when present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-Id", id)
		c.Next()
	}
}
