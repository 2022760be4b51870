package httpapi

import (
	"log"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"

// requestID tags every request with an id, reusing X-Request-ID when the caller sends one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// accessLog writes one line per request in the process log format.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}
		level := "[INFO]"
		if c.Writer.Status() >= 500 {
			level = "[WARN]"
		}
		log.Printf("%s %s %s %d %v [%s]", level, c.Request.Method, path,
			c.Writer.Status(), time.Since(start).Round(time.Millisecond), requestIDFrom(c))
	}
}

// cors allows the dashboard to call the API from another origin. Read-only API, GET only.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Accept, Cache-Control, X-Request-ID")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func compress() gin.HandlerFunc {
	return gzip.Gzip(gzip.BestSpeed)
}
