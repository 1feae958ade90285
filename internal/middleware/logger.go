package middleware

import (
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger 请求日志中间件，静态资源不记录
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if strings.HasPrefix(path, "/static/") {
			return
		}

		uid := GetUserID(c)
		log.Printf("[%s] %s %s %d %v uid=%d",
			c.Request.Method,
			path,
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(start),
			uid,
		)
		if len(c.Errors) > 0 {
			log.Printf("[HTTP] %s %s errors: %s", c.Request.Method, path, c.Errors.String())
		}
	}
}
