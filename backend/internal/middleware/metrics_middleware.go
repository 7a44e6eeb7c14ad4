package middleware

import (
	"time"

	"iqupdate/backend/internal/infra/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics 记录每个请求的状态码与耗时。route 使用注册时的路由模板，未匹配的请求归为 unmatched。
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
