package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	response "iqupdate/backend/internal/infra/common"
	appLogger "iqupdate/backend/internal/infra/logger"
	"iqupdate/backend/internal/infra/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitMiddleware 按客户端 IP 做固定窗口限流。
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	scope   string
	limit   int
	window  time.Duration
	logger  *zap.SugaredLogger
}

// NewRateLimitMiddleware 构造限流中间件。limit<=0 或 limiter 为空时不限流。
func NewRateLimitMiddleware(limiter ratelimit.Limiter, scope string, limit int, window time.Duration) *RateLimitMiddleware {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimitMiddleware{
		limiter: limiter,
		scope:   scope,
		limit:   limit,
		window:  window,
		logger:  appLogger.S().With("component", "middleware.ratelimit", "scope", scope),
	}
}

// Handle 返回 Gin 中间件，超限时返回 429 并附带 Retry-After。
// 限流存储出错时放行，避免 Redis 故障拖垮对外接口。
func (m *RateLimitMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.limiter == nil || m.limit <= 0 {
			c.Next()
			return
		}
		ip := strings.TrimSpace(c.ClientIP())
		if ip == "" {
			c.Next()
			return
		}

		result, err := m.limiter.Allow(c.Request.Context(), m.scope+":"+ip, m.limit, m.window)
		if err != nil {
			m.logger.Warnw("rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}
		if !result.Allowed {
			if secs := int(result.RetryAfter.Round(time.Second).Seconds()); secs > 0 {
				c.Header("Retry-After", strconv.Itoa(secs))
			}
			m.logger.Infow("request rate limited", "ip", ip, "path", c.Request.URL.Path)
			response.Fail(c, http.StatusTooManyRequests, response.ErrTooManyRequests, "request rate limited", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
