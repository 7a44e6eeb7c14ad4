/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 20:41:15
 * @FilePath: \iqupdate\backend\internal\middleware\auth_middleware.go
 * @LastEditTime: 2025-10-20 18:02:44
 */
package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	response "iqupdate/backend/internal/infra/common"
	appLogger "iqupdate/backend/internal/infra/logger"
	"iqupdate/backend/internal/service/access"
	"iqupdate/backend/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const callerContextKey = "caller"

// CallerResolver 根据会话令牌解析当前调用方，由 auth.Service 实现。
type CallerResolver interface {
	Authenticate(ctx context.Context, raw string) (*auth.Caller, error)
}

// AuthMiddleware 负责从 Cookie 或 Bearer 头中识别后台用户，并按角色拦截。
type AuthMiddleware struct {
	resolver  CallerResolver
	cookie    string
	loginPath string
	logger    *zap.SugaredLogger
}

// NewAuthMiddleware 创建鉴权中间件。loginPath 为未登录时的跳转目标。
func NewAuthMiddleware(resolver CallerResolver, cookie, loginPath string) *AuthMiddleware {
	return &AuthMiddleware{
		resolver:  resolver,
		cookie:    cookie,
		loginPath: loginPath,
		logger:    appLogger.S().With("component", "middleware.auth"),
	}
}

// Handle 解析调用方并写入上下文，本身不拦截请求。
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := SessionToken(c, m.cookie)
		if raw == "" {
			c.Next()
			return
		}
		caller, err := m.resolver.Authenticate(c.Request.Context(), raw)
		switch {
		case err == nil:
			c.Set(callerContextKey, caller)
		case errors.Is(err, auth.ErrSessionInvalid):
			m.logger.Debugw("session rejected", "path", c.Request.URL.Path)
		default:
			m.logger.Warnw("resolve caller failed", "error", err)
		}
		c.Next()
	}
}

// RequireAuthenticated 只要求已登录，未登录时跳转到登录页。
func (m *AuthMiddleware) RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CallerFrom(c).IsAuthenticated() {
			m.redirectToLogin(c)
			return
		}
		c.Next()
	}
}

// RequireRole 要求已登录、账号启用且拥有指定角色。
// 未登录跳转登录页并保留原地址；已登录但角色不符返回 403。
func (m *AuthMiddleware) RequireRole(role string) gin.HandlerFunc {
	policy := access.RequireRole(role)
	return func(c *gin.Context) {
		caller := CallerFrom(c)
		switch err := policy(caller); {
		case err == nil:
			c.Next()
		case errors.Is(err, access.ErrUnauthenticated):
			m.redirectToLogin(c)
		default:
			m.logger.Infow("role check failed", "user_id", caller.UserID, "role", role, "path", c.Request.URL.Path)
			response.Page(c, http.StatusForbidden, response.ErrForbidden, "you do not have access to this page")
		}
	}
}

func (m *AuthMiddleware) redirectToLogin(c *gin.Context) {
	target := m.loginPath + "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

// CallerFrom 返回上下文中的调用方，匿名访问时为 nil。
func CallerFrom(c *gin.Context) *auth.Caller {
	value, ok := c.Get(callerContextKey)
	if !ok {
		return nil
	}
	caller, _ := value.(*auth.Caller)
	return caller
}

// SessionToken 优先读取 Authorization: Bearer，其次读取会话 Cookie。
func SessionToken(c *gin.Context, cookie string) string {
	if header := c.GetHeader("Authorization"); len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if cookie == "" {
		return ""
	}
	value, err := c.Cookie(cookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}
