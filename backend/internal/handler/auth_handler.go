/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 20:42:09
 * @FilePath: \iqupdate\backend\internal\handler\auth_handler.go
 * @LastEditTime: 2025-10-20 18:40:55
 */
package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	response "iqupdate/backend/internal/infra/common"
	appLogger "iqupdate/backend/internal/infra/logger"
	"iqupdate/backend/internal/middleware"
	"iqupdate/backend/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler 负责后台登录页、登录、登出与验证码接口。
type AuthHandler struct {
	service   *auth.Service
	cookie    string
	secure    bool
	adminHome string
	logger    *zap.SugaredLogger
}

// AuthHandlerOptions 描述会话 Cookie 与后台首页。
type AuthHandlerOptions struct {
	CookieName   string
	SecureCookie bool
	AdminHome    string
}

// NewAuthHandler 构造鉴权 handler。
func NewAuthHandler(service *auth.Service, opts AuthHandlerOptions) *AuthHandler {
	return &AuthHandler{
		service:   service,
		cookie:    opts.CookieName,
		secure:    opts.SecureCookie,
		adminHome: opts.AdminHome,
		logger:    appLogger.S().With("component", "auth.handler"),
	}
}

type loginRequest struct {
	Email       string `form:"email" json:"email"`
	Password    string `form:"password" json:"password"`
	Next        string `form:"next" json:"next"`
	CaptchaID   string `form:"captcha_id" json:"captcha_id"`
	CaptchaCode string `form:"captcha_code" json:"captcha_code"`
}

// LoginPage 渲染登录表单；已登录时直接跳转到 next。
func (h *AuthHandler) LoginPage(c *gin.Context) {
	next := h.safeNext(c.Query("next"))
	if middleware.CallerFrom(c).IsAuthenticated() {
		c.Redirect(http.StatusFound, next)
		return
	}
	h.renderLogin(c, http.StatusOK, next, "", "")
}

// Login 校验凭证，成功后写入 HttpOnly 会话 Cookie 并跳转回 next。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}
	next := h.safeNext(req.Next)

	user, session, err := h.service.Login(c.Request.Context(), auth.LoginParams{
		Email:       req.Email,
		Password:    req.Password,
		CaptchaID:   req.CaptchaID,
		CaptchaCode: req.CaptchaCode,
	})
	if err != nil {
		status, code, message := loginFailure(err)
		if status == http.StatusInternalServerError {
			h.logger.Errorw("login failed", "error", err)
		}
		if response.WantsJSON(c) {
			response.Fail(c, status, code, message, nil)
			return
		}
		h.renderLogin(c, status, next, req.Email, message)
		return
	}

	maxAge := int(session.ExpiresAt.Sub(timeNow()).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie, session.Token, maxAge, "/", "", h.secure, true)

	if response.WantsJSON(c) {
		response.Success(c, http.StatusOK, gin.H{
			"token":      session.Token,
			"expires_at": session.ExpiresAt,
			"user": gin.H{
				"id":    user.ID,
				"email": user.Email,
				"roles": user.RoleNames(),
			},
			"next": next,
		}, nil)
		return
	}
	c.Redirect(http.StatusFound, next)
}

// Logout 吊销会话并清除 Cookie。
func (h *AuthHandler) Logout(c *gin.Context) {
	raw := middleware.SessionToken(c, h.cookie)
	if err := h.service.Logout(c.Request.Context(), raw); err != nil {
		h.logger.Warnw("logout failed", "error", err)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie, "", -1, "/", "", h.secure, true)

	if response.WantsJSON(c) {
		response.NoContent(c)
		return
	}
	c.Redirect(http.StatusFound, h.adminHome)
}

// Captcha 生成登录验证码。
func (h *AuthHandler) Captcha(c *gin.Context) {
	id, image, err := h.service.GenerateCaptcha(c.Request.Context(), c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrCaptchaDisabled):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound, "captcha is not enabled", nil)
		case errors.Is(err, auth.ErrCaptchaRateLimited):
			response.Fail(c, http.StatusTooManyRequests, response.ErrTooManyRequests, "captcha requests too frequent", nil)
		default:
			h.logger.Errorw("generate captcha failed", "error", err)
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "generate captcha failed", nil)
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"captcha_id": id, "image": image}, nil)
}

func (h *AuthHandler) renderLogin(c *gin.Context, status int, next, email, message string) {
	c.HTML(status, "login.html", gin.H{
		"Next":           next,
		"Email":          email,
		"Error":          message,
		"CaptchaEnabled": h.service.CaptchaEnabled(),
	})
}

// safeNext 只接受站内路径，防止登录后跳转到外部站点。
func (h *AuthHandler) safeNext(raw string) string {
	next := strings.TrimSpace(raw)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return h.adminHome
	}
	parsed, err := url.Parse(next)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return h.adminHome
	}
	return next
}

func loginFailure(err error) (int, response.ErrorCode, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidLogin):
		return http.StatusUnauthorized, response.ErrInvalidCredentials, "invalid email or password"
	case errors.Is(err, auth.ErrAccountInactive):
		return http.StatusForbidden, response.ErrAccountInactive, "account is inactive"
	case errors.Is(err, auth.ErrCaptchaRequired):
		return http.StatusBadRequest, response.ErrCaptchaRequired, "captcha is required"
	case errors.Is(err, auth.ErrCaptchaInvalid), errors.Is(err, auth.ErrCaptchaExpired):
		return http.StatusBadRequest, response.ErrCaptchaInvalid, "captcha verification failed"
	default:
		return http.StatusInternalServerError, response.ErrInternal, "login failed"
	}
}
