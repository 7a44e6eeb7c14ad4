/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-09 17:02:32
 * @FilePath: \iqupdate\backend\internal\infra\common\response.go
 * @LastEditTime: 2025-10-20 10:03:18
 */
package response

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrorCode 表示统一的错误码，便于客户端识别失败原因。
type ErrorCode string

const (
	ErrBadRequest         ErrorCode = "BAD_REQUEST"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrConflict           ErrorCode = "CONFLICT"
	ErrTooManyRequests    ErrorCode = "TOO_MANY_REQUESTS"
	ErrInternal           ErrorCode = "INTERNAL_ERROR"
	ErrValidation         ErrorCode = "VALIDATION_FAILED"
	ErrCaptchaInvalid     ErrorCode = "CAPTCHA_INVALID"
	ErrCaptchaRequired    ErrorCode = "CAPTCHA_REQUIRED"
	ErrInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrAccountInactive    ErrorCode = "ACCOUNT_INACTIVE"
)

// Error 描述错误响应的统一结构。
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// Response 是所有 JSON 接口返回的公共结构。
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
	Meta    any    `json:"meta,omitempty"`
}

// Success 以统一格式返回成功结果。
func Success(c *gin.Context, status int, data any, meta any) {
	if status == 0 {
		status = http.StatusOK
	}

	resp := Response{
		Success: true,
		Data:    data,
	}
	if meta != nil {
		resp.Meta = meta
	}

	c.JSON(status, resp)
}

// Created 返回 201 Created 的成功响应。
func Created(c *gin.Context, data any, meta any) {
	Success(c, http.StatusCreated, data, meta)
}

// NoContent 返回 204 响应且无 body。
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail 以统一格式返回错误结果。
func Fail(c *gin.Context, status int, code ErrorCode, message string, details any) {
	if status == 0 {
		status = http.StatusInternalServerError
	}

	resp := Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	}
	if details != nil {
		resp.Error.Details = details
	}

	c.JSON(status, resp)
}

// WantsJSON 根据 Accept 头判断调用方是否期望 JSON。
// 未声明或声明 text/html 的浏览器请求视为 HTML。
func WantsJSON(c *gin.Context) bool {
	if strings.TrimSpace(c.GetHeader("Accept")) == "" {
		return false
	}
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

// errorPages 为需要固定错误页的状态码指定模板名。
var errorPages = map[int]string{
	http.StatusForbidden:           "403.html",
	http.StatusNotFound:            "404.html",
	http.StatusInternalServerError: "500.html",
}

// Page 在调用方接受 HTML 时渲染固定错误页，否则退回 JSON 结构。
// 渲染后会终止后续中间件。
func Page(c *gin.Context, status int, code ErrorCode, message string) {
	defer c.Abort()
	tpl, ok := errorPages[status]
	if !ok || WantsJSON(c) {
		Fail(c, status, code, message, nil)
		return
	}
	c.HTML(status, tpl, gin.H{
		"Status":  status,
		"Title":   http.StatusText(status),
		"Message": message,
	})
}
