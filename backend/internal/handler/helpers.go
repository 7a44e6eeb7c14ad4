package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	response "iqupdate/backend/internal/infra/common"
	"iqupdate/backend/internal/service/access"

	"github.com/gin-gonic/gin"
)

var timeNow = time.Now

// parseIDParam 解析路径中的正整数主键，失败时直接写入 400 响应。
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation, "invalid "+name, gin.H{"field": name, "value": raw})
		return 0, false
	}
	return uint(value), true
}

// writeAccessError 处理服务层的角色校验失败。路由层已经做过同样的拦截，这里兜底。
func writeAccessError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "authentication required", nil)
		return true
	case errors.Is(err, access.ErrForbidden):
		response.Page(c, http.StatusForbidden, response.ErrForbidden, "you do not have access to this page")
		return true
	}
	return false
}
