/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-20 15:40:12
 * @FilePath: \iqupdate\backend\internal\handler\updates_handler.go
 * @LastEditTime: 2025-10-20 15:40:12
 */
package handler

import (
	"net/http"
	"strconv"

	response "iqupdate/backend/internal/infra/common"
	appLogger "iqupdate/backend/internal/infra/logger"
	"iqupdate/backend/internal/infra/metrics"
	"iqupdate/backend/internal/service/updates"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UpdatesHandler 提供客户端轮询的公开接口，无需登录。
type UpdatesHandler struct {
	service *updates.Service
	logger  *zap.SugaredLogger
}

// NewUpdatesHandler 构造 handler。
func NewUpdatesHandler(service *updates.Service) *UpdatesHandler {
	return &UpdatesHandler{
		service: service,
		logger:  appLogger.S().With("component", "updates.handler"),
	}
}

// List 处理 GET /updates。
// 带 hasUpdatesFor 时返回纯文本 "true"/"false"；否则渲染补丁包列表与最新版本号。
func (h *UpdatesHandler) List(c *gin.Context) {
	greaterThan := c.Query("greaterThan")
	if greaterThan == "" {
		// 旧客户端使用的拼写
		greaterThan = c.Query("greaterThen")
	}

	result, err := h.service.Check(c.Request.Context(), updates.Query{
		HasUpdatesFor: c.Query("hasUpdatesFor"),
		GreaterThan:   greaterThan,
	})
	if err != nil {
		h.logger.Errorw("check updates failed", "error", err, "query", c.Request.URL.RawQuery)
		response.Page(c, http.StatusInternalServerError, response.ErrInternal, "internal server error")
		return
	}
	metrics.RecordUpdatesCheck(result.Mode, result.HasUpdates)

	if result.Mode == updates.ModeHasUpdates {
		c.String(http.StatusOK, strconv.FormatBool(result.HasUpdates))
		return
	}

	if response.WantsJSON(c) {
		response.Success(c, http.StatusOK, gin.H{
			"service_packs":         result.Packs,
			"newest_version_number": result.Newest,
		}, gin.H{"baseline": result.Baseline})
		return
	}

	c.HTML(http.StatusOK, "service_packs.html", gin.H{
		"ServicePacks":        result.Packs,
		"NewestVersionNumber": result.Newest,
	})
}

// Notes 处理 GET /updates/:versionNumber，返回本地化说明 + 返回链接。
func (h *UpdatesHandler) Notes(c *gin.Context) {
	raw := c.Param("versionNumber")
	version, err := updates.ParseVersion(raw)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation, "version number must be an integer", gin.H{
			"field": "versionNumber",
			"value": raw,
		})
		return
	}

	language, present := c.GetQuery("language")
	notes, err := h.service.Notes(c.Request.Context(), updates.NotesQuery{
		Version:         version,
		Language:        language,
		LanguagePresent: present,
		AcceptLanguage:  c.GetHeader("Accept-Language"),
		Referer:         c.Request.Referer(),
	})
	if err != nil {
		h.logger.Errorw("load release notes failed", "error", err, "version", version)
		response.Page(c, http.StatusInternalServerError, response.ErrInternal, "internal server error")
		return
	}
	metrics.RecordReleaseNotes(string(notes.Language), notes.Found)

	if response.WantsJSON(c) {
		response.Success(c, http.StatusOK, notes, nil)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(notes.Body))
}
