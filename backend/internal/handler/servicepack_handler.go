package handler

import (
	"errors"
	"net/http"

	response "iqupdate/backend/internal/infra/common"
	appLogger "iqupdate/backend/internal/infra/logger"
	"iqupdate/backend/internal/infra/metrics"
	"iqupdate/backend/internal/middleware"
	"iqupdate/backend/internal/service/release"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServicePackHandler 提供 releaseuser 维护补丁包的后台接口。
type ServicePackHandler struct {
	service *release.Service
	logger  *zap.SugaredLogger
}

// NewServicePackHandler 构造 handler。
func NewServicePackHandler(service *release.Service) *ServicePackHandler {
	return &ServicePackHandler{
		service: service,
		logger:  appLogger.S().With("component", "servicepack.handler"),
	}
}

type detailRequest struct {
	ID       uint   `json:"id"`
	Language string `json:"language"`
	Contents string `json:"contents"`
}

// servicePackRequest 不包含 version_number，即使客户端提交也会被忽略。
// Details 为 nil 表示请求中没有 details 字段。
type servicePackRequest struct {
	Description string           `json:"description"`
	ReleaseDate string           `json:"release_date"`
	Details     *[]detailRequest `json:"details"`
}

func (r servicePackRequest) toInput() release.Input {
	input := release.Input{
		Description: r.Description,
		ReleaseDate: r.ReleaseDate,
	}
	if r.Details != nil {
		input.ReplaceDetails = true
		input.Details = make([]release.DetailInput, 0, len(*r.Details))
		for _, d := range *r.Details {
			input.Details = append(input.Details, release.DetailInput{ID: d.ID, Language: d.Language, Contents: d.Contents})
		}
	}
	return input
}

// List 按发布日期倒序返回补丁包。
func (h *ServicePackHandler) List(c *gin.Context) {
	packs, err := h.service.List(c.Request.Context(), middleware.CallerFrom(c))
	if err != nil {
		h.fail(c, "list", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": packs}, gin.H{"sort": "release_date desc"})
}

// Get 返回单个补丁包及其说明。
func (h *ServicePackHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	pack, err := h.service.Get(c.Request.Context(), middleware.CallerFrom(c), id)
	if err != nil {
		h.fail(c, "get", err)
		return
	}
	response.Success(c, http.StatusOK, pack, nil)
}

// Create 新增补丁包及其说明。
func (h *ServicePackHandler) Create(c *gin.Context) {
	var req servicePackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}
	pack, err := h.service.Create(c.Request.Context(), middleware.CallerFrom(c), req.toInput())
	if err != nil {
		h.fail(c, "create", err)
		return
	}
	metrics.RecordReleaseWrite("create", "ok")
	response.Created(c, pack, nil)
}

// Update 编辑补丁包；请求中带 details 时整体替换说明列表。
func (h *ServicePackHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req servicePackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}
	pack, err := h.service.Update(c.Request.Context(), middleware.CallerFrom(c), id, req.toInput())
	if err != nil {
		h.fail(c, "update", err)
		return
	}
	metrics.RecordReleaseWrite("update", "ok")
	response.Success(c, http.StatusOK, pack, nil)
}

// Delete 删除补丁包及全部说明。
func (h *ServicePackHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), middleware.CallerFrom(c), id); err != nil {
		h.fail(c, "delete", err)
		return
	}
	metrics.RecordReleaseWrite("delete", "ok")
	response.NoContent(c)
}

// DeleteDetail 删除单条说明。
func (h *ServicePackHandler) DeleteDetail(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	detailID, ok := parseIDParam(c, "detailId")
	if !ok {
		return
	}
	if err := h.service.DeleteDetail(c.Request.Context(), middleware.CallerFrom(c), id, detailID); err != nil {
		h.fail(c, "delete_detail", err)
		return
	}
	metrics.RecordReleaseWrite("delete_detail", "ok")
	response.NoContent(c)
}

func (h *ServicePackHandler) fail(c *gin.Context, op string, err error) {
	if writeAccessError(c, err) {
		return
	}

	var verr *release.ValidationError
	switch {
	case errors.As(err, &verr):
		metrics.RecordReleaseWrite(op, "invalid")
		response.Fail(c, http.StatusBadRequest, response.ErrValidation, verr.Message, gin.H{"field": verr.Field})
	case errors.Is(err, release.ErrDuplicate):
		metrics.RecordReleaseWrite(op, "conflict")
		response.Fail(c, http.StatusConflict, response.ErrConflict, err.Error(), nil)
	case errors.Is(err, release.ErrNotFound), errors.Is(err, release.ErrDetailNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound, err.Error(), nil)
	default:
		metrics.RecordReleaseWrite(op, "error")
		h.logger.Errorw("service pack operation failed", "op", op, "error", err)
		response.Page(c, http.StatusInternalServerError, response.ErrInternal, "internal server error")
	}
}
