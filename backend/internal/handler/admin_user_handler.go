package handler

import (
	"errors"
	"net/http"

	response "iqupdate/backend/internal/infra/common"
	appLogger "iqupdate/backend/internal/infra/logger"
	"iqupdate/backend/internal/middleware"
	adminusersvc "iqupdate/backend/internal/service/adminuser"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminUserHandler 提供 superuser 管理用户与角色的接口。
type AdminUserHandler struct {
	service *adminusersvc.Service
	logger  *zap.SugaredLogger
}

// NewAdminUserHandler 初始化管理员用户 Handler。
func NewAdminUserHandler(service *adminusersvc.Service) *AdminUserHandler {
	return &AdminUserHandler{
		service: service,
		logger:  appLogger.S().With("component", "adminuser.handler"),
	}
}

type userRequest struct {
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	Active    *bool     `json:"active"`
	Roles     *[]string `json:"roles"`
}

func (r userRequest) toInput() adminusersvc.UserInput {
	input := adminusersvc.UserInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Password:  r.Password,
		Active:    r.Active,
	}
	if r.Roles != nil {
		input.Roles = append([]string{}, *r.Roles...)
	}
	return input
}

type roleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListUsers 返回全部后台用户。
func (h *AdminUserHandler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context(), middleware.CallerFrom(c))
	if err != nil {
		h.fail(c, "list_users", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": users}, nil)
}

// GetUser 返回单个用户。
func (h *AdminUserHandler) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	user, err := h.service.GetUser(c.Request.Context(), middleware.CallerFrom(c), id)
	if err != nil {
		h.fail(c, "get_user", err)
		return
	}
	response.Success(c, http.StatusOK, user, nil)
}

// CreateUser 新建用户。
func (h *AdminUserHandler) CreateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}
	user, err := h.service.CreateUser(c.Request.Context(), middleware.CallerFrom(c), req.toInput())
	if err != nil {
		h.fail(c, "create_user", err)
		return
	}
	response.Created(c, user, nil)
}

// UpdateUser 编辑用户。
func (h *AdminUserHandler) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}
	user, err := h.service.UpdateUser(c.Request.Context(), middleware.CallerFrom(c), id, req.toInput())
	if err != nil {
		h.fail(c, "update_user", err)
		return
	}
	response.Success(c, http.StatusOK, user, nil)
}

// DeleteUser 删除用户，不允许删除当前登录账号。
func (h *AdminUserHandler) DeleteUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	caller := middleware.CallerFrom(c)
	var selfID uint
	if caller != nil {
		selfID = caller.UserID
	}
	if err := h.service.DeleteUser(c.Request.Context(), caller, selfID, id); err != nil {
		h.fail(c, "delete_user", err)
		return
	}
	response.NoContent(c)
}

// ListRoles 返回全部角色。
func (h *AdminUserHandler) ListRoles(c *gin.Context) {
	roles, err := h.service.ListRoles(c.Request.Context(), middleware.CallerFrom(c))
	if err != nil {
		h.fail(c, "list_roles", err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": roles}, nil)
}

// CreateRole 新建角色。
func (h *AdminUserHandler) CreateRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}
	role, err := h.service.CreateRole(c.Request.Context(), middleware.CallerFrom(c), adminusersvc.RoleInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.fail(c, "create_role", err)
		return
	}
	response.Created(c, role, nil)
}

// UpdateRole 编辑角色。
func (h *AdminUserHandler) UpdateRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}
	role, err := h.service.UpdateRole(c.Request.Context(), middleware.CallerFrom(c), id, adminusersvc.RoleInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.fail(c, "update_role", err)
		return
	}
	response.Success(c, http.StatusOK, role, nil)
}

// DeleteRole 删除角色。
func (h *AdminUserHandler) DeleteRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteRole(c.Request.Context(), middleware.CallerFrom(c), id); err != nil {
		h.fail(c, "delete_role", err)
		return
	}
	response.NoContent(c)
}

func (h *AdminUserHandler) fail(c *gin.Context, op string, err error) {
	if writeAccessError(c, err) {
		return
	}

	var verr *adminusersvc.ValidationError
	switch {
	case errors.As(err, &verr):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation, verr.Message, gin.H{"field": verr.Field})
	case errors.Is(err, adminusersvc.ErrUnknownRole):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation, err.Error(), gin.H{"field": "roles"})
	case errors.Is(err, adminusersvc.ErrSelfDelete):
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
	case errors.Is(err, adminusersvc.ErrEmailTaken), errors.Is(err, adminusersvc.ErrRoleTaken):
		response.Fail(c, http.StatusConflict, response.ErrConflict, err.Error(), nil)
	case errors.Is(err, adminusersvc.ErrUserNotFound), errors.Is(err, adminusersvc.ErrRoleNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound, err.Error(), nil)
	default:
		h.logger.Errorw("admin user operation failed", "op", op, "error", err)
		response.Page(c, http.StatusInternalServerError, response.ErrInternal, "internal server error")
	}
}
