package handler

import (
	"net/http"

	domainuser "iqupdate/backend/internal/domain/user"
	response "iqupdate/backend/internal/infra/common"
	"iqupdate/backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// AdminView 描述后台首页上的一个入口。
type AdminView struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// AdminIndexHandler 渲染后台首页，只列出调用方有权访问的视图。
type AdminIndexHandler struct {
	prefix string
}

// NewAdminIndexHandler 构造 handler，prefix 为后台路由前缀。
func NewAdminIndexHandler(prefix string) *AdminIndexHandler {
	return &AdminIndexHandler{prefix: prefix}
}

// Index 处理 GET <admin>/。
func (h *AdminIndexHandler) Index(c *gin.Context) {
	caller := middleware.CallerFrom(c)

	views := make([]AdminView, 0, 3)
	if caller.IsActive() && caller.HasRole(domainuser.RoleSuperuser) {
		views = append(views,
			AdminView{Name: "Users", Path: h.prefix + "/users"},
			AdminView{Name: "Roles", Path: h.prefix + "/roles"},
		)
	}
	if caller.IsActive() && caller.HasRole(domainuser.RoleReleaseUser) {
		views = append(views, AdminView{Name: "Service Packs", Path: h.prefix + "/servicepacks"})
	}

	if response.WantsJSON(c) {
		response.Success(c, http.StatusOK, gin.H{
			"email": caller.Email,
			"roles": caller.Roles,
			"views": views,
		}, nil)
		return
	}
	c.HTML(http.StatusOK, "admin_index.html", gin.H{
		"Caller":     caller,
		"Views":      views,
		"LogoutPath": h.prefix + "/logout/",
	})
}
