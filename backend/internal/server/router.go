package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	domainuser "iqupdate/backend/internal/domain/user"
	"iqupdate/backend/internal/handler"
	response "iqupdate/backend/internal/infra/common"
	appLogger "iqupdate/backend/internal/infra/logger"
	"iqupdate/backend/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	APIPrefix          string
	AdminPrefix        string
	CORSAllowedOrigins []string

	UpdatesHandler     *handler.UpdatesHandler
	AuthHandler        *handler.AuthHandler
	AdminIndexHandler  *handler.AdminIndexHandler
	ServicePackHandler *handler.ServicePackHandler
	AdminUserHandler   *handler.AdminUserHandler
	HealthHandler      *handler.HealthHandler

	AuthMW      *middleware.AuthMiddleware
	LoginLimit  *middleware.RateLimitMiddleware
	PublicLimit *middleware.RateLimitMiddleware
}

// NewRouter 构建应用的 Gin Engine，汇总公开接口、后台接口与公共中间件配置。
func NewRouter(opts RouterOptions) (*gin.Engine, error) {
	r := gin.New()

	tpl, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	r.SetHTMLTemplate(tpl)

	log := appLogger.S().With("component", "server.router")

	// panic 时记录原始错误，只向调用方输出固定的 500 页面。
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Errorw("panic recovered", "error", recovered, "method", c.Request.Method, "path", c.Request.URL.Path)
		response.Page(c, http.StatusInternalServerError, response.ErrInternal, "internal server error")
	}))
	r.Use(cors.New(corsConfig(opts.CORSAllowedOrigins)))
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: gin.LogFormatter(func(params gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s\" %d %s\n",
				params.ClientIP,
				params.TimeStamp.Format(time.RFC3339),
				params.Method,
				params.Path,
				params.StatusCode,
				params.Latency,
			)
		}),
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(middleware.Metrics())

	r.NoRoute(func(c *gin.Context) {
		response.Page(c, http.StatusNotFound, response.ErrNotFound, "the requested page does not exist")
	})

	r.StaticFS("/static", StaticFS())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if opts.HealthHandler != nil {
		r.GET("/healthz", opts.HealthHandler.Healthz)
	}

	if opts.UpdatesHandler != nil {
		public := r.Group(opts.APIPrefix)
		if opts.PublicLimit != nil {
			public.Use(opts.PublicLimit.Handle())
		}
		public.GET("/updates", opts.UpdatesHandler.List)
		public.GET("/updates/:versionNumber", opts.UpdatesHandler.Notes)
	}

	if opts.AuthMW == nil {
		return r, nil
	}

	// 后台路由统一先解析调用方，再按角色分组拦截。
	admin := r.Group(opts.AdminPrefix)
	admin.Use(opts.AuthMW.Handle())

	if opts.AuthHandler != nil {
		login := []gin.HandlerFunc{opts.AuthHandler.Login}
		if opts.LoginLimit != nil {
			login = append([]gin.HandlerFunc{opts.LoginLimit.Handle()}, login...)
		}
		admin.GET("/login/", opts.AuthHandler.LoginPage)
		admin.POST("/login/", login...)
		admin.GET("/logout/", opts.AuthHandler.Logout)
		admin.POST("/logout/", opts.AuthHandler.Logout)
		admin.GET("/captcha", opts.AuthHandler.Captcha)
	}

	if opts.AdminIndexHandler != nil {
		admin.GET("/", opts.AuthMW.RequireAuthenticated(), opts.AdminIndexHandler.Index)
	}

	if opts.AdminUserHandler != nil {
		superuser := admin.Group("", opts.AuthMW.RequireRole(domainuser.RoleSuperuser))
		superuser.GET("/users", opts.AdminUserHandler.ListUsers)
		superuser.POST("/users", opts.AdminUserHandler.CreateUser)
		superuser.GET("/users/:id", opts.AdminUserHandler.GetUser)
		superuser.PUT("/users/:id", opts.AdminUserHandler.UpdateUser)
		superuser.DELETE("/users/:id", opts.AdminUserHandler.DeleteUser)
		superuser.GET("/roles", opts.AdminUserHandler.ListRoles)
		superuser.POST("/roles", opts.AdminUserHandler.CreateRole)
		superuser.PUT("/roles/:id", opts.AdminUserHandler.UpdateRole)
		superuser.DELETE("/roles/:id", opts.AdminUserHandler.DeleteRole)
	}

	if opts.ServicePackHandler != nil {
		// 补丁包维护只认 releaseuser，superuser 不会自动获得该权限。
		packs := admin.Group("/servicepacks", opts.AuthMW.RequireRole(domainuser.RoleReleaseUser))
		packs.GET("", opts.ServicePackHandler.List)
		packs.POST("", opts.ServicePackHandler.Create)
		packs.GET("/:id", opts.ServicePackHandler.Get)
		packs.PUT("/:id", opts.ServicePackHandler.Update)
		packs.DELETE("/:id", opts.ServicePackHandler.Delete)
		packs.DELETE("/:id/details/:detailId", opts.ServicePackHandler.DeleteDetail)
	}

	return r, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
		return cfg
	}
	cfg.AllowOriginFunc = func(origin string) bool {
		if origin == "" {
			return false
		}
		if origin == "null" {
			return true
		}
		return strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")
	}
	return cfg
}
