/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-09 20:51:28
 * @FilePath: \iqupdate\backend\internal\bootstrap\bootstrap.go
 * @LastEditTime: 2025-10-20 19:30:02
 */
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"iqupdate/backend/internal/app"
	"iqupdate/backend/internal/handler"
	"iqupdate/backend/internal/infra/captcha"
	"iqupdate/backend/internal/infra/locale"
	"iqupdate/backend/internal/infra/metrics"
	"iqupdate/backend/internal/infra/ratelimit"
	"iqupdate/backend/internal/infra/token"
	"iqupdate/backend/internal/middleware"
	"iqupdate/backend/internal/repository"
	"iqupdate/backend/internal/server"
	adminusersvc "iqupdate/backend/internal/service/adminuser"
	authsvc "iqupdate/backend/internal/service/auth"
	releasesvc "iqupdate/backend/internal/service/release"
	updatessvc "iqupdate/backend/internal/service/updates"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Application struct {
	Resources  *app.Resources
	AuthSvc    *authsvc.Service
	UpdatesSvc *updatessvc.Service
	ReleaseSvc *releasesvc.Service
	Router     http.Handler
}

func BuildApplication(ctx context.Context, logger *zap.SugaredLogger, resources *app.Resources) (*Application, error) {
	cfg := resources.Config
	gin.SetMode(cfg.Server.Mode)
	metrics.MustRegister()

	packRepo := repository.NewServicePackRepository(resources.DB)
	userRepo := repository.NewUserRepository(resources.DB)
	roleRepo := repository.NewRoleRepository(resources.DB)

	translator, err := locale.NewTranslator()
	if err != nil {
		return nil, fmt.Errorf("build translator: %w", err)
	}

	var (
		sessions authsvc.SessionStore
		limiter  ratelimit.Limiter
	)
	if resources.Redis != nil {
		sessions = token.NewRedisSessionStore(resources.Redis, "")
		limiter = ratelimit.NewRedisLimiter(resources.Redis, "")
	} else {
		sessions = token.NewMemorySessionStore()
		limiter = ratelimit.NewMemoryLimiter()
		logger.Infow("redis not configured; sessions and rate limits are kept in memory")
	}

	captchaManager, err := initCaptchaManager(resources, limiter, logger)
	if err != nil {
		return nil, err
	}

	tokens := token.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	authService := authsvc.NewService(userRepo, tokens, sessions, captchaManager)
	updatesService := updatessvc.NewService(packRepo, translator, cfg.Server.UpdatesPath())
	releaseService := releasesvc.NewService(packRepo, nil)
	adminUserService := adminusersvc.NewService(userRepo, roleRepo, nil)

	sqlDB, err := resources.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	adminHome := cfg.Server.AdminPrefix + "/"
	router, err := server.NewRouter(server.RouterOptions{
		APIPrefix:          cfg.Server.APIPrefix,
		AdminPrefix:        cfg.Server.AdminPrefix,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		UpdatesHandler:     handler.NewUpdatesHandler(updatesService),
		AuthHandler: handler.NewAuthHandler(authService, handler.AuthHandlerOptions{
			CookieName:   cfg.Auth.SessionCookie,
			SecureCookie: cfg.Server.Mode == gin.ReleaseMode,
			AdminHome:    adminHome,
		}),
		AdminIndexHandler:  handler.NewAdminIndexHandler(cfg.Server.AdminPrefix),
		ServicePackHandler: handler.NewServicePackHandler(releaseService),
		AdminUserHandler:   handler.NewAdminUserHandler(adminUserService),
		HealthHandler:      handler.NewHealthHandler(sqlDB),
		AuthMW:             middleware.NewAuthMiddleware(authService, cfg.Auth.SessionCookie, cfg.Server.AdminPrefix+"/login/"),
		LoginLimit:         middleware.NewRateLimitMiddleware(limiter, "login", cfg.RateLimit.LoginLimit, cfg.RateLimit.LoginWindow),
		PublicLimit:        middleware.NewRateLimitMiddleware(limiter, "public", cfg.RateLimit.PublicLimit, cfg.RateLimit.PublicWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	return &Application{
		Resources:  resources,
		AuthSvc:    authService,
		UpdatesSvc: updatesService,
		ReleaseSvc: releaseService,
		Router:     router,
	}, nil
}

func initCaptchaManager(resources *app.Resources, limiter ratelimit.Limiter, logger *zap.SugaredLogger) (authsvc.CaptchaManager, error) {
	if !resources.Config.Auth.CaptchaEnabled {
		return nil, nil
	}

	captchaOpts, err := captcha.LoadOptionsFromEnv()
	if err != nil {
		logger.Errorw("load captcha config failed", "error", err)
		return nil, fmt.Errorf("load captcha config: %w", err)
	}

	manager := captcha.NewManager(resources.Redis, limiter, captchaOpts)
	logger.Infow("captcha enabled", "prefix", captchaOpts.Prefix, "ttl", captchaOpts.TTL, "redis", resources.Redis != nil)
	return manager, nil
}
