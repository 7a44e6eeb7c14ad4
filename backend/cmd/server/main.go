/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 19:55:11
 * @FilePath: \iqupdate\backend\cmd\server\main.go
 * @LastEditTime: 2025-10-20 19:41:06
 */
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iqupdate/backend/internal/app"
	"iqupdate/backend/internal/bootstrap"
	"iqupdate/backend/internal/config"
	"iqupdate/backend/internal/infra/logger"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// 先加载 .env，使 LOG_* 配置对日志初始化生效。
	config.LoadEnvFiles()
	zapLogger, err := logger.Init()
	if err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}
	defer logger.Sync()
	sugar := zapLogger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resources, err := app.Bootstrap(ctx)
	if err != nil {
		sugar.Fatalw("bootstrap failed", "error", err)
	}
	defer func() {
		if closeErr := resources.Close(); closeErr != nil {
			sugar.Warnw("resource cleanup error", "error", closeErr)
		}
	}()

	application, err := bootstrap.BuildApplication(ctx, sugar, resources)
	if err != nil {
		sugar.Fatalw("build application failed", "error", err)
	}

	srv := &http.Server{
		Addr:              ":" + resources.Config.Server.Port,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("server listening",
			"addr", srv.Addr,
			"api_prefix", resources.Config.Server.APIPrefix,
			"admin_prefix", resources.Config.Server.AdminPrefix,
			"db_driver", resources.Config.Database.Driver,
			"redis", resources.Redis != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		sugar.Infow("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			sugar.Errorw("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("server forced to shutdown", "error", err)
	}
	sugar.Infow("server exited")
}
