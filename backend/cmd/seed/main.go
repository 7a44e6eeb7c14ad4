package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"iqupdate/backend/internal/app"
	"iqupdate/backend/internal/bootstrapdata"
	"iqupdate/backend/internal/config"
	"iqupdate/backend/internal/infra/database"
	"iqupdate/backend/internal/infra/logger"
)

var packsFile = flag.String("packs", "", "指定补丁包样例 JSON，默认读取 SEED_SERVICE_PACKS_FILE 或内置数据")

// main 创建表结构并导入默认角色、账号与样例补丁包。
func main() {
	flag.Parse()

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
		sugar.Fatalw("initialise resources failed", "error", err)
	}
	defer func() {
		if closeErr := resources.Close(); closeErr != nil {
			sugar.Warnw("close resources failed", "error", closeErr)
		}
	}()

	if !resources.Config.Database.AutoMigrate {
		if err := database.AutoMigrate(ctx, resources.DB); err != nil {
			sugar.Fatalw("migrate schema failed", "error", err)
		}
	}

	opts := bootstrapdata.Options{
		AdminPassword:   resources.Config.Seed.AdminPassword,
		ReleasePassword: resources.Config.Seed.ReleasePassword,
		ServicePackFile: strings.TrimSpace(*packsFile),
		Logger:          sugar,
	}
	if err := bootstrapdata.Seed(ctx, resources.DB, opts); err != nil {
		sugar.Fatalw("seed database failed", "error", err)
	}
	sugar.Infow("seed completed", "driver", resources.Config.Database.Driver)
}
