/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 19:54:47
 * @FilePath: \iqupdate\backend\internal\app\app.go
 * @LastEditTime: 2025-10-20 19:12:37
 */
package app

import (
	"context"
	"errors"
	"fmt"

	"iqupdate/backend/internal/config"
	"iqupdate/backend/internal/infra/client"
	"iqupdate/backend/internal/infra/database"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Resources 是进程级的应用上下文：启动时构造一次，按引用传给需要持久化或缓存的组件。
type Resources struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client // 可为空，此时会话、限流与验证码使用进程内实现
}

// Bootstrap 读取配置并建立数据库、Redis 连接。
func Bootstrap(ctx context.Context) (*Resources, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return Open(ctx, cfg)
}

// Open 根据给定配置建立连接，并按需执行表结构迁移。
func Open(ctx context.Context, cfg *config.Config) (*Resources, error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	res := &Resources{Config: cfg, DB: db}

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(ctx, db); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	redisOpts, enabled, err := client.RedisOptionsFromConfig(cfg.Redis)
	if err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("redis options: %w", err)
	}
	if enabled {
		rdb, err := client.NewRedisClient(ctx, redisOpts)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		res.Redis = rdb
	}

	return res, nil
}

// Close 释放 Redis 与数据库连接。
func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if r.DB != nil {
		if err := database.Close(r.DB); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
