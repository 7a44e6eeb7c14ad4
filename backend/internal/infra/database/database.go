/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 17:16:56
 * @FilePath: \iqupdate\backend\internal\infra\database\database.go
 * @LastEditTime: 2025-10-20 11:20:09
 */
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"iqupdate/backend/internal/config"
	"iqupdate/backend/internal/domain/servicepack"
	"iqupdate/backend/internal/domain/user"
	appLogger "iqupdate/backend/internal/infra/logger"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open 根据 DB_DRIVER 打开 GORM 连接并 Ping 一次。
// 所有驱动都启用 TranslateError，唯一约束冲突统一表现为 gorm.ErrDuplicatedKey。
func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(appLogger.S().With("component", "database.gorm")),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		// SQLite 同一时刻只允许一个写连接。
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetConnMaxLifetime(60 * time.Minute)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(25)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	return db, nil
}

// Close 关闭底层连接池。
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate 同步全部表结构。
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&user.Role{},
		&user.User{},
		&servicepack.ServicePack{},
		&servicepack.Detail{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			return nil, err
		}
		return sqlite.Open(withSQLiteForeignKeys(cfg.DSN)), nil
	case config.DriverMySQL:
		dsn := cfg.DSN
		if dsn == "" {
			built, err := BuildMySQLDSN(cfg.MySQL)
			if err != nil {
				return nil, err
			}
			dsn = built
		}
		return mysql.Open(dsn), nil
	case config.DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// BuildMySQLDSN 校验拆分配置并拼接 DSN，Params 以 URL query 形式追加。
func BuildMySQLDSN(cfg config.MySQLConfig) (string, error) {
	if cfg.Host == "" {
		return "", fmt.Errorf("mysql host is required")
	}
	if cfg.User == "" {
		return "", fmt.Errorf("mysql user is required")
	}
	if cfg.Database == "" {
		return "", fmt.Errorf("mysql database is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	dsnCfg := mysqlDriver.NewConfig()
	dsnCfg.User = cfg.User
	dsnCfg.Passwd = cfg.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	dsnCfg.DBName = cfg.Database
	dsn := dsnCfg.FormatDSN()

	if params := strings.TrimSpace(cfg.Params); params != "" {
		if _, err := url.ParseQuery(params); err != nil {
			return "", fmt.Errorf("invalid mysql params: %w", err)
		}
		dsn += "?" + params
	}
	return dsn, nil
}

// withSQLiteForeignKeys 打开外键约束，保证明细行的级联删除在 SQLite 上同样生效。
func withSQLiteForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

func ensureSQLiteDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite dir: %w", err)
	}
	return nil
}
