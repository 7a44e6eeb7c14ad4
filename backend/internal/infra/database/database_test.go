package database

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"iqupdate/backend/internal/config"
	"iqupdate/backend/internal/domain/user"
	appLogger "iqupdate/backend/internal/infra/logger"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := BuildMySQLDSN(config.MySQLConfig{
		Host:     "db.internal",
		User:     "release",
		Password: "p@ss",
		Database: "iq",
		Params:   "charset=utf8mb4&parseTime=true",
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}
	want := "release:p@ss@tcp(db.internal:3306)/iq?charset=utf8mb4&parseTime=true"
	if dsn != want {
		t.Fatalf("want %s got %s", want, dsn)
	}

	if _, err := BuildMySQLDSN(config.MySQLConfig{User: "x", Database: "y"}); err == nil {
		t.Fatalf("expected missing host error")
	}
}

func TestOpenSQLiteTranslatesDuplicateKey(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "iq.db")

	db, err := Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, DSN: path})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })

	if err := AutoMigrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := db.Create(&user.Role{Name: user.RoleSuperuser}).Error; err != nil {
		t.Fatalf("create role: %v", err)
	}
	err = db.Create(&user.Role{Name: user.RoleSuperuser}).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected ErrDuplicatedKey, got %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWithSQLiteForeignKeys(t *testing.T) {
	if got := withSQLiteForeignKeys("a.db"); got != "a.db?_foreign_keys=on" {
		t.Fatalf("unexpected %s", got)
	}
	if got := withSQLiteForeignKeys("file:x?mode=memory"); !strings.HasSuffix(got, "&_foreign_keys=on") {
		t.Fatalf("unexpected %s", got)
	}
}

func TestGormLogsErrorsButNotMisses(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	t.Cleanup(appLogger.Replace(zap.New(core)))

	ctx := context.Background()
	db, err := Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, DSN: filepath.Join(t.TempDir(), "log.db")})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	if err := AutoMigrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	before := logs.Len()
	var role user.Role
	err = db.WithContext(ctx).Where("name = ?", "missing").First(&role).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if logs.Len() != before {
		t.Fatalf("record not found should not be logged: %v", logs.All())
	}

	if err := db.WithContext(ctx).Exec("SELECT * FROM no_such_table").Error; err == nil {
		t.Fatalf("expected query error")
	}
	if logs.FilterMessageSnippet("no_such_table").Len() == 0 {
		t.Fatalf("query error should reach zap, got %v", logs.All())
	}
}
