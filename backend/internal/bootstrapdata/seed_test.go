package bootstrapdata

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"iqupdate/backend/internal/config"
	"iqupdate/backend/internal/domain/servicepack"
	domain "iqupdate/backend/internal/domain/user"
	"iqupdate/backend/internal/infra/database"
	"iqupdate/backend/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "seed.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	if err := database.AutoMigrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestSeedIsIdempotent(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := Seed(ctx, db, Options{}); err != nil {
			t.Fatalf("seed run %d: %v", i, err)
		}
	}

	if n := count(t, db, &domain.Role{}); n != 2 {
		t.Fatalf("expected 2 roles, got %d", n)
	}
	if n := count(t, db, &domain.User{}); n != 2 {
		t.Fatalf("expected 2 users, got %d", n)
	}
	if n := count(t, db, &servicepack.ServicePack{}); n != 2 {
		t.Fatalf("expected 2 service packs, got %d", n)
	}

	packs := repository.NewServicePackRepository(db)
	pack, err := packs.FindByVersion(ctx, 161)
	if err != nil {
		t.Fatalf("find 0161: %v", err)
	}
	if pack.Description != "Version 7.0 0161" {
		t.Fatalf("unexpected description %q", pack.Description)
	}
	if len(pack.Details) != 2 {
		t.Fatalf("expected 2 details on 0161, got %d", len(pack.Details))
	}
	de := pack.DetailFor(servicepack.LanguageDE)
	en := pack.DetailFor(servicepack.LanguageEN)
	if de == nil || !strings.Contains(de.Contents, "Allgemein:") {
		t.Fatalf("german detail missing marker")
	}
	if en == nil || !strings.Contains(en.Contents, "General:") {
		t.Fatalf("english detail missing marker")
	}
}

func TestSeedAccounts(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	if err := Seed(ctx, db, Options{AdminPassword: "s3cret-admin"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	users := repository.NewUserRepository(db)
	admin, err := users.FindByEmail(ctx, "admin")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	if !admin.Active || !admin.HasRole(domain.RoleSuperuser) || admin.HasRole(domain.RoleReleaseUser) {
		t.Fatalf("unexpected admin account: %+v", admin)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("s3cret-admin")); err != nil {
		t.Fatalf("admin password override not applied: %v", err)
	}

	releaser, err := users.FindByEmail(ctx, "release")
	if err != nil {
		t.Fatalf("find release: %v", err)
	}
	if !releaser.HasRole(domain.RoleReleaseUser) || releaser.HasRole(domain.RoleSuperuser) {
		t.Fatalf("unexpected release account roles: %v", releaser.RoleNames())
	}
	if err := bcrypt.CompareHashAndPassword([]byte(releaser.PasswordHash), []byte("release")); err != nil {
		t.Fatalf("release default password not applied: %v", err)
	}
}

func TestSeedFromFile(t *testing.T) {
	db := openDB(t)
	path := filepath.Join(t.TempDir(), "packs.json")
	body := `{"service_packs":[{"description":"Build 42","release_date":"2020-01-02","details":[{"language":"EN","contents":"<p>x</p>"}]}]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	if err := Seed(context.Background(), db, Options{ServicePackFile: path}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	pack, err := repository.NewServicePackRepository(db).FindByVersion(context.Background(), 42)
	if err != nil {
		t.Fatalf("find 42: %v", err)
	}
	if len(pack.Details) != 1 || pack.Details[0].Language != servicepack.LanguageEN {
		t.Fatalf("unexpected details: %+v", pack.Details)
	}
}

func TestSeedRejectsBadDescription(t *testing.T) {
	db := openDB(t)
	path := filepath.Join(t.TempDir(), "packs.json")
	body := `{"service_packs":[{"description":"Version X","release_date":"2020-01-02"}]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	if err := Seed(context.Background(), db, Options{ServicePackFile: path}); err == nil {
		t.Fatalf("expected error for non-numeric description")
	}
	if n := count(t, db, &servicepack.ServicePack{}); n != 0 {
		t.Fatalf("expected no service packs, got %d", n)
	}
}
