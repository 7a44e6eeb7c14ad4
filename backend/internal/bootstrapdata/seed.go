/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-13 15:20:41
 * @FilePath: \iqupdate\backend\internal\bootstrapdata\seed.go
 * @LastEditTime: 2025-10-20 18:02:16
 */
package bootstrapdata

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"iqupdate/backend/internal/domain/servicepack"
	domain "iqupdate/backend/internal/domain/user"
	"iqupdate/backend/internal/repository"
	"iqupdate/backend/internal/service/auth"
	"iqupdate/backend/internal/service/release"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	envServicePackFile = "SEED_SERVICE_PACKS_FILE"

	defaultAdminEmail      = "admin"
	defaultAdminPassword   = "admin"
	defaultReleaseEmail    = "release"
	defaultReleasePassword = "release"
)

//go:embed data/service_packs.json
var embeddedServicePacks []byte

// Options 描述种子数据导入所需的可选参数。
type Options struct {
	AdminPassword   string
	ReleasePassword string
	// ServicePackFile 指向外部 JSON，为空时读取 SEED_SERVICE_PACKS_FILE，再退回内置样例。
	ServicePackFile string
	Logger          *zap.SugaredLogger
}

type servicePackSeed struct {
	Description string       `json:"description"`
	ReleaseDate string       `json:"release_date"`
	Details     []detailSeed `json:"details"`
}

type detailSeed struct {
	Language string `json:"language"`
	Contents string `json:"contents"`
}

type seedFile struct {
	ServicePacks []servicePackSeed `json:"service_packs"`
}

type accountSeed struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      string
}

// Seed 创建默认角色、账号与样例补丁包，可重复执行。
func Seed(ctx context.Context, db *gorm.DB, opts Options) error {
	if db == nil {
		return errors.New("db is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	if err := seedAccounts(ctx, db, opts, logger); err != nil {
		return err
	}
	return seedServicePacks(ctx, db, opts, logger)
}

// seedAccounts 确保两个角色存在，并在账号缺失时创建默认账号；已有账号的密码不会被覆盖。
func seedAccounts(ctx context.Context, db *gorm.DB, opts Options, logger *zap.SugaredLogger) error {
	roles := repository.NewRoleRepository(db)
	users := repository.NewUserRepository(db)

	releaseRole, err := roles.Ensure(ctx, domain.RoleReleaseUser, "Maintains service packs and release notes")
	if err != nil {
		return fmt.Errorf("ensure role %s: %w", domain.RoleReleaseUser, err)
	}
	superRole, err := roles.Ensure(ctx, domain.RoleSuperuser, "Manages users and roles")
	if err != nil {
		return fmt.Errorf("ensure role %s: %w", domain.RoleSuperuser, err)
	}
	byName := map[string]domain.Role{
		domain.RoleReleaseUser: *releaseRole,
		domain.RoleSuperuser:   *superRole,
	}

	accounts := []accountSeed{
		{FirstName: "Administrator", LastName: "Apis", Email: defaultAdminEmail, Password: valueOr(opts.AdminPassword, defaultAdminPassword), Role: domain.RoleSuperuser},
		{FirstName: "ReleaseManager", LastName: "Apis", Email: defaultReleaseEmail, Password: valueOr(opts.ReleasePassword, defaultReleasePassword), Role: domain.RoleReleaseUser},
	}

	created := 0
	for _, item := range accounts {
		_, err := users.FindByEmail(ctx, item.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("query user %s: %w", item.Email, err)
		}
		hash, err := auth.HashPassword(item.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", item.Email, err)
		}
		u := &domain.User{
			FirstName:    item.FirstName,
			LastName:     item.LastName,
			Email:        item.Email,
			PasswordHash: hash,
			Active:       true,
			Roles:        []domain.Role{byName[item.Role]},
		}
		if err := users.Create(ctx, u); err != nil {
			return fmt.Errorf("insert user %s: %w", item.Email, err)
		}
		created++
	}
	logger.Infow("同步后台账号完成", "created", created, "total", len(accounts))
	return nil
}

// seedServicePacks 按 description 同步补丁包：已存在时更新日期并整体替换说明，否则新建。
func seedServicePacks(ctx context.Context, db *gorm.DB, opts Options, logger *zap.SugaredLogger) error {
	seeds, err := loadServicePackSeeds(opts.ServicePackFile)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		logger.Infow("service pack seed empty, skip")
		return nil
	}

	packs := repository.NewServicePackRepository(db)
	inserted := 0
	updated := 0
	for idx, item := range seeds {
		description := strings.TrimSpace(item.Description)
		version, err := release.DeriveVersionNumber(description)
		if err != nil {
			return fmt.Errorf("seed service pack at index %d: %w", idx, err)
		}
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(item.ReleaseDate))
		if err != nil {
			return fmt.Errorf("parse release_date at index %d: %w", idx, err)
		}

		details := make([]servicepack.Detail, 0, len(item.Details))
		for _, d := range item.Details {
			lang := servicepack.Language(strings.ToLower(strings.TrimSpace(d.Language)))
			if !lang.Valid() {
				return fmt.Errorf("seed service pack at index %d: unsupported language %q", idx, d.Language)
			}
			details = append(details, servicepack.Detail{Language: lang, Contents: d.Contents})
		}

		existing, err := packs.FindByVersion(ctx, version)
		switch {
		case err == nil:
			existing.Description = description
			existing.ReleaseDate = datatypes.Date(date)
			existing.Details = nil
			if saveErr := packs.UpdateWithDetails(ctx, existing, details, true); saveErr != nil {
				return fmt.Errorf("update service pack at index %d: %w", idx, saveErr)
			}
			updated++
		case errors.Is(err, gorm.ErrRecordNotFound):
			pack := &servicepack.ServicePack{
				Description:   description,
				VersionNumber: version,
				ReleaseDate:   datatypes.Date(date),
			}
			if createErr := packs.CreateWithDetails(ctx, pack, details); createErr != nil {
				return fmt.Errorf("insert service pack at index %d: %w", idx, createErr)
			}
			inserted++
		default:
			return fmt.Errorf("query service pack at index %d: %w", idx, err)
		}
	}
	logger.Infow("同步补丁包数据完成", "inserted", inserted, "updated", updated, "total", len(seeds))
	return nil
}

func loadServicePackSeeds(path string) ([]servicePackSeed, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envServicePackFile))
	}
	raw := embeddedServicePacks
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service pack seed: %w", err)
		}
		raw = data
	}

	var file seedFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse service pack seed: %w", err)
	}
	return file.ServicePacks, nil
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
