/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 20:39:17
 * @FilePath: \iqupdate\backend\internal\repository\user_repository.go
 * @LastEditTime: 2025-10-20 14:30:11
 */
package repository

import (
	"context"
	"fmt"

	"iqupdate/backend/internal/domain/user"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository 封装后台账号的数据访问方法，基于 GORM 实现。
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储实例，接收共享的 *gorm.DB。
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 写入用户记录，同时建立角色关联。
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		roles := u.Roles
		if err := tx.Omit(clause.Associations).Create(u).Error; err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		if len(roles) == 0 {
			return nil
		}
		if err := tx.Model(u).Association("Roles").Replace(roles); err != nil {
			return fmt.Errorf("attach roles: %w", err)
		}
		return nil
	})
}

// FindByID 根据主键查找用户（含角色）。
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).Preload("Roles").First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByEmail 通过邮箱查找用户（含角色），若不存在返回 gorm.ErrRecordNotFound。
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).Preload("Roles").Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// List 按主键升序返回全部用户。
func (r *UserRepository) List(ctx context.Context) ([]user.User, error) {
	var users []user.User
	if err := r.db.WithContext(ctx).Preload("Roles").Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Update 更新用户字段；roles 非 nil 时整体替换角色集合。
func (r *UserRepository) Update(ctx context.Context, u *user.User, roles []user.Role) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(u).Error; err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if roles == nil {
			return nil
		}
		if len(roles) == 0 {
			if err := tx.Model(u).Association("Roles").Clear(); err != nil {
				return fmt.Errorf("clear roles: %w", err)
			}
			u.Roles = roles
			return nil
		}
		if err := tx.Model(u).Association("Roles").Replace(roles); err != nil {
			return fmt.Errorf("replace roles: %w", err)
		}
		u.Roles = roles
		return nil
	})
}

// Delete 解除角色关联后删除用户。
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM roles_users WHERE user_id = ?", id).Error; err != nil {
			return fmt.Errorf("detach roles: %w", err)
		}
		res := tx.Delete(&user.User{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// RoleRepository 负责角色表的增删查改。
type RoleRepository struct {
	db *gorm.DB
}

// NewRoleRepository 创建 RoleRepository。
func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// List 按名称返回全部角色。
func (r *RoleRepository) List(ctx context.Context) ([]user.Role, error) {
	var roles []user.Role
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// FindByID 根据主键查找角色。
func (r *RoleRepository) FindByID(ctx context.Context, id uint) (*user.Role, error) {
	var role user.Role
	if err := r.db.WithContext(ctx).First(&role, id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// FindByNames 批量按名称查找角色，缺失的名称不会报错，由调用方比对数量。
func (r *RoleRepository) FindByNames(ctx context.Context, names []string) ([]user.Role, error) {
	var roles []user.Role
	if len(names) == 0 {
		return roles, nil
	}
	if err := r.db.WithContext(ctx).Where("name IN ?", names).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// Create 新增角色。
func (r *RoleRepository) Create(ctx context.Context, role *user.Role) error {
	return r.db.WithContext(ctx).Create(role).Error
}

// Update 按主键更新角色。
func (r *RoleRepository) Update(ctx context.Context, role *user.Role) error {
	return r.db.WithContext(ctx).Save(role).Error
}

// Delete 删除角色并清理用户关联。
func (r *RoleRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM roles_users WHERE role_id = ?", id).Error; err != nil {
			return fmt.Errorf("detach users: %w", err)
		}
		res := tx.Delete(&user.Role{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete role: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// Ensure 按名称查找角色，不存在时创建，用于初始化数据。
func (r *RoleRepository) Ensure(ctx context.Context, name, description string) (*user.Role, error) {
	role := user.Role{Name: name}
	err := r.db.WithContext(ctx).
		Where(user.Role{Name: name}).
		Attrs(user.Role{Description: description}).
		FirstOrCreate(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}
