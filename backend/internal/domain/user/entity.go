/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 20:38:45
 * @FilePath: \iqupdate\backend\internal\domain\user\entity.go
 * @LastEditTime: 2025-10-20 09:52:40
 */
package user

import (
	"strings"
	"time"
)

const (
	// RoleSuperuser 可以管理用户与角色等通用后台视图。
	RoleSuperuser = "superuser"
	// RoleReleaseUser 可以维护补丁包及其更新说明。
	RoleReleaseUser = "releaseuser"
)

// User represents an administrator account of the release console.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`                       // 自增主键
	FirstName    string    `gorm:"size:255" json:"first_name"`                 // 名
	LastName     string    `gorm:"size:255" json:"last_name"`                  // 姓
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"` // 登录邮箱（唯一）
	PasswordHash string    `gorm:"size:255" json:"-"`                          // Bcrypt 生成的密码哈希
	Active       bool      `gorm:"not null" json:"active"`                     // 停用后无法登录，也无法访问后台
	Roles        []Role    `gorm:"many2many:roles_users;" json:"roles"`        // 用户拥有的角色集合
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRole 判断用户是否拥有指定角色（名称大小写不敏感）。
func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	for _, role := range u.Roles {
		if strings.EqualFold(role.Name, name) {
			return true
		}
	}
	return false
}

// RoleNames 返回角色名列表，便于写入日志或会话。
func (u *User) RoleNames() []string {
	if u == nil {
		return nil
	}
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		names = append(names, role.Name)
	}
	return names
}

// Role 描述后台的访问角色。
type Role struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:80;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
