package adminuser

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	domain "iqupdate/backend/internal/domain/user"
	appLogger "iqupdate/backend/internal/infra/logger"
	"iqupdate/backend/internal/service/access"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrRoleNotFound = errors.New("role not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrRoleTaken    = errors.New("role name already exists")
	ErrUnknownRole  = errors.New("unknown role")
	ErrSelfDelete   = errors.New("cannot delete the current user")
)

// ValidationError 指出出错的字段。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UserStore 由 repository.UserRepository 实现。
type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, u *domain.User, roles []domain.Role) error
	Delete(ctx context.Context, id uint) error
}

// RoleStore 由 repository.RoleRepository 实现。
type RoleStore interface {
	List(ctx context.Context) ([]domain.Role, error)
	FindByID(ctx context.Context, id uint) (*domain.Role, error)
	FindByNames(ctx context.Context, names []string) ([]domain.Role, error)
	Create(ctx context.Context, role *domain.Role) error
	Update(ctx context.Context, role *domain.Role) error
	Delete(ctx context.Context, id uint) error
}

// Service 支撑 superuser 的用户与角色管理视图。
type Service struct {
	users  UserStore
	roles  RoleStore
	allow  access.Policy
	logger *zap.SugaredLogger
}

// NewService 创建管理服务；policy 为空时要求 superuser 角色。
func NewService(users UserStore, roles RoleStore, policy access.Policy) *Service {
	if policy == nil {
		policy = access.RequireRole(domain.RoleSuperuser)
	}
	return &Service{
		users:  users,
		roles:  roles,
		allow:  policy,
		logger: appLogger.S().With("component", "adminuser.service"),
	}
}

// UserInput 描述新增/编辑用户的字段。
// 编辑时 Password 为空表示不修改，Active 为 nil 表示不修改，Roles 为 nil 表示保留原有角色。
type UserInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Active    *bool
	Roles     []string
}

// UserView 为返回给后台的用户信息，不包含密码哈希。
type UserView struct {
	ID        uint      `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleInput 描述新增/编辑角色的字段。
type RoleInput struct {
	Name        string
	Description string
}

// ListUsers 返回全部后台用户。
func (s *Service) ListUsers(ctx context.Context, actor access.Actor) ([]UserView, error) {
	if err := s.allow(actor); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	views := make([]UserView, 0, len(users))
	for i := range users {
		views = append(views, toView(&users[i]))
	}
	return views, nil
}

// GetUser 返回单个用户。
func (s *Service) GetUser(ctx context.Context, actor access.Actor, id uint) (UserView, error) {
	if err := s.allow(actor); err != nil {
		return UserView{}, err
	}
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return UserView{}, err
	}
	return toView(u), nil
}

// CreateUser 新建用户，密码必填，未指定 Active 时默认启用。
func (s *Service) CreateUser(ctx context.Context, actor access.Actor, input UserInput) (UserView, error) {
	if err := s.allow(actor); err != nil {
		return UserView{}, err
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return UserView{}, err
	}
	if input.Password == "" {
		return UserView{}, &ValidationError{Field: "password", Message: "password is required"}
	}
	roles, err := s.resolveRoles(ctx, input.Roles)
	if err != nil {
		return UserView{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserView{}, fmt.Errorf("hash password: %w", err)
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}
	u := &domain.User{
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        email,
		PasswordHash: string(hash),
		Active:       active,
		Roles:        roles,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return UserView{}, ErrEmailTaken
		}
		return UserView{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Infow("user created", "user_id", u.ID, "roles", u.RoleNames())
	return s.GetUser(ctx, actor, u.ID)
}

// UpdateUser 修改用户资料、状态与角色。
func (s *Service) UpdateUser(ctx context.Context, actor access.Actor, id uint, input UserInput) (UserView, error) {
	if err := s.allow(actor); err != nil {
		return UserView{}, err
	}
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return UserView{}, err
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return UserView{}, err
	}

	var roles []domain.Role
	if input.Roles != nil {
		if roles, err = s.resolveRoles(ctx, input.Roles); err != nil {
			return UserView{}, err
		}
		if roles == nil {
			roles = []domain.Role{}
		}
	}

	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return UserView{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	u.FirstName = strings.TrimSpace(input.FirstName)
	u.LastName = strings.TrimSpace(input.LastName)
	u.Email = email
	if input.Active != nil {
		u.Active = *input.Active
	}
	u.Roles = nil

	if err := s.users.Update(ctx, u, roles); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return UserView{}, ErrEmailTaken
		}
		return UserView{}, fmt.Errorf("update user: %w", err)
	}
	s.logger.Infow("user updated", "user_id", id)
	return s.GetUser(ctx, actor, id)
}

// DeleteUser 删除用户及其角色关联。selfID 为当前登录用户，禁止删除自己。
func (s *Service) DeleteUser(ctx context.Context, actor access.Actor, selfID, id uint) error {
	if err := s.allow(actor); err != nil {
		return err
	}
	if selfID != 0 && selfID == id {
		return ErrSelfDelete
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Infow("user deleted", "user_id", id)
	return nil
}

// ListRoles 返回全部角色。
func (s *Service) ListRoles(ctx context.Context, actor access.Actor) ([]domain.Role, error) {
	if err := s.allow(actor); err != nil {
		return nil, err
	}
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// CreateRole 新建角色。
func (s *Service) CreateRole(ctx context.Context, actor access.Actor, input RoleInput) (*domain.Role, error) {
	if err := s.allow(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > 80 {
		return nil, &ValidationError{Field: "name", Message: "name is required and must be at most 80 characters"}
	}
	role := &domain.Role{Name: name, Description: strings.TrimSpace(input.Description)}
	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrRoleTaken
		}
		return nil, fmt.Errorf("create role: %w", err)
	}
	return role, nil
}

// UpdateRole 修改角色名称与描述。
func (s *Service) UpdateRole(ctx context.Context, actor access.Actor, id uint, input RoleInput) (*domain.Role, error) {
	if err := s.allow(actor); err != nil {
		return nil, err
	}
	role, err := s.roles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("load role: %w", err)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > 80 {
		return nil, &ValidationError{Field: "name", Message: "name is required and must be at most 80 characters"}
	}
	role.Name = name
	role.Description = strings.TrimSpace(input.Description)
	if err := s.roles.Update(ctx, role); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrRoleTaken
		}
		return nil, fmt.Errorf("update role: %w", err)
	}
	return role, nil
}

// DeleteRole 删除角色并解除其用户关联。
func (s *Service) DeleteRole(ctx context.Context, actor access.Actor, id uint) error {
	if err := s.allow(actor); err != nil {
		return err
	}
	if err := s.roles.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("delete role: %w", err)
	}
	return nil
}

func (s *Service) loadUser(ctx context.Context, id uint) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// resolveRoles 把角色名映射为角色记录，任一名称不存在即报错。
func (s *Service) resolveRoles(ctx context.Context, names []string) ([]domain.Role, error) {
	cleaned := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(name)]; ok {
			continue
		}
		seen[strings.ToLower(name)] = struct{}{}
		cleaned = append(cleaned, name)
	}
	if len(cleaned) == 0 {
		return nil, nil
	}
	roles, err := s.roles.FindByNames(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("find roles: %w", err)
	}
	if len(roles) != len(cleaned) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, strings.Join(cleaned, ","))
	}
	return roles, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", &ValidationError{Field: "email", Message: "email is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &ValidationError{Field: "email", Message: "email is invalid"}
	}
	return strings.ToLower(email), nil
}

func toView(u *domain.User) UserView {
	return UserView{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Active:    u.Active,
		Roles:     u.RoleNames(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
