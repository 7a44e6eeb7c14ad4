/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 20:40:06
 * @FilePath: \iqupdate\backend\internal\service\auth\service.go
 * @LastEditTime: 2025-10-20 17:05:31
 */
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "iqupdate/backend/internal/domain/user"
	"iqupdate/backend/internal/infra/captcha"
	appLogger "iqupdate/backend/internal/infra/logger"
	"iqupdate/backend/internal/infra/token"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidLogin       = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrCaptchaRequired    = errors.New("captcha is required")
	ErrCaptchaInvalid     = errors.New("captcha verification failed")
	ErrCaptchaExpired     = errors.New("captcha expired or not found")
	ErrCaptchaRateLimited = errors.New("captcha requests too frequent")
	ErrCaptchaDisabled    = errors.New("captcha is not enabled")
	ErrSessionInvalid     = errors.New("session is invalid or expired")
)

// UserStore 是鉴权所需的用户查询能力，由 repository.UserRepository 实现。
type UserStore interface {
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// TokenManager 签发并解析后台会话令牌。
type TokenManager interface {
	Issue(user *domain.User) (token.Session, error)
	Parse(raw string) (token.Claims, error)
}

// SessionStore 保存会话指纹（userID + jti），用于登出吊销。
type SessionStore interface {
	Save(ctx context.Context, userID uint, tokenID string, expiresAt time.Time) error
	Delete(ctx context.Context, userID uint, tokenID string) error
	Exists(ctx context.Context, userID uint, tokenID string) (bool, error)
}

// CaptchaManager 聚合验证码生成与校验。
type CaptchaManager interface {
	Generate(ctx context.Context, ip string) (string, string, error)
	Verify(ctx context.Context, id string, answer string) error
}

// Caller 是已登录的后台用户。nil 表示匿名访问。
type Caller struct {
	UserID    uint
	Email     string
	Name      string
	Active    bool
	Roles     []string
	TokenID   string
	ExpiresAt time.Time
}

// IsAuthenticated 判断是否已登录。
func (c *Caller) IsAuthenticated() bool {
	return c != nil && c.UserID != 0
}

// IsActive 判断账号是否启用。
func (c *Caller) IsActive() bool {
	return c != nil && c.Active
}

// HasRole 判断是否拥有指定角色（大小写不敏感）。
func (c *Caller) HasRole(name string) bool {
	if c == nil {
		return false
	}
	for _, role := range c.Roles {
		if strings.EqualFold(role, name) {
			return true
		}
	}
	return false
}

// Service 负责后台登录、登出与会话校验。
//
// 依赖说明：
//   - UserStore：按邮箱/ID 读取用户及其角色。
//   - TokenManager：签发 / 解析会话 JWT。
//   - SessionStore：保存会话 jti，登出后令牌即失效。
//   - CaptchaManager：启用时登录必须携带验证码，可为空。
type Service struct {
	users    UserStore
	tokens   TokenManager
	sessions SessionStore
	captcha  CaptchaManager
	logger   *zap.SugaredLogger
}

// NewService 创建鉴权服务。cm 为空表示登录不需要验证码。
func NewService(users UserStore, tm TokenManager, sessions SessionStore, cm CaptchaManager) *Service {
	return &Service{
		users:    users,
		tokens:   tm,
		sessions: sessions,
		captcha:  cm,
		logger:   appLogger.S().With("component", "auth.service"),
	}
}

// LoginParams 封装登录表单。
type LoginParams struct {
	Email       string
	Password    string
	CaptchaID   string
	CaptchaCode string
}

// Login 校验验证码（若启用）与密码，拒绝停用账号，签发会话并写入存储。
func (s *Service) Login(ctx context.Context, params LoginParams) (*domain.User, token.Session, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	log := s.scope("login").With("email", email)

	log.Infow("login attempt")

	if s.captcha != nil {
		if strings.TrimSpace(params.CaptchaID) == "" || strings.TrimSpace(params.CaptchaCode) == "" {
			log.Warn("captcha required but missing")
			return nil, token.Session{}, ErrCaptchaRequired
		}
		if err := s.captcha.Verify(ctx, params.CaptchaID, params.CaptchaCode); err != nil {
			switch {
			case errors.Is(err, captcha.ErrCaptchaNotFound):
				log.Warnw("captcha expired or not found", "captcha_id", params.CaptchaID)
				return nil, token.Session{}, ErrCaptchaExpired
			case errors.Is(err, captcha.ErrCaptchaMismatch):
				log.Warnw("captcha mismatch", "captcha_id", params.CaptchaID)
				return nil, token.Session{}, ErrCaptchaInvalid
			default:
				log.Errorw("captcha verify failed", "error", err)
				return nil, token.Session{}, fmt.Errorf("captcha verify: %w", err)
			}
		}
	}

	if email == "" || params.Password == "" {
		return nil, token.Session{}, ErrInvalidLogin
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("login email not found")
			return nil, token.Session{}, ErrInvalidLogin
		}
		log.Errorw("find user failed", "error", err)
		return nil, token.Session{}, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(params.Password)); err != nil {
		log.Warnw("password mismatch", "user_id", user.ID)
		return nil, token.Session{}, ErrInvalidLogin
	}

	if !user.Active {
		log.Warnw("inactive account", "user_id", user.ID)
		return nil, token.Session{}, ErrAccountInactive
	}

	session, err := s.tokens.Issue(user)
	if err != nil {
		log.Errorw("issue session failed", "error", err)
		return nil, token.Session{}, fmt.Errorf("issue session: %w", err)
	}
	if err := s.sessions.Save(ctx, user.ID, session.ID, session.ExpiresAt); err != nil {
		log.Errorw("save session failed", "error", err)
		return nil, token.Session{}, fmt.Errorf("save session: %w", err)
	}

	log.With("user_id", user.ID, "roles", user.RoleNames()).Infow("login success")
	return user, session, nil
}

// Logout 吊销会话。令牌无效或已过期时视为已登出。
func (s *Service) Logout(ctx context.Context, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.UserID, claims.TokenID); err != nil {
		s.scope("logout").Errorw("delete session failed", "error", err, "user_id", claims.UserID)
		return fmt.Errorf("delete session: %w", err)
	}
	s.scope("logout").Infow("logout success", "user_id", claims.UserID)
	return nil
}

// Authenticate 解析令牌、确认会话未被吊销，并按最新的用户数据构造 Caller。
// 角色或启用状态在会话期间的变更会立即生效。
func (s *Service) Authenticate(ctx context.Context, raw string) (*Caller, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	ok, err := s.sessions.Exists(ctx, claims.UserID, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !ok {
		return nil, ErrSessionInvalid
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	return &Caller{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      strings.TrimSpace(user.FirstName + " " + user.LastName),
		Active:    user.Active,
		Roles:     user.RoleNames(),
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// CaptchaEnabled 表示登录是否需要验证码。
func (s *Service) CaptchaEnabled() bool {
	return s != nil && s.captcha != nil
}

// GenerateCaptcha 生成登录验证码。
func (s *Service) GenerateCaptcha(ctx context.Context, ip string) (string, string, error) {
	if !s.CaptchaEnabled() {
		return "", "", ErrCaptchaDisabled
	}
	id, b64, err := s.captcha.Generate(ctx, ip)
	if err != nil {
		if errors.Is(err, captcha.ErrRateLimited) {
			return "", "", ErrCaptchaRateLimited
		}
		return "", "", fmt.Errorf("generate captcha: %w", err)
	}
	return id, b64, nil
}

// HashPassword 使用 bcrypt 对明文密码加盐哈希。
func HashPassword(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s *Service) scope(operation string) *zap.SugaredLogger {
	if s.logger == nil {
		s.logger = appLogger.S().With("component", "auth.service")
	}
	return s.logger.With("operation", operation)
}
