/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 20:40:41
 * @FilePath: \iqupdate\backend\internal\infra\token\jwt_manager.go
 * @LastEditTime: 2025-10-20 11:48:26
 */
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	domain "iqupdate/backend/internal/domain/user"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	claimTokenType   = "token_type"
	claimTokenID     = "jti"
	claimEmail       = "email"
	tokenTypeSession = "admin_session"
)

// ErrInvalidToken 表示令牌无法通过校验（签名、过期或类型不符）。
var ErrInvalidToken = errors.New("invalid session token")

// Session 是签发给后台用户的会话令牌。
type Session struct {
	Token     string
	ID        string
	UserID    uint
	ExpiresAt time.Time
}

// Claims 为从令牌中解析出的关键字段。
type Claims struct {
	UserID    uint
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

// JWTManager 基于对称密钥签发、校验后台会话令牌。
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTManager 创建 JWT 管理器。
func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &JWTManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL 返回会话有效期。
func (m *JWTManager) TTL() time.Duration {
	return m.ttl
}

// Issue 为用户签发会话令牌，jti 随机生成并需由调用方写入会话存储。
func (m *JWTManager) Issue(user *domain.User) (Session, error) {
	if user == nil || user.ID == 0 {
		return Session{}, errors.New("user required")
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)
	tokenID := uuid.NewString()

	claims := jwt.MapClaims{
		"sub":          strconv.FormatUint(uint64(user.ID), 10),
		"iat":          now.Unix(),
		"exp":          expiresAt.Unix(),
		claimEmail:     user.Email,
		claimTokenID:   tokenID,
		claimTokenType: tokenTypeSession,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session token: %w", err)
	}

	return Session{
		Token:     signed,
		ID:        tokenID,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}, nil
}

// Parse 校验签名与过期时间，返回会话声明。任何校验失败都包装为 ErrInvalidToken。
func (m *JWTManager) Parse(raw string) (Claims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	if tType, _ := claims[claimTokenType].(string); tType != tokenTypeSession {
		return Claims{}, fmt.Errorf("%w: unexpected token type", ErrInvalidToken)
	}

	userID, err := subjectID(claims["sub"])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	tokenID, _ := claims[claimTokenID].(string)
	if tokenID == "" {
		return Claims{}, fmt.Errorf("%w: missing token id", ErrInvalidToken)
	}

	email, _ := claims[claimEmail].(string)

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	return Claims{
		UserID:    userID,
		Email:     email,
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	}, nil
}

func subjectID(raw any) (uint, error) {
	var subRaw string
	switch v := raw.(type) {
	case string:
		subRaw = v
	case float64:
		if v < 0 {
			return 0, errors.New("invalid subject")
		}
		subRaw = strconv.FormatFloat(v, 'f', 0, 64)
	case json.Number:
		subRaw = v.String()
	default:
		return 0, errors.New("missing subject")
	}

	id64, err := strconv.ParseUint(subRaw, 10, 64)
	if err != nil || id64 == 0 {
		return 0, fmt.Errorf("parse subject %q", subRaw)
	}
	return uint(id64), nil
}
