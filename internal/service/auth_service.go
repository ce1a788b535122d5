package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/trashinator/internal/db"
	"gorm.io/gorm"
)

const tokenIssuer = "trashinator"

var (
	// ErrUnauthenticated 表示令牌缺失、无效或已过期
	ErrUnauthenticated = errors.New("not authorized")
	// ErrInvalidCredentials 表示用户名或密码错误
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrForbidden 表示已登录用户没有管理员权限
	ErrForbidden = errors.New("admin privileges required")
)

// TokenService 签发并解析 HS256 令牌，subject 为用户 ID
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService 构造 TokenService
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock 允许在测试中固定签发与校验时间
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue 为用户签发令牌
func (s *TokenService) Issue(userID uint) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Resolve 将令牌解析为用户 ID，任何失败都返回 ErrUnauthenticated
func (s *TokenService) Resolve(tokenString string) (uint, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return 0, ErrUnauthenticated
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid subject", ErrUnauthenticated)
	}
	return uint(id), nil
}

// AuthService 校验账号密码并签发令牌
type AuthService struct {
	db     *gorm.DB
	tokens *TokenService
}

// NewAuthService 构造 AuthService
func NewAuthService(gdb *gorm.DB, tokens *TokenService) *AuthService {
	return &AuthService{db: gdb, tokens: tokens}
}

// Authenticate 校验用户名与密码
func (s *AuthService) Authenticate(username, password string) (*db.User, error) {
	var user db.User
	if err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Login 校验凭据并返回令牌
func (s *AuthService) Login(username, password string) (string, *db.User, error) {
	user, err := s.Authenticate(username, password)
	if err != nil {
		return "", nil, err
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Resolve 暴露令牌解析，供 handler 中间件使用
func (s *AuthService) Resolve(token string) (uint, error) {
	return s.tokens.Resolve(token)
}

// RequireAdmin 确认用户存在且为管理员，否则返回 ErrForbidden
func (s *AuthService) RequireAdmin(userID uint) error {
	var user db.User
	err := s.db.Select("id", "is_admin").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if !user.IsAdmin {
		return ErrForbidden
	}
	return nil
}
