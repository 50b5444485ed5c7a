// pkg/auth/token.go
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minSecretLength = 32

// TokenManager выпускает и проверяет сессионные JWT токены.
type TokenManager interface {
	Generate(userID int64, username string) (string, error)
	Validate(tokenString string) (*Claims, error)
}

// jwtManager реализует TokenManager (HS256).
type jwtManager struct {
	secretKey     []byte
	tokenDuration time.Duration
	issuer        string
	now           func() time.Time
}

// Claims определяет данные, хранимые в JWT.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenOption tweaks a token manager.
type TokenOption func(*jwtManager)

// WithIssuer sets the iss claim issued and required.
func WithIssuer(issuer string) TokenOption {
	return func(m *jwtManager) { m.issuer = issuer }
}

// WithNow overrides the time source, for tests.
func WithNow(now func() time.Time) TokenOption {
	return func(m *jwtManager) { m.now = now }
}

// ErrWeakSecret is returned when the signing secret is too short for HS256.
var ErrWeakSecret = fmt.Errorf("JWT secret key must be at least %d bytes", minSecretLength)

// NewTokenManager создает jwtManager. The secret is process-wide configuration
// injected at init time.
func NewTokenManager(secretKey string, tokenDuration time.Duration, opts ...TokenOption) (TokenManager, error) {
	if secretKey == "" {
		return nil, errors.New("JWT secret key cannot be empty")
	}
	if len(secretKey) < minSecretLength {
		return nil, ErrWeakSecret
	}
	if tokenDuration <= 0 {
		return nil, errors.New("JWT token duration must be positive")
	}
	m := &jwtManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		issuer:        "yamdb",
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Generate создает новый JWT токен для пользователя.
func (m *jwtManager) Generate(userID int64, username string) (string, error) {
	now := m.now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Validate проверяет подпись и срок действия токена. There is no revocation
// list: signature and exp are the only validity checks.
func (m *jwtManager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("token subject missing")
	}
	return claims, nil
}
