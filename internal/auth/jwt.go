package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleOperator is the only role issued today
const RoleOperator = "operator"

var ErrMissingSecret = errors.New("auth: jwt secret is not configured")

// JWTClaims represents the claims in an operator token
type JWTClaims struct {
	OperatorID string `json:"operator_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs and validates operator tokens with a shared HS256 secret
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Enabled reports whether subscriber endpoints should demand a token
func (s *TokenService) Enabled() bool {
	return s != nil && len(s.secret) > 0
}

func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// GenerateOperatorToken generates a JWT token for a dispatcher console
func (s *TokenService) GenerateOperatorToken(operatorID, username string) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrMissingSecret
	}
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &JWTClaims{
		OperatorID: operatorID,
		Username:   username,
		Role:       RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *TokenService) ValidateToken(tokenString string) (*JWTClaims, error) {
	if !s.Enabled() {
		return nil, ErrMissingSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		if claims.Role != RoleOperator {
			return nil, jwt.ErrTokenInvalidClaims
		}
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
