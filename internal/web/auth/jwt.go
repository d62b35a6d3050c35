package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or claim checks
var ErrInvalidToken = errors.New("invalid token")

// TokenService signs and validates admin session tokens
type TokenService struct {
	secretKey string
	now       func() time.Time
}

// NewTokenService creates a TokenService with the given HMAC secret
func NewTokenService(secretKey string) *TokenService {
	return &TokenService{
		secretKey: secretKey,
		now:       time.Now,
	}
}

// Claims identifies the admin a token was issued to
type Claims struct {
	AdminID  string
	Username string
	TokenID  string
	Expires  time.Time
}

// GenerateToken issues a token for the admin valid for ttl. Every token
// carries a unique jti so it can be revoked individually.
func (s *TokenService) GenerateToken(adminID, username string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      adminID,
		"username": username,
		"jti":      uuid.NewString(),
		"exp":      now.Add(ttl).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secretKey))
}

// ValidateToken validates a token and returns its claims
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Verify exact signing method to prevent algorithm confusion attacks
		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secretKey), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, _ := mc["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	username, _ := mc["username"].(string)
	jti, _ := mc["jti"].(string)

	claims := &Claims{AdminID: sub, Username: username, TokenID: jti}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.Expires = exp.Time
	}
	return claims, nil
}
