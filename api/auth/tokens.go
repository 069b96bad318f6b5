// Package auth issues and verifies the backend's credentials: JWT access
// tokens for browsers, conversation-scoped JWT tokens for containers,
// hashed refresh tokens, and password hashes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are embedded in a user-facing access token.
type Claims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// ContainerClaims are embedded in a container token. The subject is the
// conversation ID the container is bound to.
type ContainerClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// CreateAccessToken signs an access token for a user with the given TTL.
func CreateAccessToken(userID, username string, isAdmin bool, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyAccessToken parses and validates an access token.
func VerifyAccessToken(token, secret string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, keyFunc(secret))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CreateContainerToken signs a token scoped to a single conversation.
func CreateContainerToken(conversationID, userID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ContainerClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   conversationID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyContainerToken parses and validates a container token.
func VerifyContainerToken(token, secret string) (*ContainerClaims, error) {
	claims := &ContainerClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, keyFunc(secret))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func keyFunc(secret string) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}
}
