// Package identity verifies tokens issued by the external identity provider.
// The service never issues tokens itself; accounts are keyed by the
// provider's subject claim.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/selin/memoria/internal/pkg/apperrors"
)

// Config defines token verification settings
type Config struct {
	// SecretKey is the HMAC secret shared with the identity provider.
	SecretKey string
	// Issuer, when non-empty, must match the token's iss claim.
	Issuer string
}

// Verifier validates provider tokens
type Verifier struct {
	config Config
}

// NewVerifier creates a new Verifier
func NewVerifier(config Config) *Verifier {
	return &Verifier{config: config}
}

// VerifyToken validates a token and returns the external user id carried in
// the subject claim.
func (v *Verifier) VerifyToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", apperrors.ErrTokenInvalid
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.config.SecretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperrors.ErrTokenExpired
		}
		return "", apperrors.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", apperrors.ErrTokenInvalid
	}
	if v.config.Issuer != "" && claims.Issuer != v.config.Issuer {
		return "", apperrors.ErrTokenInvalid
	}
	if claims.Subject == "" {
		return "", apperrors.ErrTokenInvalid
	}
	return claims.Subject, nil
}

// ExtractBearerToken extracts the token from the Authorization header
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", apperrors.ErrInvalidFormat
	}
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer "), nil
	}
	// Raw tokens are accepted for convenience (Swagger UI).
	return authHeader, nil
}
