package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/selin/memoria/internal/app/models/dto"
	"github.com/selin/memoria/internal/pkg/apperrors"
	"github.com/selin/memoria/internal/pkg/identity"
)

// ContextKeyExternalUserID is the gin context key carrying the verified
// external user id of the caller.
const ContextKeyExternalUserID = "externalUserID"

// IdentityMiddleware authenticates requests with provider tokens
type IdentityMiddleware struct {
	verifier *identity.Verifier
}

// NewIdentityMiddleware creates a new IdentityMiddleware
func NewIdentityMiddleware(verifier *identity.Verifier) *IdentityMiddleware {
	return &IdentityMiddleware{verifier: verifier}
}

// RequireIdentity validates the bearer token and stores the external user id
// in the request context.
func (m *IdentityMiddleware) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")
			errorDetail = errorDetail.WithDetails("Authorization header missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
			return
		}

		tokenString, err := identity.ExtractBearerToken(authHeader)
		if err != nil {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")
			errorDetail = errorDetail.WithDetails("Invalid token format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
			return
		}

		externalUserID, err := m.verifier.VerifyToken(tokenString)
		if err != nil {
			errorCode := dto.ErrorCodeInvalidToken
			errorDetails := "Invalid token"
			if errors.Is(err, apperrors.ErrTokenExpired) {
				errorCode = dto.ErrorCodeExpiredToken
				errorDetails = "Token has expired"
			}

			errorDetail := dto.NewErrorDetail(errorCode, "Authentication failed")
			errorDetail = errorDetail.WithDetails(errorDetails)
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
			return
		}

		c.Set(ContextKeyExternalUserID, externalUserID)
		c.Next()
	}
}

// ExternalUserID returns the external user id set by RequireIdentity.
func ExternalUserID(c *gin.Context) string {
	return c.GetString(ContextKeyExternalUserID)
}
