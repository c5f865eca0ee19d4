package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clinrota/rotation-api/internal/models"
	"github.com/clinrota/rotation-api/internal/service"
	appErrors "github.com/clinrota/rotation-api/pkg/errors"
	"github.com/clinrota/rotation-api/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the resolved principal.
const ContextPrincipalKey = "currentPrincipal"

// ContextClaimsKey is the gin context key storing the raw JWT claims.
const ContextClaimsKey = "currentClaims"

// JWT protects routes by requiring a valid access token. The token's raw
// permission strings are converted into the tagged principal here, at the
// identity boundary.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextPrincipalKey, claims.Principal())
		c.Next()
	}
}

// Principal returns the acting principal stored by the JWT middleware.
func Principal(c *gin.Context) (models.Principal, bool) {
	value, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return models.Principal{}, false
	}
	principal, ok := value.(models.Principal)
	return principal, ok
}

// Claims returns the raw JWT claims stored by the JWT middleware.
func Claims(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(ContextClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}
