package middleware

import (
	"net/http"

	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PermissionConfig holds configuration for permission middleware
type PermissionConfig struct {
	Logger *zap.Logger
}

// RequirePermission requires any one of permissions
func RequirePermission(permissions ...string) gin.HandlerFunc {
	return RequirePermissionWithConfig(PermissionConfig{}, permissions...)
}

// RequirePermissionWithConfig requires any one of permissions. Anonymous requests,
// which only exist when tokens are optional, pass through.
func RequirePermissionWithConfig(cfg PermissionConfig, permissions ...string) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if c.GetBool(AnonymousKey) {
			c.Next()
			return
		}
		claims := GetJWTClaims(c)
		if claims == nil {
			denyPermission(c, log, permissions, "No authentication claims found")
			return
		}
		for _, p := range permissions {
			if claims.HasPermission(p) {
				c.Next()
				return
			}
		}
		denyPermission(c, log, permissions, "User lacks required permission")
	}
}

func denyPermission(c *gin.Context, log *zap.Logger, required []string, reason string) {
	log.Warn("Permission denied",
		zap.String("actor_id", c.GetString(ActorIDKey)),
		zap.Strings("required_any", required),
		zap.String("reason", reason),
		zap.String("path", c.Request.URL.Path),
	)
	c.AbortWithStatusJSON(http.StatusForbidden,
		dto.NewErrorResponse(dto.ErrCodeForbidden, "Permission denied", GetRequestID(c)))
}

// HasPermission reports whether the request may use permission
func HasPermission(c *gin.Context, permission string) bool {
	if c.GetBool(AnonymousKey) {
		return true
	}
	claims := GetJWTClaims(c)
	return claims != nil && claims.HasPermission(permission)
}
