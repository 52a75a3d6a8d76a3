package middlewares

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/utils"
)

const revokedTokenPrefix = "RevokedToken:"

// tokenFromRequest accepts "Authorization: Bearer <jwt>" or the bare "token" header.
func tokenFromRequest(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		const bearer = "Bearer "
		if len(auth) > len(bearer) && strings.EqualFold(auth[:len(bearer)], bearer) {
			return strings.TrimSpace(auth[len(bearer):])
		}
	}
	return strings.TrimSpace(r.Header.Get("token"))
}

// SessionMiddleware puts the employee, branch and role of a valid token in the
// request context. Requests without a token pass through unauthenticated.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c.Request)
		if token == "" {
			c.Next()
			return
		}
		claims, err := utils.ParseClaims(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		_, revoked, err := config.GetRedisValue(revokedTokenPrefix + token)
		if err != nil {
			config.LogError(config.GetLogger(), "sessionMiddleware.go", "SessionMiddleware", "check revocation", claims.EmployeeId, err)
		}
		if revoked {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetEmployeeIdInContext(ctx, claims.EmployeeId)
		ctx = utils.SetBranchIdInContext(ctx, claims.BranchId)
		ctx = utils.SetEmployeeRoleInContext(ctx, claims.Role)
		ctx = utils.SetUsernameInContext(ctx, claims.Username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireSession rejects requests that SessionMiddleware left unauthenticated.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetEmployeeIdFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RevokeToken blocks the session token in ctx until it would have expired.
func RevokeToken(ctx context.Context) error {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return nil
	}
	ttl := 12 * time.Hour
	if claims, err := utils.ParseClaims(token); err == nil && claims.ExpiresAt > 0 {
		ttl = time.Until(time.Unix(claims.ExpiresAt, 0))
	}
	if ttl <= 0 {
		return nil
	}
	return config.SetRedisValue(revokedTokenPrefix+token, "1", ttl)
}
