package utils

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"dashboard/model"

	"github.com/gin-gonic/gin"
)

const (
	ContextSessionID = "session_id"
	ContextRole      = "user_role"
	ContextClaims    = "claims"
)

// TokenMiddleware accepts the access token from the Authorization header or,
// for the browser's EventSource which cannot set headers, from cookieName.
func TokenMiddleware(tm *TokenManager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := extractToken(c, cookieName)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
			return
		}

		claims, err := tm.ValidateToken(raw, AccessToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
			return
		}

		c.Set(ContextClaims, claims)
		c.Set(ContextSessionID, claims.SessionID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RoleMiddleware lets through only the given roles. It must run after
// TokenMiddleware.
func RoleMiddleware(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ContextRole)
		r, _ := role.(model.Role)
		if !slices.Contains(roles, r) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Forbidden: " + describe(roles) + " access required"})
			return
		}
		c.Next()
	}
}

func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

func extractToken(c *gin.Context, cookieName string) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		return ExtractBearer(header)
	}
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil && v != "" {
			return v, nil
		}
	}
	return "", errors.New("Authorization header required")
}

func ExtractBearer(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", errors.New("invalid token format")
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", errors.New("invalid token format")
	}
	return token, nil
}

func describe(roles []model.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, " or ")
}
