package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"swiftfit/internal/api"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization header required"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) != "Bearer" {
		return "", "Invalid authorization header format"
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return "", "Token is empty"
	}
	return tokenString, ""
}

func AuthMiddleware(accessTokenSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := bearerToken(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: problem, Code: "UNAUTHENTICATED"})
			return
		}

		claims, err := ValidateToken(tokenString, accessTokenSecret)
		if err != nil {
			msg := "Invalid or malformed token"
			switch {
			case errors.Is(err, ErrTokenExpired):
				msg = "Token expired"
			case errors.Is(err, ErrInvalidTokenType):
				msg = "Invalid token type"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: msg, Code: "UNAUTHENTICATED"})
			return
		}

		if claims.TokenType != "access" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Access token required", Code: "UNAUTHENTICATED"})
			return
		}

		c.Set(identityKey, claims.Identity())
		c.Next()
	}
}

// RequireRole lets the request through when the caller holds any of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User role not found", Code: "UNAUTHENTICATED"})
			return
		}

		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, api.ErrorResponse{Error: "Insufficient permissions", Code: "FORBIDDEN"})
	}
}

// CronSecret guards scheduler endpoints with a shared bearer secret.
func CronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{Error: "cron secret not configured", Code: "CRON_SECRET_MISSING"})
			return
		}

		token, _ := bearerToken(c)
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized", Code: "UNAUTHENTICATED"})
			return
		}
		c.Next()
	}
}

func GetIdentity(c *gin.Context) (Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

func GetUserID(c *gin.Context) (int, bool) {
	id, ok := GetIdentity(c)
	if !ok {
		return 0, false
	}
	return id.UserID, true
}

// SetIdentity stores id on the context; used by tests and internal callers.
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(identityKey, id)
}

func (i Identity) IsStaff() bool {
	return i.Role == RoleAdmin || i.Role == RoleInstructor
}

// CanAccessProfile reports whether the caller may act on profileID.
func (i Identity) CanAccessProfile(profileID int) bool {
	return i.IsStaff() || (i.ProfileID != 0 && i.ProfileID == profileID)
}

var ErrProfileRequired = api.Validation("PROFILE_REQUIRED", "student profile id is required")

// TargetProfile picks the student profile a request acts on: requested when
// given and permitted, otherwise the caller's own.
func TargetProfile(id Identity, requested int) (int, error) {
	if requested == 0 {
		if id.ProfileID == 0 {
			return 0, ErrProfileRequired
		}
		return id.ProfileID, nil
	}
	if !id.CanAccessProfile(requested) {
		return 0, api.ErrForbidden
	}
	return requested, nil
}

// CurrentIdentity returns the caller or writes a 401 and reports false.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	id, ok := GetIdentity(c)
	if !ok {
		api.RespondError(c, api.ErrUnauthenticated)
	}
	return id, ok
}
