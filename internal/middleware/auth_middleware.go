package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/happypaws/dogwalk-backend/internal/models"
	"github.com/happypaws/dogwalk-backend/pkg/jwt"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// UserContext represents the authenticated user's information
type UserContext struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	Role   string    `json:"role"`
}

// Requester converts the context into the identity services work with
func (u UserContext) Requester() models.Requester {
	return models.Requester{UserID: u.UserID, Role: u.Role}
}

// TokenValidator validates bearer tokens issued by the identity provider
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*jwt.Claims, error)
}

func abortWith(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// AuthMiddleware creates a middleware that validates JWT tokens
func AuthMiddleware(validator TokenValidator, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.WithFields(logrus.Fields{
			"path": c.Request.URL.Path,
			"ip":   c.ClientIP(),
		})

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Debug("Auth failed: missing authorization header")
			abortWith(c, http.StatusUnauthorized, "MISSING_AUTH_HEADER", "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			log.Debug("Auth failed: invalid authorization format")
			abortWith(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Invalid authorization header format. Expected: Bearer <token>")
			return
		}

		claims, err := validator.ValidateAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				log.WithError(err).Debug("Auth failed: token expired")
				abortWith(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Access token has expired")
				return
			}
			log.WithError(err).Warn("Auth failed: invalid token")
			abortWith(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid access token")
			return
		}

		role := claims.Role
		if role == "" {
			role = models.RoleUser
		}

		c.Set(UserContextKey, UserContext{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   role,
		})

		c.Next()
	}
}

// RequireRole creates a middleware that checks if user has one of the roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			abortWith(c, http.StatusUnauthorized, "MISSING_USER_CONTEXT", "User not authenticated")
			return
		}

		for _, role := range roles {
			if userCtx.Role == role {
				c.Next()
				return
			}
		}

		abortWith(c, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "You don't have permission to access this resource")
	}
}

// GetUserContext retrieves the user context from Gin context
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}

	userCtx, ok := value.(UserContext)
	if !ok {
		return UserContext{}, false
	}

	return userCtx, true
}
