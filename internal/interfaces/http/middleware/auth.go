package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"hostel-hub.backend/internal/domain/entities"
	domainerrors "hostel-hub.backend/internal/domain/errors"
	"hostel-hub.backend/internal/interfaces/http/response"
	"hostel-hub.backend/pkg/jwt"
	"hostel-hub.backend/pkg/logger"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerScheme is the authorization scheme for session tokens
	BearerScheme = "Bearer"
	// UserIDKey is the context key for user ID
	UserIDKey = "userId"
	// UserRoleKey is the context key for user role
	UserRoleKey = "userRole"
)

type tokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// AuthMiddleware rejects requests without a valid session token and attaches
// the caller's id and role to the context.
func AuthMiddleware(validator tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader(AuthorizationHeader))
		if !ok {
			response.Error(c, domainerrors.ErrNoToken)
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			logger.Debug(c.Request.Context(), "Session token rejected",
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
			message := "Invalid token"
			if errors.Is(err, jwt.ErrExpiredToken) {
				message = "Token has expired"
			}
			response.Error(c, domainerrors.NewAppError(http.StatusUnauthorized, domainerrors.CodeInvalidToken, message, domainerrors.ErrInvalidToken))
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserRoleKey, entities.UserRole(claims.Role))

		ctx := context.WithValue(c.Request.Context(), logger.UserIDKey, claims.UserID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetUserID gets the user ID from context
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// GetUserRole gets the user role from context
func GetUserRole(c *gin.Context) (entities.UserRole, bool) {
	v, exists := c.Get(UserRoleKey)
	if !exists {
		return "", false
	}
	role, ok := v.(entities.UserRole)
	return role, ok
}

// CurrentUser returns the identity attached by AuthMiddleware. Handlers and
// role checks authorize against it.
func CurrentUser(c *gin.Context) (entities.AuthenticatedUser, bool) {
	id, ok := GetUserID(c)
	if !ok {
		return entities.AuthenticatedUser{}, false
	}
	role, ok := GetUserRole(c)
	if !ok {
		return entities.AuthenticatedUser{}, false
	}
	return entities.AuthenticatedUser{ID: id, Role: role}, true
}

// RequireRole creates a middleware that requires one of roles
func RequireRole(roles ...entities.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := CurrentUser(c)
		if !exists {
			response.Error(c, domainerrors.Unauthorized("Unauthorized"))
			c.Abort()
			return
		}

		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}

		response.Error(c, domainerrors.Forbidden("Insufficient permissions"))
		c.Abort()
	}
}

// RequireAdmin creates a middleware that requires admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(entities.UserRoleAdmin)
}
