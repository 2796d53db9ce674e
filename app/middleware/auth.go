package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	dtohttp "github.com/vibast-solutions/ms-go-tasks/app/dto/http"
	"github.com/vibast-solutions/ms-go-tasks/app/entity"
	"github.com/vibast-solutions/ms-go-tasks/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Context keys for values stashed by RequireAuth.
const (
	ContextKeyPrincipal = "principal"
	ContextKeyRawToken  = "raw_token"
)

type authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*service.Principal, error)
}

type AuthMiddleware struct {
	authService authenticator
}

func NewAuthMiddleware(authService authenticator) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// RequireAuth resolves the bearer token into a principal before the handler
// runs. On any failure no partial principal reaches the handler.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			logrus.Debug("Missing authorization header")
			return c.JSON(http.StatusUnauthorized, dtohttp.ErrorResponse{Error: "missing authorization header"})
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			logrus.Debug("Invalid authorization header format")
			return c.JSON(http.StatusUnauthorized, dtohttp.ErrorResponse{Error: "invalid authorization header format"})
		}

		rawToken := parts[1]
		principal, err := m.authService.Authenticate(c.Request().Context(), rawToken)
		if err != nil {
			if errors.Is(err, service.ErrServiceUnavailable) {
				logrus.WithError(err).Error("Authentication backing store unavailable")
				return c.JSON(http.StatusServiceUnavailable, dtohttp.ErrorResponse{Error: "service unavailable"})
			}
			logrus.Debug("Token rejected")
			return c.JSON(http.StatusUnauthorized, dtohttp.ErrorResponse{Error: "invalid or expired token"})
		}

		c.Set(ContextKeyPrincipal, principal)
		c.Set(ContextKeyRawToken, rawToken)

		return next(c)
	}
}

// RequireRole gates a route on a role from the closed role set. It must run
// after RequireAuth.
func (m *AuthMiddleware) RequireRole(role entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal := PrincipalFromContext(c)
			if principal == nil {
				logrus.Warn("Role check without an authenticated principal")
				return c.JSON(http.StatusUnauthorized, dtohttp.ErrorResponse{Error: "unauthorized"})
			}
			if !service.HasRole(principal, role) {
				logrus.WithField("user_id", principal.ID).Debug("Role check failed")
				return c.JSON(http.StatusForbidden, dtohttp.ErrorResponse{Error: "insufficient privileges"})
			}
			return next(c)
		}
	}
}

// PrincipalFromContext returns the principal stashed by RequireAuth, or nil.
func PrincipalFromContext(c echo.Context) *service.Principal {
	principal, _ := c.Get(ContextKeyPrincipal).(*service.Principal)
	return principal
}

// RawTokenFromContext returns the bearer token stashed by RequireAuth.
func RawTokenFromContext(c echo.Context) string {
	token, _ := c.Get(ContextKeyRawToken).(string)
	return token
}
