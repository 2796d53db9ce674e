package controller

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/vibast-solutions/ms-go-tasks/app/dto"
	httpdto "github.com/vibast-solutions/ms-go-tasks/app/dto/http"
	"github.com/vibast-solutions/ms-go-tasks/app/middleware"
	"github.com/vibast-solutions/ms-go-tasks/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type AuthController struct {
	authService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

func (c *AuthController) Register(ctx echo.Context) error {
	var req httpdto.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind register request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "email and password are required"})
	}

	logrus.WithField("email", req.Email).Info("Register request received")
	result, err := c.authService.Register(ctx.Request().Context(), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		return writeAuthError(ctx, err, req.Email, "Register")
	}

	logrus.WithFields(logrus.Fields{
		"user_id": result.User.ID,
		"email":   result.User.Email,
	}).Info("User registered")

	return ctx.JSON(http.StatusCreated, authResponse(result))
}

func (c *AuthController) Login(ctx echo.Context) error {
	var req httpdto.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind login request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "email and password are required"})
	}

	logrus.WithField("email", req.Email).Info("Login request received")
	result, err := c.authService.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		return writeAuthError(ctx, err, req.Email, "Login")
	}

	logrus.WithField("email", req.Email).Info("Login successful")
	return ctx.JSON(http.StatusOK, authResponse(result))
}

func (c *AuthController) Logout(ctx echo.Context) error {
	principal := middleware.PrincipalFromContext(ctx)
	if principal == nil {
		logrus.Warn("Logout without an authenticated principal")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	logrus.WithField("user_id", principal.ID).Info("Logout request received")
	if err := c.authService.Logout(ctx.Request().Context(), middleware.RawTokenFromContext(ctx)); err != nil {
		logrus.WithError(err).WithField("user_id", principal.ID).Error("Logout failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("user_id", principal.ID).Info("Logout successful")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "logged out successfully"})
}

func (c *AuthController) LogoutAll(ctx echo.Context) error {
	principal := middleware.PrincipalFromContext(ctx)
	if principal == nil {
		logrus.Warn("Logout-all without an authenticated principal")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	logrus.WithField("user_id", principal.ID).Info("Logout-all request received")
	if err := c.authService.LogoutAll(ctx.Request().Context(), principal.ID); err != nil {
		logrus.WithError(err).WithField("user_id", principal.ID).Error("Logout-all failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "logged out everywhere"})
}

func (c *AuthController) RefreshToken(ctx echo.Context) error {
	var req httpdto.RefreshTokenRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind refresh token request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "refresh_token is required"})
	}

	logrus.Info("Refresh token request received")
	accessToken, err := c.authService.Refresh(ctx.Request().Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			logrus.Warn("Refresh token failed: invalid or expired token")
			return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "invalid or expired refresh token"})
		}
		if errors.Is(err, service.ErrServiceUnavailable) {
			logrus.WithError(err).Error("Refresh token failed: backing store unavailable")
			return ctx.JSON(http.StatusServiceUnavailable, httpdto.ErrorResponse{Error: "service unavailable"})
		}
		logrus.WithError(err).Error("Refresh token failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.Info("Refresh token successful")
	return ctx.JSON(http.StatusOK, httpdto.RefreshTokenResponse{AccessToken: accessToken})
}

func (c *AuthController) ChangePassword(ctx echo.Context) error {
	var req httpdto.ChangePasswordRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind change password request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.OldPassword) == "" || strings.TrimSpace(req.NewPassword) == "" {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "old_password and new_password are required"})
	}

	principal := middleware.PrincipalFromContext(ctx)
	if principal == nil {
		logrus.Warn("Change password without an authenticated principal")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	logrus.WithField("user_id", principal.ID).Info("Change password request received")
	err := c.authService.ChangePassword(ctx.Request().Context(), principal.ID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "user not found"})
		case errors.Is(err, service.ErrInvalidCredentials):
			logrus.WithField("user_id", principal.ID).Warn("Change password failed: old password mismatch")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "old password is incorrect"})
		case errors.Is(err, service.ErrInvalidInput):
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
		case errors.Is(err, service.ErrServiceUnavailable):
			logrus.WithError(err).WithField("user_id", principal.ID).Error("Change password failed: backing store unavailable")
			return ctx.JSON(http.StatusServiceUnavailable, httpdto.ErrorResponse{Error: "service unavailable"})
		default:
			logrus.WithError(err).WithField("user_id", principal.ID).Error("Change password failed")
			return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
		}
	}

	logrus.WithField("user_id", principal.ID).Info("Password changed")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "password changed successfully"})
}

// DeactivateUser is admin-only (RequireRole gates the route).
func (c *AuthController) DeactivateUser(ctx echo.Context) error {
	userID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid user id"})
	}

	logrus.WithField("user_id", userID).Info("Deactivate user request received")
	if err := c.authService.DeactivateUser(ctx.Request().Context(), userID); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "user not found"})
		case errors.Is(err, service.ErrServiceUnavailable):
			logrus.WithError(err).WithField("user_id", userID).Error("Deactivate user failed: backing store unavailable")
			return ctx.JSON(http.StatusServiceUnavailable, httpdto.ErrorResponse{Error: "service unavailable"})
		default:
			logrus.WithError(err).WithField("user_id", userID).Error("Deactivate user failed")
			return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
		}
	}

	logrus.WithField("user_id", userID).Info("User deactivated")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "user deactivated"})
}

// ActivateUser reverses a deactivation; admin-only like DeactivateUser.
func (c *AuthController) ActivateUser(ctx echo.Context) error {
	userID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid user id"})
	}

	logrus.WithField("user_id", userID).Info("Activate user request received")
	if err := c.authService.ActivateUser(ctx.Request().Context(), userID); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "user not found"})
		case errors.Is(err, service.ErrServiceUnavailable):
			logrus.WithError(err).WithField("user_id", userID).Error("Activate user failed: backing store unavailable")
			return ctx.JSON(http.StatusServiceUnavailable, httpdto.ErrorResponse{Error: "service unavailable"})
		default:
			logrus.WithError(err).WithField("user_id", userID).Error("Activate user failed")
			return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
		}
	}

	logrus.WithField("user_id", userID).Info("User activated")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "user activated"})
}

func writeAuthError(ctx echo.Context, err error, email, operation string) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		logrus.WithField("email", email).Debugf("%s validation failed", operation)
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrUserExists):
		logrus.WithField("email", email).Warnf("%s failed: user already exists", operation)
		return ctx.JSON(http.StatusConflict, httpdto.ErrorResponse{Error: "user already exists"})
	case errors.Is(err, service.ErrInvalidCredentials):
		logrus.WithField("email", email).Warnf("%s failed: invalid credentials", operation)
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "invalid credentials"})
	case errors.Is(err, service.ErrServiceUnavailable):
		logrus.WithError(err).WithField("email", email).Errorf("%s failed: backing store unavailable", operation)
		return ctx.JSON(http.StatusServiceUnavailable, httpdto.ErrorResponse{Error: "service unavailable"})
	default:
		logrus.WithError(err).WithField("email", email).Errorf("%s failed", operation)
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}
}

func authResponse(result *dto.AuthResult) httpdto.AuthResponse {
	return httpdto.AuthResponse{
		Success:      result.Success,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		User: httpdto.AuthUserResponse{
			ID:    result.User.ID,
			Email: result.User.Email,
		},
	}
}
