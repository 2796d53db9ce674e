package controller_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-tasks/app/controller"
	httpdto "github.com/vibast-solutions/ms-go-tasks/app/dto/http"
	"github.com/vibast-solutions/ms-go-tasks/app/entity"
	"github.com/vibast-solutions/ms-go-tasks/app/middleware"
	"github.com/vibast-solutions/ms-go-tasks/app/repository"
	"github.com/vibast-solutions/ms-go-tasks/app/service"
	"github.com/vibast-solutions/ms-go-tasks/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	findUserByCanonicalEmailQuery = `(?s)SELECT id, email, canonical_email, password_hash, role, is_active, created_at, updated_at\s+FROM users WHERE canonical_email = \?`
	insertUserQuery               = `(?s)INSERT INTO users \(email, canonical_email, password_hash, role, is_active, created_at, updated_at\)\s+VALUES \(\?, \?, \?, \?, \?, \?, \?\)`
	findTaskByIDQuery             = `(?s)SELECT id, user_id, title, description, due_date, priority, completed, created_at, updated_at\s+FROM tasks WHERE id = \?`
	insertTaskQuery               = `(?s)INSERT INTO tasks \(id, user_id, title, description, due_date, priority, completed, created_at, updated_at\)\s+VALUES \(\?, \?, \?, \?, \?, \?, \?, \?, \?\)`
	deleteTaskQuery               = `(?s)DELETE FROM tasks WHERE id = \?`
)

var userColumns = []string{
	"id",
	"email",
	"canonical_email",
	"password_hash",
	"role",
	"is_active",
	"created_at",
	"updated_at",
}

var taskColumns = []string{
	"id",
	"user_id",
	"title",
	"description",
	"due_date",
	"priority",
	"completed",
	"created_at",
	"updated_at",
}

type testEnv struct {
	auth     *controller.AuthController
	tasks    *controller.TaskController
	tokens   *service.TokenService
	registry *service.RevocationRegistry
	mock     sqlmock.Sqlmock
	cleanup  func()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	cfg := &config.Config{
		JWTSecret:         "test-secret-test-secret-test-secret",
		JWTAccessTokenTTL: 15 * time.Minute,
		StoreTimeout:      5 * time.Second,
		PasswordPolicy: config.PasswordPolicy{
			MinLength:        8,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireNumber:    true,
		},
	}

	tokens := service.NewTokenService(cfg)
	registry := service.NewRevocationRegistry(service.NewMemoryRevocationStore())
	authService := service.NewAuthService(
		repository.NewUserRepository(db),
		service.NewPasswordHasher(),
		tokens,
		registry,
		cfg,
	)
	taskService := service.NewTaskService(repository.NewTaskRepository(db), cfg)

	return &testEnv{
		auth:     controller.NewAuthController(authService),
		tasks:    controller.NewTaskController(taskService),
		tokens:   tokens,
		registry: registry,
		mock:     mock,
		cleanup:  func() { _ = db.Close() },
	}
}

func newJSONContext(t *testing.T, e *echo.Echo, method, path string, body any) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func setPrincipal(ctx echo.Context, id uint64, role entity.Role) {
	ctx.Set(middleware.ContextKeyPrincipal, &service.Principal{ID: id, Email: "user@example.com", Role: role})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpdto.ErrorResponse {
	t.Helper()

	var resp httpdto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestAuthController_Register(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	env.mock.ExpectQuery(findUserByCanonicalEmailQuery).
		WithArgs("new@example.com").
		WillReturnError(sql.ErrNoRows)
	env.mock.ExpectExec(insertUserQuery).
		WithArgs("new@example.com", "new@example.com", sqlmock.AnyArg(), "user", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	e := echo.New()
	ctx, rec := newJSONContext(t, e, http.MethodPost, "/auth/register", httpdto.RegisterRequest{
		Email:           "new@example.com",
		Password:        "Secur3Pass",
		ConfirmPassword: "Secur3Pass",
	})

	if err := env.auth.Register(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp httpdto.AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || resp.AccessToken == "" {
		t.Fatalf("expected access token in response, got %+v", resp)
	}
	if resp.User.ID != 1 {
		t.Fatalf("expected user id 1, got %d", resp.User.ID)
	}

	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuthController_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	e := echo.New()

	t.Run("missing fields", func(t *testing.T) {
		ctx, rec := newJSONContext(t, e, http.MethodPost, "/auth/register", httpdto.RegisterRequest{})
		if err := env.auth.Register(ctx); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("weak password", func(t *testing.T) {
		ctx, rec := newJSONContext(t, e, http.MethodPost, "/auth/register", httpdto.RegisterRequest{
			Email:           "user@example.com",
			Password:        "abcdefg1",
			ConfirmPassword: "abcdefg1",
		})
		if err := env.auth.Register(ctx); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestAuthController_RegisterConflict(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	now := time.Now()
	env.mock.ExpectQuery(findUserByCanonicalEmailQuery).
		WithArgs("taken@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(
			uint64(1), "taken@example.com", "taken@example.com", "hash", "user", true, now, now,
		))

	e := echo.New()
	ctx, rec := newJSONContext(t, e, http.MethodPost, "/auth/register", httpdto.RegisterRequest{
		Email:           "taken@example.com",
		Password:        "Secur3Pass",
		ConfirmPassword: "Secur3Pass",
	})

	if err := env.auth.Register(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}

	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuthController_Login(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	hash, err := bcrypt.GenerateFromPassword([]byte("Secur3Pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	now := time.Now()
	env.mock.ExpectQuery(findUserByCanonicalEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(
			uint64(3), "user@example.com", "user@example.com", string(hash), "user", true, now, now,
		))

	e := echo.New()
	ctx, rec := newJSONContext(t, e, http.MethodPost, "/auth/login", httpdto.LoginRequest{
		Email:    "user@example.com",
		Password: "Secur3Pass",
	})

	if err := env.auth.Login(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp httpdto.AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", resp)
	}

	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuthController_LoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	env.mock.ExpectQuery(findUserByCanonicalEmailQuery).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	e := echo.New()
	ctx, rec := newJSONContext(t, e, http.MethodPost, "/auth/login", httpdto.LoginRequest{
		Email:    "nobody@example.com",
		Password: "Secur3Pass",
	})

	if err := env.auth.Login(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != "invalid credentials" {
		t.Fatalf("unexpected error body %q", resp.Error)
	}

	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuthController_Logout(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	token, err := env.tokens.IssueAccessToken(3, "user@example.com", 0)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	e := echo.New()
	ctx, rec := newJSONContext(t, e, http.MethodPost, "/auth/logout", struct{}{})
	setPrincipal(ctx, 3, entity.RoleUser)
	ctx.Set(middleware.ContextKeyRawToken, token)

	if err := env.auth.Logout(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	revoked, err := env.registry.IsRevoked(ctx.Request().Context(), token)
	if err != nil {
		t.Fatalf("is-revoked failed: %v", err)
	}
	if !revoked {
		t.Fatalf("logout must revoke the presented token")
	}
}

func TestAuthController_RefreshToken(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	refreshToken, err := env.tokens.IssueRefreshToken(3, "user@example.com")
	if err != nil {
		t.Fatalf("issue refresh failed: %v", err)
	}

	e := echo.New()
	ctx, rec := newJSONContext(t, e, http.MethodPost, "/auth/refresh-token", httpdto.RefreshTokenRequest{
		RefreshToken: refreshToken,
	})

	if err := env.auth.RefreshToken(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp httpdto.RefreshTokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, err := env.tokens.VerifyAccess(resp.AccessToken); err != nil {
		t.Fatalf("minted access token must verify: %v", err)
	}
}

func TestAuthController_RefreshTokenRejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	accessToken, err := env.tokens.IssueAccessToken(3, "user@example.com", 0)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	e := echo.New()
	ctx, rec := newJSONContext(t, e, http.MethodPost, "/auth/refresh-token", httpdto.RefreshTokenRequest{
		RefreshToken: accessToken,
	})

	if err := env.auth.RefreshToken(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestAuthController_ActivateUser(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	env.mock.ExpectExec(`(?s)UPDATE users SET is_active = \?, updated_at = \? WHERE id = \?`).
		WithArgs(true, sqlmock.AnyArg(), uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	e := echo.New()
	ctx, rec := newJSONContext(t, e, http.MethodPost, "/users/5/activate", struct{}{})
	ctx.SetParamNames("id")
	ctx.SetParamValues("5")
	setPrincipal(ctx, 1, entity.RoleAdmin)

	if err := env.auth.ActivateUser(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuthController_DeactivateUserInvalidID(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	e := echo.New()
	ctx, rec := newJSONContext(t, e, http.MethodPost, "/users/abc/deactivate", struct{}{})
	ctx.SetParamNames("id")
	ctx.SetParamValues("abc")
	setPrincipal(ctx, 1, entity.RoleAdmin)

	if err := env.auth.DeactivateUser(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}
