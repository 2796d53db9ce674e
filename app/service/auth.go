package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-tasks/app/dto"
	"github.com/vibast-solutions/ms-go-tasks/app/entity"
	"github.com/vibast-solutions/ms-go-tasks/app/repository"
	"github.com/vibast-solutions/ms-go-tasks/config"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// dummyPasswordHash is compared against when the user does not exist, so a
// login with an unknown email costs the same bcrypt work as a wrong password.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type AuthService struct {
	userRepo   *repository.UserRepository
	hasher     *PasswordHasher
	tokens     *TokenService
	revocation *RevocationRegistry
	cfg        *config.Config
}

func NewAuthService(
	userRepo *repository.UserRepository,
	hasher *PasswordHasher,
	tokens *TokenService,
	revocation *RevocationRegistry,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		hasher:     hasher,
		tokens:     tokens,
		revocation: revocation,
		cfg:        cfg,
	}
}

// CanonicalizeEmail lower-cases and trims an email for uniqueness checks. The
// registered casing is kept on the user record for display.
func CanonicalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, email, password, confirmPassword string) (*dto.AuthResult, error) {
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	if err := s.cfg.PasswordPolicy.Validate(password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	if password != confirmPassword {
		return nil, fmt.Errorf("%w: passwords do not match", ErrInvalidInput)
	}

	canonicalEmail := CanonicalizeEmail(email)

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	existing, err := s.userRepo.FindByCanonicalEmail(storeCtx, canonicalEmail)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &entity.User{
		Email:          email,
		CanonicalEmail: canonicalEmail,
		PasswordHash:   hashedPassword,
		Role:           entity.RoleUser,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.userRepo.Create(storeCtx, user); err != nil {
		// The unique index closes the window between the duplicate check
		// above and this insert.
		if err == repository.ErrDuplicateEmail {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID, user.Email, 0)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResult{
		Success:     true,
		AccessToken: accessToken,
		ExpiresIn:   int64(s.cfg.JWTAccessTokenTTL.Seconds()),
		User:        dto.AuthUser{ID: user.ID, Email: user.Email},
	}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*dto.AuthResult, error) {
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	user, err := s.userRepo.FindByCanonicalEmail(storeCtx, CanonicalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	if user == nil {
		// Burn the same bcrypt cost as a real comparison.
		_ = bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte(password))
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	// Inactive accounts fail with the same error as bad credentials; a
	// distinct error would confirm the account exists.
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID, user.Email, 0)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResult{
		Success:      true,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.JWTAccessTokenTTL.Seconds()),
		User:         dto.AuthUser{ID: user.ID, Email: user.Email},
	}, nil
}

// Logout revokes the presented access token for its remaining lifetime.
// Revocation-store failures never fail the logout: they are logged and the
// caller still sees success.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.tokens.VerifyAccess(rawToken)
	if err != nil {
		// A token that no longer verifies is already unusable; blacklisting
		// it would pin a full-TTL entry on a dead token.
		return nil
	}

	ttl := s.cfg.JWTAccessTokenTTL
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.revocation.Revoke(storeCtx, rawToken, ttl); err != nil {
		logrus.WithError(err).Warn("Failed to record token revocation; logout treated as best-effort")
	}
	return nil
}

// LogoutAll invalidates every outstanding token for the user until the
// longest-lived of them would have expired anyway.
func (s *AuthService) LogoutAll(ctx context.Context, userID uint64) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.revocation.RevokeAllForUser(storeCtx, userID, config.JWTRefreshTokenTTL); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to record user-wide revocation; logout treated as best-effort")
	}
	return nil
}

// Refresh mints a new access token from a valid, unrevoked refresh token.
// The refresh token is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", ErrInvalidToken
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	revoked, err := s.revocation.IsRevoked(storeCtx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	if revoked {
		return "", ErrInvalidToken
	}

	loggedOut, err := s.revocation.IsUserLoggedOut(storeCtx, claims.UserID, issuedAt(claims))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	if loggedOut {
		return "", ErrInvalidToken
	}

	return s.tokens.IssueAccessToken(claims.UserID, claims.Email, 0)
}

// Authenticate is the access-guard body: token signature and expiry, then
// revocation, then the live user record. Every failure collapses to
// ErrUnauthenticated so callers cannot distinguish why a token was rejected.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (*Principal, error) {
	claims, err := s.tokens.VerifyAccess(rawToken)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	revoked, err := s.revocation.IsRevoked(storeCtx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	if revoked {
		return nil, ErrUnauthenticated
	}

	loggedOut, err := s.revocation.IsUserLoggedOut(storeCtx, claims.UserID, issuedAt(claims))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	if loggedOut {
		return nil, ErrUnauthenticated
	}

	user, err := s.userRepo.FindByID(storeCtx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	if user == nil || !user.IsActive {
		return nil, ErrUnauthenticated
	}

	return &Principal{ID: user.ID, Email: user.Email, Role: user.Role}, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	user, err := s.userRepo.FindByID(storeCtx, userID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	if user == nil {
		return ErrUserNotFound
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := s.cfg.PasswordPolicy.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	hashedPassword, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(storeCtx, userID, hashedPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}

	// Outstanding tokens predate the new password; invalidate them all.
	return s.LogoutAll(ctx, userID)
}

// DeactivateUser soft-deletes an account: is_active flips false and every
// outstanding token is revoked. The user's tasks are not purged.
func (s *AuthService) DeactivateUser(ctx context.Context, userID uint64) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	rows, err := s.userRepo.SetActive(storeCtx, userID, false)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return s.LogoutAll(ctx, userID)
}

// ActivateUser reinstates a deactivated account. Tokens revoked while the
// account was inactive stay revoked; the user logs in again.
func (s *AuthService) ActivateUser(ctx context.Context, userID uint64) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	rows, err := s.userRepo.SetActive(storeCtx, userID, true)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *AuthService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// issuedAt falls back to the epoch so a token without an iat claim always
// falls under an outstanding user-wide revocation.
func issuedAt(claims *Claims) time.Time {
	if claims.IssuedAt == nil {
		return time.Time{}
	}
	return claims.IssuedAt.Time
}
