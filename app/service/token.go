package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vibast-solutions/ms-go-tasks/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const tokenTypeRefresh = "refresh"

type Claims struct {
	UserID    uint64 `json:"user_id"`
	Email     string `json:"email"`
	TokenType string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// TokenService mints and validates HMAC-SHA256 signed tokens. It is an
// explicitly constructed instance holding its secret and TTLs; nothing about
// it is global state.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.JWTAccessTokenTTL,
		refreshTTL: config.JWTRefreshTokenTTL,
	}
}

// IssueAccessToken signs an access token for the user. A zero ttl selects
// the configured default.
func (s *TokenService) IssueAccessToken(userID uint64, email string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = s.accessTTL
	}
	return s.sign(userID, email, "", ttl)
}

// IssueRefreshToken signs a refresh token carrying the type marker that keeps
// it from ever validating as an access token.
func (s *TokenService) IssueRefreshToken(userID uint64, email string) (string, error) {
	return s.sign(userID, email, tokenTypeRefresh, s.refreshTTL)
}

// VerifyAccess validates an access token. A refresh token presented here
// fails with the same uniform error as a forged or expired one.
func (s *TokenService) VerifyAccess(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType == tokenTypeRefresh {
		logrus.Debug("Access verification rejected a refresh token")
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token; an access token fails here.
func (s *TokenService) VerifyRefresh(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeRefresh {
		logrus.Debug("Refresh verification rejected a non-refresh token")
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Refresh verifies the refresh token and mints a fresh access token for the
// same subject. The refresh token itself is not rotated.
func (s *TokenService) Refresh(refreshToken string) (string, error) {
	claims, err := s.VerifyRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	return s.IssueAccessToken(claims.UserID, claims.Email, 0)
}

func (s *TokenService) sign(userID uint64, email, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// parse collapses every failure mode (bad signature, expiry, missing claims)
// into ErrInvalidToken; only debug logs distinguish them.
func (s *TokenService) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		logrus.WithError(err).Debug("Token parse failed")
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Email == "" {
		logrus.Debug("Token missing required claims")
		return nil, ErrInvalidToken
	}

	return claims, nil
}
