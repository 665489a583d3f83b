package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vidvault/media-service/apperror"
	"github.com/vidvault/media-service/config"
	logger "github.com/vidvault/media-service/logging"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Login(ctx context.Context, username, password string) (string, error)
	Verify(tokenString string) (string, error)
}

type AuthServiceImpl struct {
	cfg *config.AuthConfig

	logger logger.Logger
}

func NewAuthServiceImpl(cfg *config.AuthConfig, l logger.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		cfg:    cfg,
		logger: l,
	}
}

// Login checks the configured admin credentials and issues a bearer token.
// Wrong username and wrong password are indistinguishable to the caller.
func (svc *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, error) {
	if username != svc.cfg.AdminUsername {
		return "", apperror.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(svc.cfg.AdminPasswordHash), []byte(password)); err != nil {
		svc.logger.Warn("admin login rejected", "username", username)
		return "", apperror.ErrUnauthorized
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(svc.cfg.TokenTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(svc.cfg.TokenSecret))
	if err != nil {
		svc.logger.Error("failed to sign token", "error", err)
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	svc.logger.Info("admin logged in", "username", username)
	return token, nil
}

// Verify parses the bearer token and returns the authenticated identity.
// Missing, malformed, or expired tokens all map to ErrUnauthorized.
func (svc *AuthServiceImpl) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(svc.cfg.TokenSecret), nil
		},
	)
	if err != nil || !token.Valid {
		return "", apperror.ErrUnauthorized
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", apperror.ErrUnauthorized
	}

	return claims.Subject, nil
}
