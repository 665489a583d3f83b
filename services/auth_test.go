package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vidvault/media-service/apperror"
	"github.com/vidvault/media-service/config"
	"github.com/vidvault/media-service/logging"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(t *testing.T, ttl time.Duration) *AuthServiceImpl {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	return NewAuthServiceImpl(&config.AuthConfig{
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
		TokenSecret:       "test-secret",
		TokenTTL:          ttl,
	}, logging.NewNopLogger())
}

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	svc := newAuthService(t, time.Hour)

	token, err := svc.Login(context.Background(), "admin", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	identity, err := svc.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "admin", identity)
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	svc := newAuthService(t, time.Hour)

	_, err := svc.Login(context.Background(), "admin", "wrong")
	require.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = svc.Login(context.Background(), "root", "hunter2")
	require.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestVerify_RejectsGarbageAndExpiredTokens(t *testing.T) {
	svc := newAuthService(t, time.Hour)

	_, err := svc.Verify("not-a-token")
	require.ErrorIs(t, err, apperror.ErrUnauthorized)

	expiring := newAuthService(t, -time.Minute)
	token, err := expiring.Login(context.Background(), "admin", "hunter2")
	require.NoError(t, err)

	_, err = expiring.Verify(token)
	require.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestVerify_RejectsTokenSignedWithOtherSecret(t *testing.T) {
	svc := newAuthService(t, time.Hour)

	other := NewAuthServiceImpl(&config.AuthConfig{
		AdminUsername:     "admin",
		AdminPasswordHash: svc.cfg.AdminPasswordHash,
		TokenSecret:       "different-secret",
		TokenTTL:          time.Hour,
	}, logging.NewNopLogger())

	token, err := other.Login(context.Background(), "admin", "hunter2")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	require.ErrorIs(t, err, apperror.ErrUnauthorized)
}
