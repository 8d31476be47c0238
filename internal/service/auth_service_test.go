package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lentera-edu/lentera-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
	return NewAuthService(cfg, rdb)
}

func TestPasswordHashing(t *testing.T) {
	s := newTestAuthService(t)

	hash, err := s.HashPassword("rahasia123")
	require.NoError(t, err)
	assert.NoError(t, s.CheckPassword(hash, "rahasia123"))
	assert.ErrorIs(t, s.CheckPassword(hash, "salah"), ErrInvalidCredentials)
}

func TestStudentTokenLifecycle(t *testing.T) {
	s := newTestAuthService(t)
	ctx := context.Background()

	token, err := s.GenerateStudentToken(ctx, 42, 7)
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeStudent, claims.TokenType)
	assert.Equal(t, 42, claims.UserID)
	assert.Equal(t, 7, claims.ClassID)

	require.NoError(t, s.ValidateStudentSession(ctx, 42, claims.ID))
}

func TestSecondLoginRejected(t *testing.T) {
	s := newTestAuthService(t)
	ctx := context.Background()

	_, err := s.GenerateStudentToken(ctx, 42, 7)
	require.NoError(t, err)

	_, err = s.GenerateStudentToken(ctx, 42, 7)
	assert.ErrorIs(t, err, ErrSessionAlreadyActive)

	// Different student is unaffected.
	_, err = s.GenerateStudentToken(ctx, 43, 7)
	assert.NoError(t, err)
}

func TestSessionResetAllowsRelogin(t *testing.T) {
	s := newTestAuthService(t)
	ctx := context.Background()

	oldToken, err := s.GenerateStudentToken(ctx, 42, 7)
	require.NoError(t, err)
	oldClaims, err := s.ValidateToken(oldToken)
	require.NoError(t, err)

	require.NoError(t, s.ResetStudentSession(ctx, 42))

	newToken, err := s.GenerateStudentToken(ctx, 42, 7)
	require.NoError(t, err)
	newClaims, err := s.ValidateToken(newToken)
	require.NoError(t, err)

	// Old token is signed correctly but its session is gone.
	assert.Error(t, s.ValidateStudentSession(ctx, 42, oldClaims.ID))
	assert.NoError(t, s.ValidateStudentSession(ctx, 42, newClaims.ID))
}

func TestValidateToken_WrongSecret(t *testing.T) {
	s := newTestAuthService(t)

	token, err := s.GenerateAdminToken(1)
	require.NoError(t, err)

	other := newTestAuthService(t)
	other.cfg.JWTSecret = "different-secret"
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestAdminToken(t *testing.T) {
	s := newTestAuthService(t)

	token, err := s.GenerateAdminToken(9)
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAdmin, claims.TokenType)
	assert.Equal(t, 9, claims.UserID)
	assert.Zero(t, claims.ClassID)
}
