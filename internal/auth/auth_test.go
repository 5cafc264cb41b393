package auth

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/ksred/auction-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.User{}))
	return NewService(db, "test-secret")
}

func TestRegisterAndTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.Register(RegisterRequest{
		Email:    "alice@example.com",
		FullName: "Alice Archer",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(user.UserID, "USR_"))
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	token, err := svc.GenerateToken(Credentials{
		Email:    "alice@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, user.UserID, claims.UserID)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register(RegisterRequest{Email: "alice@example.com", FullName: "Alice", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Register(RegisterRequest{Email: "alice@example.com", FullName: "Other", Password: "password2"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestGenerateTokenRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register(RegisterRequest{Email: "alice@example.com", FullName: "Alice", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.GenerateToken(Credentials{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.GenerateToken(Credentials{Email: "nobody@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := newTestService(t)
	other := newTestService(t)

	_, err := svc.Register(RegisterRequest{Email: "alice@example.com", FullName: "Alice", Password: "password1"})
	require.NoError(t, err)
	token, err := svc.GenerateToken(Credentials{Email: "alice@example.com", Password: "password1"})
	require.NoError(t, err)

	// Same secret string but a different service instance still validates.
	_, err = other.ValidateToken(token.Token)
	assert.NoError(t, err)

	wrong := NewService(nil, "other-secret")
	_, err = wrong.ValidateToken(token.Token)
	assert.Error(t, err)
}
