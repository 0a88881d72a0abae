package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/utils"
)

func TestAuthService_Register_FirstAccountBecomesAdmin(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	svc := env.authService()

	// Act
	first, err := svc.Register("founder", "Password123")
	require.NoError(t, err, "First registration should succeed")

	second, err := svc.Register("member", "Password123")
	require.NoError(t, err, "Second registration should succeed")

	// Assert
	assert.Equal(t, models.RoleAdmin, first.Role, "First account should be promoted to admin")
	assert.Equal(t, models.RoleUser, second.Role, "Later accounts should be regular users")
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	svc := env.authService()

	_, err := svc.Register("duplicate", "Password123")
	require.NoError(t, err)

	// Act
	user, err := svc.Register("duplicate", "OtherPassword456")

	// Assert
	assert.ErrorIs(t, err, ErrUsernameAlreadyExists)
	assert.Nil(t, user)
}

func TestAuthService_Register_StoresHashNotPassword(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	svc := env.authService()

	// Act
	user, err := svc.Register("hashcheck", "Password123")
	require.NoError(t, err)

	// Assert
	stored, err := env.userRepo.GetUserByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, "Password123", stored.PasswordHash, "Plaintext password must never be stored")
	assert.Contains(t, stored.PasswordHash, "$argon2id$")
	assert.Equal(t, models.DefaultProfilePicture, stored.ProfilePicture)
}

func TestAuthService_Register_InputValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService()

	testCases := []struct {
		name     string
		username string
		password string
	}{
		{name: "username_too_short", username: "ab", password: "Password123"},
		{name: "username_too_long", username: string(make([]byte, 51)), password: "Password123"},
		{name: "password_too_short", username: "validname", password: "short"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			user, err := svc.Register(tc.username, tc.password)
			assert.Error(t, err)
			assert.Nil(t, user)
		})
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	svc := env.authService()

	registered, err := svc.Register("logintest", "Password123")
	require.NoError(t, err)

	// Act
	user, token, err := svc.Login("logintest", "Password123", false)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, token)

	claims, err := utils.ValidateToken(token, "test-secret")
	require.NoError(t, err, "Issued token should validate against the same secret")
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "logintest", claims.Username)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	svc := env.authService()

	_, err := svc.Register("victim", "Password123")
	require.NoError(t, err)

	// Act
	user, token, err := svc.Login("victim", "WrongPassword", false)

	// Assert
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, user)
	assert.Empty(t, token)
}

func TestAuthService_Login_UnknownUsername(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	svc := env.authService()

	// Act
	user, token, err := svc.Login("nobody", "Password123", false)

	// Assert
	// Same error as a wrong password so the response doesn't reveal
	// which usernames exist.
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, user)
	assert.Empty(t, token)
}

func TestAuthService_Login_IncrementsLoginCount(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	svc := env.authService()

	registered, err := svc.Register("counter", "Password123")
	require.NoError(t, err)

	// Act
	for i := 0; i < 3; i++ {
		_, _, err := svc.Login("counter", "Password123", false)
		require.NoError(t, err)
	}

	// Assert
	stored, err := env.userRepo.GetUserByID(registered.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 3, stored.LoginCount)
}

func TestAuthService_Login_RememberReturnsLongLivedToken(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	svc := env.authService()

	_, err := svc.Register("rememberme", "Password123")
	require.NoError(t, err)

	// Act
	_, shortToken, err := svc.Login("rememberme", "Password123", false)
	require.NoError(t, err)
	_, longToken, err := svc.Login("rememberme", "Password123", true)
	require.NoError(t, err)

	// Assert
	shortClaims, err := utils.ValidateToken(shortToken, "test-secret")
	require.NoError(t, err)
	longClaims, err := utils.ValidateToken(longToken, "test-secret")
	require.NoError(t, err)

	assert.True(t, longClaims.ExpiresAt.After(shortClaims.ExpiresAt.Time),
		"Remember-me token should outlive the plain session token")
}

func TestAuthService_ChangePassword(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	svc := env.authService()

	user, err := svc.Register("changer", "OldPassword123")
	require.NoError(t, err)

	// Act
	err = svc.ChangePassword(user.ID, "OldPassword123", "NewPassword456")

	// Assert
	require.NoError(t, err)

	_, _, err = svc.Login("changer", "OldPassword123", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "Old password should stop working")

	_, _, err = svc.Login("changer", "NewPassword456", false)
	assert.NoError(t, err, "New password should work")
}

func TestAuthService_ChangePassword_WrongCurrent(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	svc := env.authService()

	user, err := svc.Register("stubborn", "Password123")
	require.NoError(t, err)

	// Act
	err = svc.ChangePassword(user.ID, "NotMyPassword", "NewPassword456")

	// Assert
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, _, err = svc.Login("stubborn", "Password123", false)
	assert.NoError(t, err, "Password should be unchanged after a failed attempt")
}

func TestAuthService_GetProfile(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	svc := env.authService()

	registered, err := svc.Register("profiled", "Password123")
	require.NoError(t, err)

	// Act
	user, badges, err := svc.GetProfile(registered.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "profiled", user.Username)
	assert.Equal(t, []string{"Admin"}, badges, "First account is the admin, so it carries the Admin badge")
}

func TestAuthService_UpdateProfilePicture(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	svc := env.authService()

	user, err := svc.Register("pictured", "Password123")
	require.NoError(t, err)

	header := makeFileHeader(t, "me.png", []byte("png bytes"))

	// Act
	storedName, err := svc.UpdateProfilePicture(context.Background(), user.ID, header)

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, storedName)

	updated, err := env.userRepo.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, storedName, updated.ProfilePicture)
}

func TestAuthService_UpdateProfilePicture_DisallowedExtension(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	svc := env.authService()

	user, err := svc.Register("sneaky", "Password123")
	require.NoError(t, err)

	header := makeFileHeader(t, "avatar.exe", []byte("MZ"))

	// Act
	_, err = svc.UpdateProfilePicture(context.Background(), user.ID, header)

	// Assert
	assert.ErrorIs(t, err, ErrDisallowedExtension)
}

func TestAuthService_UpdateProfilePicture_TooLarge(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	svc := env.authServiceWithLimit(64)

	user, err := svc.Register("oversized", "Password123")
	require.NoError(t, err)

	header := makeFileHeader(t, "huge.png", bytes.Repeat([]byte("a"), 65))

	// Act
	_, err = svc.UpdateProfilePicture(context.Background(), user.ID, header)

	// Assert
	assert.ErrorIs(t, err, ErrFileTooLarge)

	updated, repoErr := env.userRepo.GetUserByID(user.ID)
	require.NoError(t, repoErr)
	assert.Equal(t, models.DefaultProfilePicture, updated.ProfilePicture,
		"Avatar reference should be untouched after a rejected upload")
}
