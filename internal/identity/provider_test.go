package identity

import (
	"context"
	"errors"
	"testing"

	"eslive/internal/models"
	"eslive/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Credential{}))
	t.Cleanup(func() {
		_ = db.Migrator().DropTable(&models.Credential{})
	})

	return NewService(repository.NewCredentialRepository(db), "test-secret")
}

func authCode(t *testing.T, err error) Code {
	t.Helper()
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	return authErr.Code
}

func TestService_SignUpAndSignIn(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	principal, token, err := svc.SignUp(ctx, "fan@example.com", "secret123", "Fan")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, principal.UID)
	assert.Equal(t, "fan@example.com", principal.Email)
	assert.Equal(t, "Fan", principal.DisplayName)

	again, token2, err := svc.SignIn(ctx, "fan@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, token2)
	assert.Equal(t, principal.UID, again.UID)
}

func TestService_SignUp_ErrorCodes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.SignUp(ctx, "not-an-email", "secret123", "Fan")
	assert.Equal(t, CodeInvalidEmail, authCode(t, err))

	_, _, err = svc.SignUp(ctx, "fan@example.com", "short", "Fan")
	assert.Equal(t, CodeWeakPassword, authCode(t, err))

	_, _, err = svc.SignUp(ctx, "fan@example.com", "secret123", "Fan")
	require.NoError(t, err)
	_, _, err = svc.SignUp(ctx, "fan@example.com", "different1", "Other")
	assert.Equal(t, CodeEmailAlreadyInUse, authCode(t, err))
}

func TestService_SignIn_ErrorCodes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.SignIn(ctx, "missing@example.com", "whatever")
	assert.Equal(t, CodeUserNotFound, authCode(t, err))

	_, _, err = svc.SignUp(ctx, "fan@example.com", "secret123", "Fan")
	require.NoError(t, err)

	_, _, err = svc.SignIn(ctx, "fan@example.com", "wrongpass")
	assert.Equal(t, CodeWrongPassword, authCode(t, err))
}

func TestService_SignIn_Disabled(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	principal, _, err := svc.SignUp(ctx, "banned@example.com", "secret123", "Banned")
	require.NoError(t, err)

	cred, err := svc.creds.GetByUID(ctx, principal.UID)
	require.NoError(t, err)
	cred.Disabled = true
	require.NoError(t, svc.creds.Update(ctx, cred))

	_, _, err = svc.SignIn(ctx, "banned@example.com", "secret123")
	assert.Equal(t, CodeUserDisabled, authCode(t, err))
}

func TestService_SendPasswordReset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	err := svc.SendPasswordReset(ctx, "missing@example.com")
	assert.Equal(t, CodeUserNotFound, authCode(t, err))

	_, _, err = svc.SignUp(ctx, "fan@example.com", "secret123", "Fan")
	require.NoError(t, err)
	assert.NoError(t, svc.SendPasswordReset(ctx, "fan@example.com"))
}

func TestService_OnAuthChange(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var events []*models.Principal
	unsubscribe := svc.OnAuthChange(func(p *models.Principal) {
		events = append(events, p)
	})

	principal, _, err := svc.SignUp(ctx, "fan@example.com", "secret123", "Fan")
	require.NoError(t, err)
	require.NoError(t, svc.SignOut(ctx, principal.UID))

	require.Len(t, events, 2)
	assert.NotNil(t, events[0])
	assert.Nil(t, events[1])

	unsubscribe()
	unsubscribe() // idempotent

	_, _, err = svc.SignIn(ctx, "fan@example.com", "secret123")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestService_SignOutScopedToActiveSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var events []*models.Principal
	svc.OnAuthChange(func(p *models.Principal) {
		events = append(events, p)
	})

	principal, _, err := svc.SignUp(ctx, "fan@example.com", "secret123", "Fan")
	require.NoError(t, err)
	require.Len(t, events, 1)

	// Another viewer's sign-out must not clear this session.
	require.NoError(t, svc.SignOut(ctx, "someone-else"))
	require.Len(t, events, 1)
	assert.NotNil(t, events[0])

	require.NoError(t, svc.SignOut(ctx, principal.UID))
	require.Len(t, events, 2)
	assert.Nil(t, events[1])

	// Already signed out; a repeat is a no-op.
	require.NoError(t, svc.SignOut(ctx, principal.UID))
	assert.Len(t, events, 2)
}

func TestAuthError_Messages(t *testing.T) {
	assert.Equal(t, "The password is incorrect.", NewAuthError(CodeWrongPassword, nil).Message())
	assert.Equal(t, "Something went wrong. Please try again.", NewAuthError(CodeUnknown, nil).Message())
	assert.Equal(t, "Something went wrong. Please try again.", NewAuthError(Code("auth/bogus"), nil).Message())
}
