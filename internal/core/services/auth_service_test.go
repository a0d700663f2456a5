package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"libristack/internal/adapters/persistence/models"
	"libristack/internal/core/domain"
	"libristack/internal/pkg/invitecode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupAuth(t *testing.T) (*AuthService, *fakeNotifier, *testStoreFixture) {
	t.Helper()
	fx := newFixture(t)
	notifier := newFakeNotifier()
	return NewAuthService(fx.store, notifier, testConfig(), zap.NewNop()), notifier, fx
}

func register(t *testing.T, svc *AuthService, email, role, code string) (*models.UserResponse, error) {
	t.Helper()
	return svc.Register(context.Background(), &RegisterInput{
		FullName:  "Reader " + email,
		Email:     email,
		Password:  "password123",
		Role:      role,
		AdminCode: code,
	})
}

// tokenFromLink extracts the token from the verification link
func tokenFromLink(link string) string {
	return link[strings.LastIndex(link, "/")+1:]
}

func TestAuthService_Register(t *testing.T) {
	svc, notifier, _ := setupAuth(t)

	user, err := register(t, svc, "  Alice@Example.com ", "", "")

	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "user", user.Role)
	assert.False(t, user.IsVerified)
	assert.Empty(t, user.OwnInviteCode)
	assert.True(t, strings.HasPrefix(notifier.link("alice@example.com"), "http://localhost/verify/"))
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc, _, _ := setupAuth(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input RegisterInput
		want  error
	}{
		{"missing name", RegisterInput{Email: "a@example.com", Password: "password123"}, domain.ErrInvalidInput},
		{"bad email", RegisterInput{FullName: "A", Email: "not-an-email", Password: "password123"}, domain.ErrInvalidInput},
		{"short password", RegisterInput{FullName: "A", Email: "a@example.com", Password: "short"}, domain.ErrInvalidInput},
		{"unknown role", RegisterInput{FullName: "A", Email: "a@example.com", Password: "password123", Role: "librarian"}, domain.ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			_, err := svc.Register(ctx, &input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthService_Register_EmailTaken(t *testing.T) {
	svc, _, _ := setupAuth(t)

	_, err := register(t, svc, "alice@example.com", "", "")
	require.NoError(t, err)

	_, err = register(t, svc, "ALICE@example.com", "", "")

	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestAuthService_Register_SameEmailConcurrently(t *testing.T) {
	svc, _, fx := setupAuth(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		taken     atomic.Int32
		others    = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := register(t, svc, "race@example.com", "", "")
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrEmailTaken):
				taken.Add(1)
			default:
				others <- err
			}
		}()
	}
	wg.Wait()
	close(others)

	for err := range others {
		t.Errorf("unexpected error: %v", err)
	}
	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), taken.Load())

	var count int64
	require.NoError(t, fx.store.DB().Model(&models.User{}).Where("email = ?", "race@example.com").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAuthService_Register_AdminBootstrap(t *testing.T) {
	svc, _, _ := setupAuth(t)

	// no admin yet: only the bootstrap code works
	_, err := register(t, svc, "first@example.com", "admin", "WRONG")
	assert.ErrorIs(t, err, domain.ErrBootstrapRequired)

	first, err := register(t, svc, "first@example.com", "admin", "ROOT1")
	require.NoError(t, err)
	assert.Equal(t, "admin", first.Role)
	assert.Equal(t, domain.SystemInviter, first.InvitedBy)
	assert.True(t, invitecode.Valid(first.OwnInviteCode))
	assert.NotEqual(t, "ROOT1", first.OwnInviteCode)

	// the bootstrap code is spent once an admin exists
	_, err = register(t, svc, "second@example.com", "admin", "ROOT1")
	assert.ErrorIs(t, err, domain.ErrInvalidInviteCode)

	_, err = register(t, svc, "second@example.com", "admin", "ZZZZZ")
	assert.ErrorIs(t, err, domain.ErrInvalidInviteCode)

	// malformed codes are rejected by shape
	for _, code := range []string{"", "AB-1!", "TOOLONG1", "ÄBCDE"} {
		_, err = register(t, svc, "second@example.com", "admin", code)
		assert.ErrorIs(t, err, domain.ErrInvalidInviteCode, "code %q", code)
	}

	second, err := register(t, svc, "second@example.com", "admin", strings.ToLower(first.OwnInviteCode))
	require.NoError(t, err)
	assert.Equal(t, "first@example.com", second.InvitedBy)
	assert.NotEqual(t, first.OwnInviteCode, second.OwnInviteCode)

	// plain users never need a code
	reader, err := register(t, svc, "reader@example.com", "user", "")
	require.NoError(t, err)
	assert.Empty(t, reader.InvitedBy)
}

func TestAllocateInviteCode(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	taken := "AAAAA"
	fx.user("admin@example.com", domain.RoleAdmin)
	require.NoError(t, fx.store.DB().Model(&models.User{}).
		Where("email = ?", "admin@example.com").
		Update("own_invite_code", taken).Error)

	t.Run("skips taken and reserved codes", func(t *testing.T) {
		codes := []string{taken, "ROOT1", "BBBBB"}
		gen := func() (string, error) {
			c := codes[0]
			codes = codes[1:]
			return c, nil
		}

		code, err := allocateInviteCode(ctx, fx.store.Users, gen, "ROOT1")

		require.NoError(t, err)
		assert.Equal(t, "BBBBB", code)
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		gen := func() (string, error) { return taken, nil }

		_, err := allocateInviteCode(ctx, fx.store.Users, gen, "ROOT1")

		assert.ErrorIs(t, err, domain.ErrInviteCodeExhausted)
	})

	t.Run("generator failure", func(t *testing.T) {
		boom := errors.New("entropy exhausted")
		gen := func() (string, error) { return "", boom }

		_, err := allocateInviteCode(ctx, fx.store.Users, gen, "ROOT1")

		assert.ErrorIs(t, err, boom)
	})
}

func TestAuthService_VerifyAndLogin(t *testing.T) {
	svc, notifier, _ := setupAuth(t)
	ctx := context.Background()

	_, err := register(t, svc, "alice@example.com", "", "")
	require.NoError(t, err)

	_, err = svc.Login(ctx, &LoginInput{Email: "alice@example.com", Password: "password123"})
	assert.ErrorIs(t, err, domain.ErrEmailNotVerified)

	_, err = svc.VerifyEmail(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	token := tokenFromLink(notifier.link("alice@example.com"))
	verified, err := svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	// verifying again is harmless
	again, err := svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, again.IsVerified)

	_, err = svc.Login(ctx, &LoginInput{Email: "alice@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, &LoginInput{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	resp, err := svc.Login(ctx, &LoginInput{Email: "Alice@Example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "user", claims.Role)

	me, err := svc.Me(ctx, claims.UserID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestAuthService_RefreshRotation(t *testing.T) {
	svc, notifier, _ := setupAuth(t)
	ctx := context.Background()

	_, err := register(t, svc, "alice@example.com", "", "")
	require.NoError(t, err)
	_, err = svc.VerifyEmail(ctx, tokenFromLink(notifier.link("alice@example.com")))
	require.NoError(t, err)

	login, err := svc.Login(ctx, &LoginInput{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	rotated, err := svc.RefreshToken(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	// the old token was revoked by the rotation
	_, err = svc.RefreshToken(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)

	_, err = svc.RefreshToken(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	require.NoError(t, svc.Logout(ctx, rotated.RefreshToken))
	_, err = svc.RefreshToken(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
}

func TestAuthService_LogoutAll(t *testing.T) {
	svc, notifier, _ := setupAuth(t)
	ctx := context.Background()

	user, err := register(t, svc, "alice@example.com", "", "")
	require.NoError(t, err)
	_, err = svc.VerifyEmail(ctx, tokenFromLink(notifier.link("alice@example.com")))
	require.NoError(t, err)

	first, err := svc.Login(ctx, &LoginInput{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	second, err := svc.Login(ctx, &LoginInput{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, svc.LogoutAll(ctx, user.ID))

	_, err = svc.RefreshToken(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
	_, err = svc.RefreshToken(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
}
