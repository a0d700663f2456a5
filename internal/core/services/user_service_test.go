package services

import (
	"context"
	"testing"

	"libristack/internal/core/domain"
	"libristack/internal/pkg/invitecode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUserService_ListUsers(t *testing.T) {
	fx := newFixture(t)
	svc := NewUserService(fx.store, testConfig(), zap.NewNop())
	ctx := context.Background()

	admin := actorOf(fx.user("admin@example.com", domain.RoleAdmin))
	reader := actorOf(fx.user("reader@example.com", domain.RoleUser))
	fx.user("other@example.com", domain.RoleUser)

	_, err := svc.ListUsers(ctx, reader, &ListUsersInput{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	out, err := svc.ListUsers(ctx, admin, &ListUsersInput{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Total)
	assert.Len(t, out.Users, 2)

	out, err = svc.ListUsers(ctx, admin, &ListUsersInput{Search: "other"})
	require.NoError(t, err)
	require.Len(t, out.Users, 1)
	assert.Equal(t, "other@example.com", out.Users[0].Email)
}

func TestUserService_Promote(t *testing.T) {
	fx := newFixture(t)
	svc := NewUserService(fx.store, testConfig(), zap.NewNop())
	ctx := context.Background()

	admin := actorOf(fx.user("admin@example.com", domain.RoleAdmin))
	reader := fx.user("reader@example.com", domain.RoleUser)

	_, err := svc.Promote(ctx, actorOf(reader), admin.UserID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	promoted, err := svc.Promote(ctx, admin, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", promoted.Role)
	assert.Equal(t, "admin@example.com", promoted.InvitedBy)
	assert.True(t, invitecode.Valid(promoted.OwnInviteCode))

	_, err = svc.Promote(ctx, admin, reader.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyAdmin)

	_, err = svc.Promote(ctx, admin, 9999)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserService_Delete(t *testing.T) {
	fx := newFixture(t)
	svc := NewUserService(fx.store, testConfig(), zap.NewNop())
	lending := NewLendingService(fx.store, zap.NewNop())
	ctx := context.Background()

	admin := actorOf(fx.user("admin@example.com", domain.RoleAdmin))
	reader := fx.user("reader@example.com", domain.RoleUser)
	book := fx.book("Dune", 1)

	assert.ErrorIs(t, svc.Delete(ctx, admin, admin.UserID), domain.ErrCannotDeleteSelf)
	assert.ErrorIs(t, svc.Delete(ctx, actorOf(reader), admin.UserID), domain.ErrForbidden)

	record, err := lending.Borrow(ctx, actorOf(reader), book.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, admin, reader.ID), domain.ErrUserHasActiveLoans)

	_, err = lending.Return(ctx, actorOf(reader), record.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, reader.ID))
	assert.ErrorIs(t, svc.Delete(ctx, admin, reader.ID), domain.ErrUserNotFound)

	// the ledger keeps the deleted borrower
	out, err := lending.Overview(ctx, admin, &OverviewInput{})
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	require.NotNil(t, out.Records[0].User)
	assert.Equal(t, "reader@example.com", out.Records[0].User.Email)
}
