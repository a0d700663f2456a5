package services

import (
	"context"
	"testing"
	"time"

	"libristack/internal/adapters/persistence/models"
	"libristack/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardService_GetAdminDashboard(t *testing.T) {
	fx := newFixture(t)
	svc := NewDashboardService(fx.store)
	svc.SetClock(func() time.Time { return fixedNow })
	ctx := context.Background()

	admin := actorOf(fx.user("admin@example.com", domain.RoleAdmin))
	alice := fx.user("alice@example.com", domain.RoleUser)
	bob := fx.user("bob@example.com", domain.RoleUser)
	carol := fx.user("carol@example.com", domain.RoleUser)
	require.NoError(t, fx.store.DB().Model(carol).Update("is_verified", false).Error)

	dune := fx.book("Dune", 3)
	emma := fx.book("Emma", 2)

	fx.loan(alice, dune, fixedNow.Add(-48*time.Hour), models.StatusBorrowed)
	fx.loan(alice, emma, fixedNow.Add(-72*time.Hour), models.StatusReturned)
	fx.loan(bob, dune, fixedNow.Add(domain.LoanPeriod), models.StatusBorrowed)

	_, err := svc.GetAdminDashboard(ctx, actorOf(alice))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	data, err := svc.GetAdminDashboard(ctx, admin)
	require.NoError(t, err)

	assert.Equal(t, int64(4), data.TotalUsers)
	assert.Equal(t, int64(1), data.TotalAdmins)
	assert.Equal(t, int64(1), data.Unverified)
	assert.Equal(t, int64(2), data.TotalTitles)
	assert.Equal(t, int64(5), data.TotalCopies)
	assert.Equal(t, int64(5), data.AvailableCopies)
	assert.Equal(t, int64(2), data.ActiveLoans)
	assert.Equal(t, int64(1), data.OverdueLoans)
	assert.Equal(t, int64(1), data.LoansThisMonth)
	assert.Equal(t, int64(0), data.ReturnsThisMonth)

	require.Len(t, data.RecentLoans, 3)
	assert.Equal(t, "bob@example.com", data.RecentLoans[0].UserEmail)
	assert.Equal(t, "Dune", data.RecentLoans[0].BookTitle)

	require.Len(t, data.TopBooks, 2)
	assert.Equal(t, dune.ID, data.TopBooks[0].BookID)
	assert.Equal(t, int64(2), data.TopBooks[0].TimesLent)
	assert.Equal(t, int64(2), data.TopBooks[0].OnLoanNow)
	assert.Equal(t, "Emma", data.TopBooks[1].Title)
	assert.Equal(t, int64(0), data.TopBooks[1].OnLoanNow)
}

func TestDashboardService_Empty(t *testing.T) {
	fx := newFixture(t)
	svc := NewDashboardService(fx.store)
	admin := actorOf(fx.user("admin@example.com", domain.RoleAdmin))

	data, err := svc.GetAdminDashboard(context.Background(), admin)

	require.NoError(t, err)
	assert.Zero(t, data.TotalCopies)
	assert.Empty(t, data.RecentLoans)
	assert.NotNil(t, data.TopBooks)
}
