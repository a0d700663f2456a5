package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"libristack/internal/adapters/persistence/models"
	"libristack/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupLending(t *testing.T) (*LendingService, *testStoreFixture) {
	t.Helper()
	fx := newFixture(t)
	svc := NewLendingService(fx.store, zap.NewNop())
	svc.SetClock(func() time.Time { return fixedNow })
	return svc, fx
}

func TestLendingService_Borrow(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := fx.user("alice@example.com", domain.RoleUser)
	book := fx.book("Dune", 2)

	record, err := svc.Borrow(ctx, actorOf(alice), book.ID)

	require.NoError(t, err)
	assert.NotZero(t, record.ID)
	assert.Equal(t, models.StatusBorrowed, record.Status)
	assert.True(t, record.BorrowDate.Equal(fixedNow))
	assert.True(t, record.DueDate.Equal(fixedNow.Add(domain.LoanPeriod)))
	assert.False(t, record.Renewed)
	assert.Nil(t, record.ReturnDate)
	require.NotNil(t, record.Book)
	assert.Equal(t, 1, record.Book.AvailableCopies)
	assert.Equal(t, 1, fx.reloadBook(book.ID).AvailableCopies)
}

func TestLendingService_Borrow_LimitReached(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := fx.user("alice@example.com", domain.RoleUser)
	for i := 0; i < domain.MaxActiveLoans; i++ {
		book := fx.book(fmt.Sprintf("Book %d", i), 1)
		_, err := svc.Borrow(ctx, actorOf(alice), book.ID)
		require.NoError(t, err)
	}

	extra := fx.book("One Too Many", 1)
	_, err := svc.Borrow(ctx, actorOf(alice), extra.ID)

	assert.ErrorIs(t, err, domain.ErrBorrowLimitReached)
	assert.Equal(t, 1, fx.reloadBook(extra.ID).AvailableCopies)
}

func TestLendingService_Borrow_AlreadyBorrowed(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := fx.user("alice@example.com", domain.RoleUser)
	book := fx.book("Dune", 3)

	_, err := svc.Borrow(ctx, actorOf(alice), book.ID)
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, actorOf(alice), book.ID)

	assert.ErrorIs(t, err, domain.ErrAlreadyBorrowed)
	assert.Equal(t, 2, fx.reloadBook(book.ID).AvailableCopies)
}

func TestLendingService_Borrow_NoCopies(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := fx.user("alice@example.com", domain.RoleUser)
	bob := fx.user("bob@example.com", domain.RoleUser)
	book := fx.book("Dune", 1)

	_, err := svc.Borrow(ctx, actorOf(alice), book.ID)
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, actorOf(bob), book.ID)

	assert.ErrorIs(t, err, domain.ErrNoCopiesAvailable)
	assert.Equal(t, 0, fx.reloadBook(book.ID).AvailableCopies)
}

func TestLendingService_Borrow_NotFound(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := fx.user("alice@example.com", domain.RoleUser)
	book := fx.book("Dune", 1)

	_, err := svc.Borrow(ctx, actorOf(alice), 9999)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)

	_, err = svc.Borrow(ctx, domain.Actor{UserID: 9999, Role: domain.RoleUser}, book.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestLendingService_Borrow_LastCopyConcurrently(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	book := fx.book("Last Copy", 1)
	const borrowers = 8
	actors := make([]domain.Actor, borrowers)
	for i := range actors {
		actors[i] = actorOf(fx.user(fmt.Sprintf("reader%d@example.com", i), domain.RoleUser))
	}

	var wg sync.WaitGroup
	errs := make([]error, borrowers)
	for i := range actors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Borrow(ctx, actors[i], book.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrNoCopiesAvailable)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, fx.reloadBook(book.ID).AvailableCopies)
}

func TestLendingService_Borrow_LimitConcurrently(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := actorOf(fx.user("alice@example.com", domain.RoleUser))
	for i := 0; i < domain.MaxActiveLoans-1; i++ {
		_, err := svc.Borrow(ctx, alice, fx.book(fmt.Sprintf("Held %d", i), 1).ID)
		require.NoError(t, err)
	}

	books := []*models.Book{fx.book("Dune", 1), fx.book("Emma", 1)}

	var wg sync.WaitGroup
	errs := make([]error, len(books))
	for i := range books {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Borrow(ctx, alice, books[i].ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrBorrowLimitReached)
	}
	assert.Equal(t, 1, succeeded)

	active, err := fx.store.Borrows.CountActiveByUser(ctx, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(domain.MaxActiveLoans), active)

	// exactly one of the two books lost its copy
	assert.Equal(t, 1, fx.reloadBook(books[0].ID).AvailableCopies+fx.reloadBook(books[1].ID).AvailableCopies)
}

func TestLendingService_Return(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := fx.user("alice@example.com", domain.RoleUser)
	bob := fx.user("bob@example.com", domain.RoleUser)
	book := fx.book("Dune", 1)

	record, err := svc.Borrow(ctx, actorOf(alice), book.ID)
	require.NoError(t, err)

	t.Run("other user is rejected", func(t *testing.T) {
		_, err := svc.Return(ctx, actorOf(bob), record.ID)
		assert.ErrorIs(t, err, domain.ErrNotRecordOwner)
		assert.Equal(t, 0, fx.reloadBook(book.ID).AvailableCopies)
	})

	t.Run("owner returns", func(t *testing.T) {
		returned, err := svc.Return(ctx, actorOf(alice), record.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusReturned, returned.Status)
		require.NotNil(t, returned.ReturnDate)
		assert.True(t, returned.ReturnDate.Equal(fixedNow))
		assert.Equal(t, 1, fx.reloadBook(book.ID).AvailableCopies)
	})

	t.Run("second return fails", func(t *testing.T) {
		_, err := svc.Return(ctx, actorOf(alice), record.ID)
		assert.ErrorIs(t, err, domain.ErrAlreadyReturned)
		assert.Equal(t, 1, fx.reloadBook(book.ID).AvailableCopies)
	})

	t.Run("unknown record", func(t *testing.T) {
		_, err := svc.Return(ctx, actorOf(alice), 9999)
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})
}

func TestLendingService_Return_InventoryGuard(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := fx.user("alice@example.com", domain.RoleUser)
	book := fx.book("Dune", 1)

	record, err := svc.Borrow(ctx, actorOf(alice), book.ID)
	require.NoError(t, err)

	// someone restocked the shelf behind the ledger's back
	require.NoError(t, fx.store.DB().Model(&models.Book{}).
		Where("id = ?", book.ID).
		Update("available_copies", 1).Error)

	_, err = svc.Return(ctx, actorOf(alice), record.ID)

	assert.ErrorIs(t, err, domain.ErrInventoryInconsistent)
	stored, err := fx.store.Borrows.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBorrowed, stored.Status)
}

func TestLendingService_AdminReturn(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := fx.user("alice@example.com", domain.RoleUser)
	admin := fx.user("admin@example.com", domain.RoleAdmin)
	book := fx.book("Dune", 1)

	record, err := svc.Borrow(ctx, actorOf(alice), book.ID)
	require.NoError(t, err)

	_, err = svc.AdminReturn(ctx, actorOf(alice), record.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	returned, err := svc.AdminReturn(ctx, actorOf(admin), record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReturned, returned.Status)
	assert.Equal(t, alice.ID, returned.UserID)
	assert.Equal(t, 1, fx.reloadBook(book.ID).AvailableCopies)
}

func TestLendingService_Renew(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := fx.user("alice@example.com", domain.RoleUser)
	admin := fx.user("admin@example.com", domain.RoleAdmin)
	book := fx.book("Dune", 1)

	record, err := svc.Borrow(ctx, actorOf(alice), book.ID)
	require.NoError(t, err)

	_, err = svc.Renew(ctx, actorOf(admin), record.ID)
	assert.ErrorIs(t, err, domain.ErrNotRecordOwner)

	renewed, err := svc.Renew(ctx, actorOf(alice), record.ID)
	require.NoError(t, err)
	assert.True(t, renewed.Renewed)
	assert.True(t, renewed.DueDate.Equal(fixedNow.Add(domain.LoanPeriod+domain.RenewalPeriod)))

	_, err = svc.Renew(ctx, actorOf(alice), record.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyRenewed)

	_, err = svc.Renew(ctx, actorOf(alice), 9999)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestLendingService_Renew_Concurrently(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := actorOf(fx.user("alice@example.com", domain.RoleUser))
	record, err := svc.Borrow(ctx, alice, fx.book("Dune", 1).ID)
	require.NoError(t, err)

	const renewals = 8
	var wg sync.WaitGroup
	errs := make([]error, renewals)
	for i := 0; i < renewals; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Renew(ctx, alice, record.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadyRenewed)
	}
	assert.Equal(t, 1, succeeded)

	got, err := fx.store.Borrows.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, got.Renewed)
	assert.True(t, got.DueDate.Equal(fixedNow.Add(domain.LoanPeriod+domain.RenewalPeriod)), "due %s", got.DueDate)
}

func TestLendingService_Renew_ReturnedLoan(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := fx.user("alice@example.com", domain.RoleUser)
	book := fx.book("Dune", 1)

	record, err := svc.Borrow(ctx, actorOf(alice), book.ID)
	require.NoError(t, err)
	_, err = svc.Return(ctx, actorOf(alice), record.ID)
	require.NoError(t, err)

	_, err = svc.Renew(ctx, actorOf(alice), record.ID)

	assert.ErrorIs(t, err, domain.ErrLoanNotActive)
}

func TestLendingService_StatsAndHistory(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := fx.user("alice@example.com", domain.RoleUser)
	first := fx.book("First", 1)
	second := fx.book("Second", 1)
	third := fx.book("Third", 1)

	r1, err := svc.Borrow(ctx, actorOf(alice), first.ID)
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, actorOf(alice), second.ID)
	require.NoError(t, err)
	_, err = svc.Return(ctx, actorOf(alice), r1.ID)
	require.NoError(t, err)

	// the third loan is taken later and is not yet due when stats are read
	svc.SetClock(func() time.Time { return fixedNow.Add(20 * 24 * time.Hour) })
	_, err = svc.Borrow(ctx, actorOf(alice), third.ID)
	require.NoError(t, err)

	svc.SetClock(func() time.Time { return fixedNow.Add(40 * 24 * time.Hour) })
	stats, err := svc.Stats(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ActiveCount)
	assert.Equal(t, int64(1), stats.TotalReturned)
	assert.Equal(t, int64(1), stats.OverdueCount)
	assert.Equal(t, int64(domain.MaxActiveLoans-2), stats.RemainingSlots)

	active, err := svc.ActiveLoans(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, second.ID, active[0].BookID)

	returnedOnly, err := svc.History(ctx, alice.ID, true)
	require.NoError(t, err)
	require.Len(t, returnedOnly, 1)
	assert.Equal(t, first.ID, returnedOnly[0].BookID)

	all, err := svc.History(ctx, alice.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, models.StatusReturned, all[len(all)-1].Status)
}

func TestLendingService_Overview(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := fx.user("alice@example.com", domain.RoleUser)
	bob := fx.user("bob@example.com", domain.RoleUser)
	admin := fx.user("admin@example.com", domain.RoleAdmin)
	book := fx.book("Dune", 3)

	r1, err := svc.Borrow(ctx, actorOf(alice), book.ID)
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, actorOf(bob), book.ID)
	require.NoError(t, err)
	_, err = svc.Return(ctx, actorOf(alice), r1.ID)
	require.NoError(t, err)

	_, err = svc.Overview(ctx, actorOf(alice), &OverviewInput{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Overview(ctx, actorOf(admin), &OverviewInput{Status: "lost"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	out, err := svc.Overview(ctx, actorOf(admin), &OverviewInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Total)
	require.Len(t, out.Records, 2)
	require.NotNil(t, out.Records[0].User)
	require.NotNil(t, out.Records[0].Book)

	out, err = svc.Overview(ctx, actorOf(admin), &OverviewInput{Status: models.StatusBorrowed})
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, bob.ID, out.Records[0].UserID)

	out, err = svc.Overview(ctx, actorOf(admin), &OverviewInput{UserID: alice.ID})
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, models.StatusReturned, out.Records[0].Status)
}

func TestLendingService_FullCycle(t *testing.T) {
	svc, fx := setupLending(t)
	ctx := context.Background()

	alice := fx.user("alice@example.com", domain.RoleUser)
	bob := fx.user("bob@example.com", domain.RoleUser)
	book := fx.book("The Hobbit", 1)

	record, err := svc.Borrow(ctx, actorOf(alice), book.ID)
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, actorOf(bob), book.ID)
	require.ErrorIs(t, err, domain.ErrNoCopiesAvailable)

	_, err = svc.Renew(ctx, actorOf(alice), record.ID)
	require.NoError(t, err)

	_, err = svc.Return(ctx, actorOf(alice), record.ID)
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, actorOf(bob), book.ID)
	require.NoError(t, err)

	// a past loan of the same book does not block borrowing it again
	_, err = svc.Borrow(ctx, actorOf(alice), book.ID)
	assert.ErrorIs(t, err, domain.ErrNoCopiesAvailable)

	final := fx.reloadBook(book.ID)
	assert.Equal(t, 0, final.AvailableCopies)
	assert.Equal(t, 1, final.TotalCopies)
}
