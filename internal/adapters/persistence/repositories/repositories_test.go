package repositories

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"libristack/internal/adapters/persistence/models"
	"libristack/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(config.SQLiteDSN(filepath.Join(t.TempDir(), "repo.db"))), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return NewStore(db)
}

func TestBookRepository_AdjustAvailable(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	book := &models.Book{Title: "Dune", Author: "Herbert", TotalCopies: 2, AvailableCopies: 1}
	require.NoError(t, store.Books.Create(ctx, book))

	ok, err := store.Books.AdjustAvailable(ctx, book.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// already at total
	ok, err = store.Books.AdjustAvailable(ctx, book.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Books.AdjustAvailable(ctx, book.ID, -2)
	require.NoError(t, err)
	assert.True(t, ok)

	// already at zero
	ok, err = store.Books.AdjustAvailable(ctx, book.ID, -1)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)
	assert.Equal(t, 2, got.TotalCopies)

	ok, err = store.Books.AdjustAvailable(ctx, 9999, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBorrowRepository_History(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := &models.User{FullName: "Alice", Email: "alice@example.com", Password: "x", Role: "user"}
	require.NoError(t, store.Users.Create(ctx, user))
	book := &models.Book{Title: "Dune", Author: "Herbert", TotalCopies: 3, AvailableCopies: 3}
	require.NoError(t, store.Books.Create(ctx, book))

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	returnedEarly := base.Add(24 * time.Hour)
	returnedLate := base.Add(72 * time.Hour)

	records := []*models.BorrowRecord{
		{UserID: user.ID, BookID: book.ID, BorrowDate: base, DueDate: base.Add(720 * time.Hour), Status: models.StatusReturned, ReturnDate: &returnedEarly},
		{UserID: user.ID, BookID: book.ID, BorrowDate: base, DueDate: base.Add(720 * time.Hour), Status: models.StatusReturned, ReturnDate: &returnedLate},
		{UserID: user.ID, BookID: book.ID, BorrowDate: base.Add(96 * time.Hour), DueDate: base.Add(816 * time.Hour), Status: models.StatusBorrowed},
	}
	for _, r := range records {
		require.NoError(t, store.Borrows.Create(ctx, r))
	}

	returned, err := store.Borrows.ListHistoryByUser(ctx, user.ID, true)
	require.NoError(t, err)
	require.Len(t, returned, 2)
	assert.Equal(t, records[1].ID, returned[0].ID)
	assert.Equal(t, records[0].ID, returned[1].ID)

	all, err := store.Borrows.ListHistoryByUser(ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, records[2].ID, all[0].ID)
	assert.Equal(t, records[1].ID, all[1].ID)
	require.NotNil(t, all[0].Book)
	require.NotNil(t, all[0].User)

	active, err := store.Borrows.FindActive(ctx, user.ID, book.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, records[2].ID, active.ID)

	count, err := store.Borrows.CountOverdueByUser(ctx, user.ID, base.Add(900*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStore_TransactionRollback(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Transaction(ctx, func(tx *Store) error {
		if err := tx.Books.Create(ctx, &models.Book{Title: "Ghost", Author: "Nobody", TotalCopies: 1, AvailableCopies: 1}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, total, err := store.Books.List(ctx, BookFilter{}, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestUserRepository_SoftDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	code := "AB123"
	user := &models.User{FullName: "Old Admin", Email: "old@example.com", Password: "x", Role: "admin", OwnInviteCode: &code}
	require.NoError(t, store.Users.Create(ctx, user))
	require.NoError(t, store.Users.Delete(ctx, user.ID))

	_, err := store.Users.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// deleted accounts still reserve their email and invite code
	exists, err := store.Users.ExistsByEmail(ctx, "old@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	taken, err := store.Users.ExistsByInviteCode(ctx, code)
	require.NoError(t, err)
	assert.True(t, taken)

	_, err = store.Users.GetAdminByInviteCode(ctx, code)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestIsDuplicateKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Users.Create(ctx, &models.User{FullName: "A", Email: "dup@example.com", Password: "x", Role: "user"}))

	err := store.Users.Create(ctx, &models.User{FullName: "B", Email: "dup@example.com", Password: "x", Role: "user"})
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))

	assert.False(t, IsDuplicateKey(nil))
	assert.False(t, IsDuplicateKey(gorm.ErrRecordNotFound))
	assert.True(t, IsDuplicateKey(gorm.ErrDuplicatedKey))
}
