package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store groups the repositories that share one database handle.
// Repositories obtained from a Store passed to Transaction are bound to that transaction.
type Store struct {
	db *gorm.DB

	Users         UserRepository
	RefreshTokens RefreshTokenRepository
	Books         BookRepository
	Borrows       BorrowRepository
	Contacts      ContactRepository
}

// NewStore creates a store over db
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Users:         NewUserRepository(db),
		RefreshTokens: NewRefreshTokenRepository(db),
		Books:         NewBookRepository(db),
		Borrows:       NewBorrowRepository(db),
		Contacts:      NewContactRepository(db),
	}
}

// DB returns the underlying handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn in a single database transaction.
// Returning an error from fn, or cancelling ctx, rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// forUpdate adds a row lock (SELECT ... FOR UPDATE).
// Dialects without row locks (SQLite) drop the clause; there writers are
// serialised by immediate transactions instead.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// unscopedPreload keeps soft-deleted users and books visible in the ledger history
func unscopedPreload(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}
