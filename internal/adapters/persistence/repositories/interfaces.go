package repositories

import (
	"context"
	"time"

	"libristack/internal/adapters/persistence/models"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetAdminByInviteCode(ctx context.Context, code string) (*models.User, error)
	LockAdmins(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, search string, offset, limit int) ([]*models.User, int64, error)
	ListRecipients(ctx context.Context, verifiedOnly bool) ([]*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByInviteCode(ctx context.Context, code string) (bool, error)
}

// RefreshTokenRepository defines refresh token repository interface
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetActiveByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id uint) error
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllByUserID(ctx context.Context, userID uint) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// BookFilter narrows catalog listings
type BookFilter struct {
	Search   string
	Language string
}

// BookRepository defines catalog repository interface
type BookRepository interface {
	Create(ctx context.Context, book *models.Book) error
	CreateBatch(ctx context.Context, books []*models.Book) error
	GetByID(ctx context.Context, id uint) (*models.Book, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.Book, error)
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter BookFilter, offset, limit int) ([]*models.Book, int64, error)
	Languages(ctx context.Context) ([]string, error)
	// AdjustAvailable shifts available_copies by delta while keeping it
	// inside [0, total_copies]. It reports false when the guard rejected the change.
	AdjustAvailable(ctx context.Context, id uint, delta int) (bool, error)
}

// BorrowFilter narrows the administrative ledger overview
type BorrowFilter struct {
	Status string
	UserID uint
	BookID uint
}

// BorrowRepository defines lending ledger repository interface
type BorrowRepository interface {
	Create(ctx context.Context, record *models.BorrowRecord) error
	GetByID(ctx context.Context, id uint) (*models.BorrowRecord, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.BorrowRecord, error)
	Update(ctx context.Context, record *models.BorrowRecord) error
	FindActive(ctx context.Context, userID, bookID uint) (*models.BorrowRecord, error)
	CountActiveByUser(ctx context.Context, userID uint) (int64, error)
	CountActiveByBook(ctx context.Context, bookID uint) (int64, error)
	CountReturnedByUser(ctx context.Context, userID uint) (int64, error)
	CountOverdueByUser(ctx context.Context, userID uint, now time.Time) (int64, error)
	ListActiveByUser(ctx context.Context, userID uint) ([]*models.BorrowRecord, error)
	ListHistoryByUser(ctx context.Context, userID uint, returnedOnly bool) ([]*models.BorrowRecord, error)
	ListDueBefore(ctx context.Context, cutoff time.Time) ([]*models.BorrowRecord, error)
	List(ctx context.Context, filter BorrowFilter, offset, limit int) ([]*models.BorrowRecord, int64, error)
}

// ContactRepository defines contact inbox repository interface
type ContactRepository interface {
	Create(ctx context.Context, msg *models.ContactMessage) error
	List(ctx context.Context, offset, limit int) ([]*models.ContactMessage, int64, error)
}
