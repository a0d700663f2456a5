package repositories

import (
	"context"
	"errors"
	"time"

	"libristack/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// borrowRepository implements BorrowRepository interface
type borrowRepository struct {
	db *gorm.DB
}

// NewBorrowRepository creates a new borrow record repository
func NewBorrowRepository(db *gorm.DB) BorrowRepository {
	return &borrowRepository{db: db}
}

// withRelations preloads user and book, soft-deleted ones included
func withRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("User", unscopedPreload).Preload("Book", unscopedPreload)
}

// Create inserts a new borrow record
func (r *borrowRepository) Create(ctx context.Context, record *models.BorrowRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByID gets a record with its user and book
func (r *borrowRepository) GetByID(ctx context.Context, id uint) (*models.BorrowRecord, error) {
	var record models.BorrowRecord
	err := withRelations(r.db.WithContext(ctx)).First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByIDForUpdate gets a record and locks the row until the transaction ends
func (r *borrowRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.BorrowRecord, error) {
	var record models.BorrowRecord
	err := forUpdate(r.db.WithContext(ctx)).First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Update saves the mutable record fields
func (r *borrowRepository) Update(ctx context.Context, record *models.BorrowRecord) error {
	return r.db.WithContext(ctx).
		Model(record).
		Select("due_date", "return_date", "status", "renewed", "updated_at").
		Updates(record).Error
}

// FindActive returns the borrowed record for a (user, book) pair, or nil
func (r *borrowRepository) FindActive(ctx context.Context, userID, bookID uint) (*models.BorrowRecord, error) {
	var record models.BorrowRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ? AND status = ?", userID, bookID, models.StatusBorrowed).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// CountActiveByUser counts a user's borrowed records
func (r *borrowRepository) CountActiveByUser(ctx context.Context, userID uint) (int64, error) {
	return r.count(ctx, "user_id = ? AND status = ?", userID, models.StatusBorrowed)
}

// CountActiveByBook counts borrowed records referencing a book
func (r *borrowRepository) CountActiveByBook(ctx context.Context, bookID uint) (int64, error) {
	return r.count(ctx, "book_id = ? AND status = ?", bookID, models.StatusBorrowed)
}

// CountReturnedByUser counts a user's returned records
func (r *borrowRepository) CountReturnedByUser(ctx context.Context, userID uint) (int64, error) {
	return r.count(ctx, "user_id = ? AND status = ?", userID, models.StatusReturned)
}

// CountOverdueByUser counts borrowed records past their due date
func (r *borrowRepository) CountOverdueByUser(ctx context.Context, userID uint, now time.Time) (int64, error) {
	return r.count(ctx, "user_id = ? AND status = ? AND due_date < ?", userID, models.StatusBorrowed, now)
}

func (r *borrowRepository) count(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BorrowRecord{}).
		Where(query, args...).
		Count(&count).Error
	return count, err
}

// ListActiveByUser lists a user's borrowed records, soonest due first
func (r *borrowRepository) ListActiveByUser(ctx context.Context, userID uint) ([]*models.BorrowRecord, error) {
	var records []*models.BorrowRecord
	err := withRelations(r.db.WithContext(ctx)).
		Where("user_id = ? AND status = ?", userID, models.StatusBorrowed).
		Order("due_date ASC, id ASC").
		Find(&records).Error
	return records, err
}

// ListHistoryByUser lists a user's records ordered by return date, most recent first.
// The full history puts still-borrowed records ahead of returned ones.
func (r *borrowRepository) ListHistoryByUser(ctx context.Context, userID uint, returnedOnly bool) ([]*models.BorrowRecord, error) {
	var records []*models.BorrowRecord
	query := withRelations(r.db.WithContext(ctx)).Where("user_id = ?", userID)
	if returnedOnly {
		query = query.Where("status = ?", models.StatusReturned)
	} else {
		query = query.Order("CASE WHEN return_date IS NULL THEN 0 ELSE 1 END ASC")
	}
	err := query.
		Order("return_date DESC").
		Order("borrow_date DESC").
		Order("id DESC").
		Find(&records).Error
	return records, err
}

// ListDueBefore lists borrowed records whose due date is before cutoff
func (r *borrowRepository) ListDueBefore(ctx context.Context, cutoff time.Time) ([]*models.BorrowRecord, error) {
	var records []*models.BorrowRecord
	err := withRelations(r.db.WithContext(ctx)).
		Where("status = ? AND due_date < ?", models.StatusBorrowed, cutoff).
		Order("due_date ASC, id ASC").
		Find(&records).Error
	return records, err
}

// List lists records for the administrative overview, newest first
func (r *borrowRepository) List(ctx context.Context, filter BorrowFilter, offset, limit int) ([]*models.BorrowRecord, int64, error) {
	var records []*models.BorrowRecord
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.UserID != 0 {
			db = db.Where("user_id = ?", filter.UserID)
		}
		if filter.BookID != 0 {
			db = db.Where("book_id = ?", filter.BookID)
		}
		return db
	}

	if err := r.db.WithContext(ctx).Model(&models.BorrowRecord{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := withRelations(r.db.WithContext(ctx)).
		Scopes(scope).
		Order("borrow_date DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
