package repositories

import (
	"context"

	"libristack/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// bookRepository implements BookRepository interface
type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new book repository
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

// Create creates a new book
func (r *bookRepository) Create(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

// CreateBatch inserts books in batches of 100
func (r *bookRepository) CreateBatch(ctx context.Context, books []*models.Book) error {
	return r.db.WithContext(ctx).CreateInBatches(books, 100).Error
}

// GetByID gets a book by ID
func (r *bookRepository) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	err := r.db.WithContext(ctx).First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetByIDForUpdate gets a book by ID and locks the row until the transaction ends
func (r *bookRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	err := forUpdate(r.db.WithContext(ctx)).First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// Update saves all book fields
func (r *bookRepository) Update(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Save(book).Error
}

// Delete soft deletes a book; its borrow history keeps pointing at it
func (r *bookRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Book{}, id).Error
}

// List lists books matching filter with pagination
func (r *bookRepository) List(ctx context.Context, filter BookFilter, offset, limit int) ([]*models.Book, int64, error) {
	var books []*models.Book
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			db = db.Where("title LIKE ? OR author LIKE ?", like, like)
		}
		if filter.Language != "" {
			db = db.Where("language = ?", filter.Language)
		}
		return db
	}

	if err := r.db.WithContext(ctx).Model(&models.Book{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Scopes(scope).
		Order("title ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&books).Error
	if err != nil {
		return nil, 0, err
	}

	return books, total, nil
}

// Languages returns the distinct catalog languages
func (r *bookRepository) Languages(ctx context.Context) ([]string, error) {
	var languages []string
	err := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Distinct("language").
		Order("language ASC").
		Pluck("language", &languages).Error
	return languages, err
}

// AdjustAvailable applies a guarded delta to available_copies
func (r *bookRepository) AdjustAvailable(ctx context.Context, id uint, delta int) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Book{}).Where("id = ?", id)
	if delta < 0 {
		query = query.Where("available_copies >= ?", -delta)
	} else {
		query = query.Where("available_copies + ? <= total_copies", delta)
	}

	result := query.Update("available_copies", gorm.Expr("available_copies + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
